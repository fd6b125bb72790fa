// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-gzipf.
//
// go-gzipf is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-gzipf is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-gzipf.  If not, see <https://www.gnu.org/licenses/>.

package gzipf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// memberSpec describes one GZIP member to assemble by hand, giving
// tests full control over header fields the reference writer does not
// expose.
type memberSpec struct {
	content   []byte
	name      string
	comment   string
	extra     []byte
	headerCRC bool
	mtime     uint32
	os        byte

	// flushEvery splits the content into DEFLATE blocks of roughly
	// this many bytes. Zero lets the compressor pick.
	flushEvery int
}

// assembleMember builds the member bytes for a spec.
func assembleMember(spec memberSpec) ([]byte, error) {
	var buf bytes.Buffer

	flags := byte(0)
	if spec.extra != nil {
		flags |= FlagExtra
	}
	if spec.name != "" {
		flags |= FlagName
	}
	if spec.comment != "" {
		flags |= FlagComment
	}
	if spec.headerCRC {
		flags |= FlagHeaderCRC
	}

	buf.Write([]byte{0x1f, 0x8b, 8, flags})
	_ = binary.Write(&buf, binary.LittleEndian, spec.mtime)
	buf.Write([]byte{0, spec.os})

	if spec.extra != nil {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(spec.extra))) //nolint:gosec // Test data is small
		buf.Write(spec.extra)
	}
	if spec.name != "" {
		buf.WriteString(spec.name)
		buf.WriteByte(0)
	}
	if spec.comment != "" {
		buf.WriteString(spec.comment)
		buf.WriteByte(0)
	}
	if spec.headerCRC {
		headerCRC := crc32.ChecksumIEEE(buf.Bytes())
		_ = binary.Write(&buf, binary.LittleEndian, uint16(headerCRC&0xffff)) //nolint:gosec // CRC-16 is the low half
	}

	writer, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if spec.flushEvery > 0 {
		for off := 0; off < len(spec.content); off += spec.flushEvery {
			end := off + spec.flushEvery
			if end > len(spec.content) {
				end = len(spec.content)
			}
			if _, err := writer.Write(spec.content[off:end]); err != nil {
				return nil, err
			}
			if err := writer.Flush(); err != nil {
				return nil, err
			}
		}
	} else if _, err := writer.Write(spec.content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	_ = binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(spec.content))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(spec.content))) //nolint:gosec // ISIZE is modulo 2^32

	return buf.Bytes(), nil
}

// buildMember assembles a complete GZIP member, failing the test on
// writer errors.
func buildMember(t *testing.T, spec memberSpec) []byte {
	t.Helper()

	data, err := assembleMember(spec)
	if err != nil {
		t.Fatalf("assembleMember failed: %v", err)
	}
	return data
}

// openBytes opens an in-memory GZIP stream and registers cleanup.
func openBytes(t *testing.T, data []byte) *File {
	t.Helper()

	file, err := OpenSource(SliceSource(data))
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	t.Cleanup(func() { _ = file.Close() })
	return file
}

// readAt is a test shorthand that fails on unexpected errors.
func readAt(t *testing.T, file *File, off int64, size int) []byte {
	t.Helper()

	buf := make([]byte, size)
	n, err := file.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadAt(%d, %d) failed: %v", off, size, err)
	}
	return buf[:n]
}

func TestEmptyMemberWithName(t *testing.T) {
	t.Parallel()

	file := openBytes(t, buildMember(t, memberSpec{name: "a.txt"}))

	count, err := file.MemberCount()
	if err != nil {
		t.Fatalf("MemberCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("member count %d, want 1", count)
	}

	member, err := file.Member(0)
	if err != nil {
		t.Fatalf("Member failed: %v", err)
	}
	if name, ok := member.Name(); !ok || name != "a.txt" {
		t.Errorf("name %q (%t), want \"a.txt\"", name, ok)
	}

	size, err := file.UncompressedSize()
	if err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if size != 0 {
		t.Errorf("uncompressed size %d, want 0", size)
	}

	if got := readAt(t, file, 0, 10); len(got) != 0 {
		t.Errorf("read %d bytes from empty member", len(got))
	}
	if file.IsCorrupted() {
		t.Error("empty member flagged corrupted")
	}
}

func TestTwoMemberConcatenation(t *testing.T) {
	t.Parallel()

	data := append(
		buildMember(t, memberSpec{content: []byte("hello\n")}),
		buildMember(t, memberSpec{content: []byte("world\n")})...)
	file := openBytes(t, data)

	count, err := file.MemberCount()
	if err != nil {
		t.Fatalf("MemberCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("member count %d, want 2", count)
	}

	size, err := file.UncompressedSize()
	if err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if size != 12 {
		t.Errorf("uncompressed size %d, want 12", size)
	}

	if got := readAt(t, file, 0, 12); !bytes.Equal(got, []byte("hello\nworld\n")) {
		t.Errorf("full read %q", got)
	}
	if got := readAt(t, file, 5, 2); !bytes.Equal(got, []byte("\nw")) {
		t.Errorf("boundary read %q, want \"\\nw\"", got)
	}
}

func TestLargeMemberSegmentsAndCache(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("A"), 4<<20)
	file := openBytes(t, buildMember(t, memberSpec{content: content, flushEvery: 64 << 10}))

	size, err := file.UncompressedSize()
	if err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if size != 4<<20 {
		t.Errorf("uncompressed size %d, want %d", size, 4<<20)
	}
	if n := file.segments.count(); n < 4 {
		t.Errorf("segment count %d, want at least 4", n)
	}

	want := bytes.Repeat([]byte("A"), 16)
	if got := readAt(t, file, 3_000_000, 16); !bytes.Equal(got, want) {
		t.Errorf("mid-stream read %q", got)
	}

	// The touched segment is cached: re-reading must hit it.
	index, _, ok := file.segments.resolve(3_000_000)
	if !ok {
		t.Fatal("offset 3000000 did not resolve")
	}
	if !file.cache.entries.Contains(index) {
		t.Errorf("segment %d not cached after read", index)
	}
	if got := readAt(t, file, 3_000_000, 16); !bytes.Equal(got, want) {
		t.Errorf("repeated read %q", got)
	}
}

// TestSegmentDictionaries checks that every segment's saved window is
// exactly the tail of the stream output preceding it.
func TestSegmentDictionaries(t *testing.T) {
	t.Parallel()

	content := make([]byte, 3<<20)
	for i := range content {
		content[i] = byte(i * 31 / 7)
	}
	file := openBytes(t, buildMember(t, memberSpec{content: content, flushEvery: 32 << 10}))

	if _, err := file.UncompressedSize(); err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if file.segments.count() < 2 {
		t.Fatalf("want multiple segments, got %d", file.segments.count())
	}

	for i := 1; i < file.segments.count(); i++ {
		seg := &file.segments.segments[i]
		start := file.segments.start(i)

		wantLen := int(start)
		if wantLen > 32768 {
			wantLen = 32768
		}
		if len(seg.dictionary) != wantLen {
			t.Fatalf("segment %d dictionary %d bytes, want %d", i, len(seg.dictionary), wantLen)
		}
		if !bytes.Equal(seg.dictionary, content[start-uint64(wantLen):start]) { //nolint:gosec // Test offsets are small
			t.Fatalf("segment %d dictionary mismatch", i)
		}
	}
}

func TestCorruptFooterChecksum(t *testing.T) {
	t.Parallel()

	data := buildMember(t, memberSpec{content: []byte("abc")})
	data[len(data)-8] ^= 0x01 // flip one bit of the footer CRC-32

	file := openBytes(t, data)

	if _, err := file.UncompressedSize(); err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if !file.IsCorrupted() {
		t.Error("file not flagged corrupted")
	}

	if got := readAt(t, file, 0, 3); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("read %q, want \"abc\"", got)
	}

	member, err := file.Member(0)
	if err != nil {
		t.Fatalf("Member failed: %v", err)
	}
	if !member.HasDecompressionError() {
		t.Error("member not flagged with decompression error")
	}
}

func TestUnsupportedFlag(t *testing.T) {
	t.Parallel()

	data := []byte{0x1f, 0x8b, 8, 0x20, 0, 0, 0, 0, 0, 3, 0, 0}
	if _, err := OpenSource(SliceSource(data)); !errors.Is(err, ErrUnsupportedFlags) {
		t.Fatalf("expected ErrUnsupportedFlags, got %v", err)
	}
}

func TestOpenRejectsShortSource(t *testing.T) {
	t.Parallel()

	if _, err := OpenSource(SliceSource([]byte{0x1f, 0x8b, 8})); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestOpenRejectsBadSignature(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0x42}, 32)
	if _, err := OpenSource(SliceSource(data)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestOpenRejectsBadCompressionMethod(t *testing.T) {
	t.Parallel()

	data := []byte{0x1f, 0x8b, 7, 0, 0, 0, 0, 0, 0, 3, 0, 0}
	if _, err := OpenSource(SliceSource(data)); !errors.Is(err, ErrUnsupportedCompressionMethod) {
		t.Fatalf("expected ErrUnsupportedCompressionMethod, got %v", err)
	}
}

func TestTruncatedFooter(t *testing.T) {
	t.Parallel()

	first := buildMember(t, memberSpec{content: []byte("intact member\n")})
	second := buildMember(t, memberSpec{content: []byte("cut short")})
	data := append(append([]byte{}, first...), second[:len(second)-4]...)

	file := openBytes(t, data)

	size, err := file.UncompressedSize()
	if err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if !file.IsCorrupted() {
		t.Error("file not flagged corrupted")
	}
	if size != uint64(len("intact member\n"))+uint64(len("cut short")) {
		t.Errorf("uncompressed size %d", size)
	}

	// The intact member stays fully readable.
	if got := readAt(t, file, 0, 14); !bytes.Equal(got, []byte("intact member\n")) {
		t.Errorf("read %q", got)
	}
}

func TestReadPastEndAndReseek(t *testing.T) {
	t.Parallel()

	file := openBytes(t, buildMember(t, memberSpec{content: []byte("payload")}))

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if end != 7 {
		t.Errorf("end offset %d, want 7", end)
	}

	buf := make([]byte, 4)
	if n, err := file.Read(buf); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("read past end: n=%d err=%v", n, err)
	}
	if file.CurrentOffset() != 7 {
		t.Errorf("offset moved to %d after EOF read", file.CurrentOffset())
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	n, err := file.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(buf[:n], []byte("payl")) {
		t.Errorf("read %q after reseek", buf[:n])
	}
}

func TestSeekNegativeOffset(t *testing.T) {
	t.Parallel()

	file := openBytes(t, buildMember(t, memberSpec{content: []byte("x")}))

	if _, err := file.Seek(-1, io.SeekStart); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
	if _, err := file.Seek(-5, io.SeekCurrent); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("expected ErrInvalidOffset, got %v", err)
	}
}

// TestReadSplitLaw checks that reading a range in two parts equals
// reading it at once, for several split points.
func TestReadSplitLaw(t *testing.T) {
	t.Parallel()

	content := make([]byte, 100_000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	file := openBytes(t, buildMember(t, memberSpec{content: content, flushEvery: 10_000}))

	const a, b = 15_000, 85_000
	whole := readAt(t, file, a, b-a)

	for _, k := range []int{0, 1, 4_999, 35_000, b - a} {
		head := readAt(t, file, a, k)
		tail := readAt(t, file, a+int64(k), b-a-k)
		if combined := append(append([]byte{}, head...), tail...); !bytes.Equal(combined, whole) {
			t.Errorf("split at %d differs from whole read", k)
		}
	}
}

func TestHeaderMetadata(t *testing.T) {
	t.Parallel()

	data := buildMember(t, memberSpec{
		content:   []byte("metadata"),
		name:      "caf\xe9.txt", // Latin-1 e-acute
		comment:   "test comment",
		extra:     []byte{1, 2, 3, 4},
		headerCRC: true,
		mtime:     1_700_000_000,
		os:        3,
	})
	file := openBytes(t, data)

	member, err := file.Member(0)
	if err != nil {
		t.Fatalf("Member failed: %v", err)
	}

	if name, ok := member.Name(); !ok || name != "café.txt" {
		t.Errorf("name %q (%t), want \"café.txt\"", name, ok)
	}
	if comment, ok := member.Comments(); !ok || comment != "test comment" {
		t.Errorf("comment %q (%t)", comment, ok)
	}
	if member.ModificationTime() != 1_700_000_000 {
		t.Errorf("mtime %d", member.ModificationTime())
	}
	if member.OperatingSystem() != 3 || member.OperatingSystemString() != "Unix" {
		t.Errorf("os %d (%s)", member.OperatingSystem(), member.OperatingSystemString())
	}
	if member.Flags()&FlagExtra == 0 || member.Flags()&FlagHeaderCRC == 0 {
		t.Errorf("flags 0x%02x missing FEXTRA or FHCRC", member.Flags())
	}

	if got := readAt(t, file, 0, 8); !bytes.Equal(got, []byte("metadata")) {
		t.Errorf("content %q after variable-length header", got)
	}
}

func TestAbort(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("abort me "), 100_000)
	file := openBytes(t, buildMember(t, memberSpec{content: content, flushEvery: 16 << 10}))

	file.Abort()
	file.Abort() // idempotent

	if _, err := file.UncompressedSize(); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	buf := make([]byte, 16)
	if _, err := file.Read(buf); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if _, err := file.ReadAt(buf, 0); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestAbortDuringIndexing(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte{0x41}, 2<<20)
	file := openBytes(t, buildMember(t, memberSpec{content: content, flushEvery: 8 << 10}))

	done := make(chan error, 1)
	go func() {
		_, err := file.UncompressedSize()
		done <- err
	}()
	file.Abort()

	err := <-done
	// The abort races with indexing: either it lands mid-operation or
	// the operation finished first, but afterwards every call fails.
	if err != nil && !errors.Is(err, ErrAborted) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := file.Read(make([]byte, 1)); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted after abort, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	file := openBytes(t, buildMember(t, memberSpec{content: []byte("close")}))

	if err := file.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := file.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// TestStableSizeAcrossOpens re-opens the same input and expects the
// same uncompressed size.
func TestStableSizeAcrossOpens(t *testing.T) {
	t.Parallel()

	data := append(
		buildMember(t, memberSpec{content: []byte("first")}),
		buildMember(t, memberSpec{content: []byte("second")})...)

	var sizes [2]uint64
	for i := range sizes {
		file := openBytes(t, data)
		size, err := file.UncompressedSize()
		if err != nil {
			t.Fatalf("UncompressedSize failed: %v", err)
		}
		sizes[i] = size
		_ = file.Close()
	}
	if sizes[0] != sizes[1] {
		t.Errorf("sizes differ across opens: %d vs %d", sizes[0], sizes[1])
	}
}

// TestReferenceRoundTrip decodes writer-produced multi-member files
// and compares against the reference gzip reader byte for byte.
func TestReferenceRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	writer := kgzip.NewWriter(&buf)
	writer.Name = "first.bin"
	writer.Comment = "reference writer"
	if _, err := writer.Write(bytes.Repeat([]byte("alpha beta "), 5_000)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	writer = kgzip.NewWriter(&buf)
	if _, err := writer.Write([]byte("tail member")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reference, err := kgzip.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	want, err := io.ReadAll(reference)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	file := openBytes(t, buf.Bytes())
	size, err := file.UncompressedSize()
	if err != nil {
		t.Fatalf("UncompressedSize failed: %v", err)
	}
	if size != uint64(len(want)) {
		t.Fatalf("size %d, want %d", size, len(want))
	}
	if got := readAt(t, file, 0, len(want)); !bytes.Equal(got, want) {
		t.Fatal("decoded stream differs from reference reader output")
	}

	member, err := file.Member(0)
	if err != nil {
		t.Fatalf("Member failed: %v", err)
	}
	if name, ok := member.Name(); !ok || name != "first.bin" {
		t.Errorf("name %q (%t)", name, ok)
	}
}

func TestOpenFs(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	data := buildMember(t, memberSpec{content: []byte("from afero"), name: "mem.txt"})
	if err := afero.WriteFile(fsys, "/test.gz", data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	file, err := OpenFs(fsys, "/test.gz")
	if err != nil {
		t.Fatalf("OpenFs failed: %v", err)
	}
	defer func() { _ = file.Close() }()

	if got := readAt(t, file, 0, 10); !bytes.Equal(got, []byte("from afero")) {
		t.Errorf("read %q", got)
	}
}

func TestConcurrentReads(t *testing.T) {
	t.Parallel()

	content := make([]byte, 1<<20)
	for i := range content {
		content[i] = byte(i >> 8)
	}
	file := openBytes(t, buildMember(t, memberSpec{content: content, flushEvery: 64 << 10}))

	done := make(chan error, 8)
	for worker := 0; worker < 8; worker++ {
		go func(worker int) {
			buf := make([]byte, 1024)
			for i := 0; i < 50; i++ {
				off := int64((worker*37_123 + i*11_939) % (len(content) - len(buf)))
				n, err := file.ReadAt(buf, off)
				if err != nil && !errors.Is(err, io.EOF) {
					done <- err
					return
				}
				if !bytes.Equal(buf[:n], content[off:off+int64(n)]) {
					done <- errors.New("concurrent read mismatch")
					return
				}
			}
			done <- nil
		}(worker)
	}
	for worker := 0; worker < 8; worker++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}
