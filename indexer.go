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
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/ZaparooProject/go-gzipf/deflate"
)

// indexNextMember indexes one member starting at the indexer cursor:
// parse the header, decode the DEFLATE stream while carving it into
// resumable segments, then validate the footer. Corruption is recorded
// on the member and the file and stops further indexing; only I/O
// failures and aborts are surfaced to the caller.
//
// Must be called with the file lock held.
func (f *File) indexNextMember() error {
	if f.indexingDone {
		return nil
	}
	if f.indexerCursor >= f.sourceSize {
		f.indexingDone = true
		return nil
	}

	header, err := parseMemberHeader(f.source, int64(f.indexerCursor), &f.aborted) //nolint:gosec // Safe: cursor < source size
	if err != nil {
		if errors.Is(err, ErrAborted) {
			f.corrupted = true
			f.indexingDone = true
			return ErrAborted
		}
		if isFormatError(err) {
			f.corrupted = true
			f.indexingDone = true
			return nil
		}
		return err
	}

	member := memberDescriptor{
		flags:              header.flags,
		modificationTime:   header.modificationTime,
		operatingSystem:    header.operatingSystem,
		name:               header.name,
		comments:           header.comments,
		headerSize:         header.size,
		dataOffset:         f.indexerCursor + header.size,
		uncompressedOffset: f.segments.totalUncompressed(),
	}

	if err := f.readDeflateStream(&member); err != nil {
		if errors.Is(err, ErrAborted) {
			member.decompressionError = true
			f.corrupted = true
			f.members = append(f.members, member)
			f.indexingDone = true
			return ErrAborted
		}
		return err
	}

	if !member.decompressionError {
		if err := f.validateFooter(&member); err != nil {
			return err
		}
	}

	f.members = append(f.members, member)

	if member.decompressionError {
		f.indexingDone = true
		return nil
	}

	f.indexerCursor = member.dataOffset + member.dataSize + memberFooterSize
	if f.indexerCursor >= f.sourceSize {
		f.indexingDone = true
	}
	return nil
}

// readDeflateStream decodes the member's DEFLATE stream block by
// block, emitting a segment at the first block boundary after either
// segment threshold is crossed, at end of stream, and on decode
// failure. Each emitted segment captures the bit remainder and window
// tail the next segment needs to resume.
//
// A decode failure is recorded on the member, not returned; only
// aborts and I/O failures propagate.
func (f *File) readDeflateStream(member *memberDescriptor) error {
	decoder := deflate.NewDecoder(f.source, int64(member.dataOffset), int64(f.sourceSize)) //nolint:gosec // Safe: offsets bounded by source size

	segmentOffset := member.dataOffset
	segmentBits := uint8(0)
	var dictionary []byte

	emit := func(compressedEnd uint64) {
		pending := decoder.Pending()
		if len(pending) > 0 {
			f.segments.append(segmentDescriptor{
				compressedOffset: segmentOffset,
				compressedSize:   compressedEnd - segmentOffset,
				uncompressedSize: len(pending),
				startingBitCount: segmentBits,
				dictionary:       dictionary,
			})
			member.calculatedChecksum = crc32.Update(member.calculatedChecksum, crc32.IEEETable, pending)
			member.uncompressedSize += uint64(len(pending))
		}
	}

	for {
		if f.aborted.Load() {
			byteOffset, bits := decoder.BitPosition()
			emit(ceilByte(byteOffset, bits))
			return ErrAborted
		}

		last, err := decoder.StepBlock()
		if err != nil {
			mapped := mapDeflateError(err)
			if !isFormatError(mapped) && !errors.Is(mapped, ErrInvalidDeflate) {
				return mapped
			}
			byteOffset, bits := decoder.BitPosition()
			emit(ceilByte(byteOffset, bits))
			member.decompressionError = true
			f.corrupted = true
			return nil
		}

		byteOffset, bits := decoder.BitPosition()
		compressedEnd := ceilByte(byteOffset, bits)

		pending := len(decoder.Pending())
		if last || compressedEnd-segmentOffset >= segmentSize || pending >= uncompressedBlockSize {
			emit(compressedEnd)
			dictionary = decoder.WindowTail()
			decoder.TrimWindow()
			segmentOffset = uint64(byteOffset) //nolint:gosec // Safe: byte offsets are non-negative
			segmentBits = bits
		}

		if last {
			member.dataSize = compressedEnd - member.dataOffset
			return nil
		}
	}
}

// validateFooter compares the member footer against the rolling
// CRC-32 and size accumulated while decoding. Mismatches and footer
// truncation mark the member and file corrupt; only I/O failures
// propagate.
func (f *File) validateFooter(member *memberDescriptor) error {
	footerOffset := member.dataOffset + member.dataSize

	footer, err := parseMemberFooter(f.source, int64(footerOffset)) //nolint:gosec // Safe: offsets bounded by source size
	if err != nil {
		if isFormatError(err) {
			member.decompressionError = true
			f.corrupted = true
			return nil
		}
		return err
	}

	if footer.checksum != member.calculatedChecksum ||
		footer.uncompressedSize != uint32(member.uncompressedSize) { //nolint:gosec // ISIZE compares modulo 2^32
		member.decompressionError = true
		f.corrupted = true
	}
	return nil
}

// extendIndexToEnd indexes members until the cursor reaches the end of
// the source or indexing stops on corruption.
//
// Must be called with the file lock held.
func (f *File) extendIndexToEnd() error {
	for !f.indexingDone {
		if f.aborted.Load() {
			return ErrAborted
		}
		if err := f.indexNextMember(); err != nil {
			return err
		}
	}
	return nil
}

// loadSegment re-decodes one segment from its descriptor: start at the
// saved bit position, seed the saved window, then step blocks until
// the segment's output is reproduced.
func (f *File) loadSegment(index int) ([]byte, error) {
	seg := &f.segments.segments[index]

	limit := seg.compressedOffset + seg.compressedSize
	decoder := deflate.NewDecoder(f.source, int64(seg.compressedOffset), int64(limit)) //nolint:gosec // Safe: offsets bounded by source size

	if seg.startingBitCount > 0 {
		if err := decoder.Prime(seg.startingBitCount); err != nil {
			return nil, mapDeflateError(err)
		}
	}
	if len(seg.dictionary) > 0 {
		decoder.SetDictionary(seg.dictionary)
	}

	for len(decoder.Pending()) < seg.uncompressedSize {
		if f.aborted.Load() {
			return nil, ErrAborted
		}
		if decoder.Finished() {
			return nil, fmt.Errorf("%w: segment ended before expected size", ErrInvalidDeflate)
		}
		if _, err := decoder.StepBlock(); err != nil {
			return nil, mapDeflateError(err)
		}
	}

	data := make([]byte, seg.uncompressedSize)
	copy(data, decoder.Pending())
	return data, nil
}

// ceilByte returns the first whole-byte offset at or after the given
// bit position.
func ceilByte(byteOffset int64, bits uint8) uint64 {
	end := uint64(byteOffset) //nolint:gosec // Safe: byte offsets are non-negative
	if bits > 0 {
		end++
	}
	return end
}

// isFormatError reports whether err describes malformed input rather
// than an I/O failure or abort.
func isFormatError(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrUnsupportedCompressionMethod) ||
		errors.Is(err, ErrUnsupportedFlags) ||
		errors.Is(err, ErrTruncatedInput)
}

// mapDeflateError translates deflate package errors into the file
// error taxonomy.
func mapDeflateError(err error) error {
	switch {
	case errors.Is(err, deflate.ErrTruncatedInput):
		return fmt.Errorf("%w: %v", ErrTruncatedInput, err)
	case errors.Is(err, deflate.ErrInvalidData), errors.Is(err, deflate.ErrEndOfStream):
		return fmt.Errorf("%w: %v", ErrInvalidDeflate, err)
	default:
		return err
	}
}
