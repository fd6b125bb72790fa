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

// Package gzipf reads GZIP (RFC 1952) files as a seekable stream of
// uncompressed bytes. Each member of a concatenated GZIP file is
// exposed with its header metadata, and the concatenation of all
// members' data is readable at random offsets: the file is indexed
// into resumable segments as it is read, so re-reading an offset does
// not decompress everything before it.
package gzipf

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
)

// File is a GZIP file open for random-access reading. All methods are
// safe for concurrent use; operations on the virtual stream serialize
// on an internal lock.
type File struct {
	mu     sync.RWMutex
	source Source
	closer io.Closer // set when the file owns the underlying source

	sourceSize uint64
	members    []memberDescriptor
	segments   segmentTable
	cache      *segmentCache

	indexerCursor uint64 // file offset of the next member header
	indexingDone  bool
	corrupted     bool

	currentOffset uint64
	closed        bool
	aborted       atomic.Bool
}

// Open opens the GZIP file at path on the operating-system filesystem.
func Open(path string) (*File, error) {
	return OpenFs(afero.NewOsFs(), path)
}

// OpenFs opens the GZIP file at path on fsys.
func OpenFs(fsys afero.Fs, path string) (*File, error) {
	source, err := newFileSource(fsys, path)
	if err != nil {
		return nil, err
	}

	file, err := OpenSource(source)
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	file.closer = source

	return file, nil
}

// OpenSource opens a GZIP stream provided by src. The first member
// header is probed immediately so non-GZIP input fails here rather
// than on the first read.
func OpenSource(src Source) (*File, error) {
	size := src.Size()
	if size < memberHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSource, size)
	}

	cache, err := newSegmentCache()
	if err != nil {
		return nil, err
	}

	if _, err := parseMemberHeader(src, 0, nil); err != nil {
		return nil, err
	}

	return &File{
		source:     src,
		sourceSize: size,
		cache:      cache,
	}, nil
}

// Close releases the cache, scrubs the segment dictionaries and closes
// the underlying source when the file owns it. Close is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	// Member metadata stays so handles keep answering; the cache and
	// the segment dictionaries hold decoded content and are dropped.
	f.cache.purge()
	f.segments.clear()

	if f.closer != nil {
		return f.closer.Close() //nolint:wrapcheck // Close error passthrough is intentional
	}
	return nil
}

// Abort requests that in-flight and future operations stop with
// ErrAborted. It may be called from any goroutine, including while
// another operation is blocked decoding.
func (f *File) Abort() {
	f.aborted.Store(true)
}

// IsCorrupted reports whether indexing hit malformed data or was
// interrupted by Abort. Members indexed before that point remain
// readable.
func (f *File) IsCorrupted() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.corrupted
}

// UncompressedSize returns the total size of the virtual uncompressed
// stream. It indexes any not yet indexed members first.
func (f *File) UncompressedSize() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(); err != nil {
		return 0, err
	}
	if err := f.extendIndexToEnd(); err != nil {
		return 0, err
	}
	return f.segments.totalUncompressed(), nil
}

// MemberCount returns the number of members in the file. It indexes
// any not yet indexed members first.
func (f *File) MemberCount() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(); err != nil {
		return 0, err
	}
	if err := f.extendIndexToEnd(); err != nil {
		return 0, err
	}
	return len(f.members), nil
}

// Member returns a handle to the member at index. The handle reads
// through the file and stays valid until Close.
func (f *File) Member(index int) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(); err != nil {
		return nil, err
	}
	if err := f.extendIndexToEnd(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(f.members) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidMemberIndex, index, len(f.members))
	}
	return &Member{file: f, index: index}, nil
}

// CurrentOffset returns the position of the virtual stream cursor.
func (f *File) CurrentOffset() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.currentOffset
}

// Seek repositions the virtual stream cursor, following the io.Seeker
// convention. Seeking relative to the end indexes the remaining
// members first. Seeking to a negative offset fails with
// ErrInvalidOffset.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(f.currentOffset) //nolint:gosec // Safe: cursor bounded by stream size
	case io.SeekEnd:
		if err := f.extendIndexToEnd(); err != nil {
			return 0, err
		}
		base = int64(f.segments.totalUncompressed()) //nolint:gosec // Safe: stream sizes fit in int64
	default:
		return 0, fmt.Errorf("%w: whence %d", ErrInvalidOffset, whence)
	}

	target := base + offset
	if target < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOffset, target)
	}

	f.currentOffset = uint64(target)
	return target, nil
}

// Read reads from the virtual uncompressed stream at the cursor and
// advances it. Members are indexed lazily, only as far as the read
// reaches. At end of stream Read returns 0, io.EOF.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(); err != nil {
		return 0, err
	}
	return f.readAtCursor(p)
}

// ReadAt positions the cursor at off and reads, under one lock
// acquisition. Unlike an os.File, ReadAt moves the stream cursor.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOffset, off)
	}

	f.currentOffset = uint64(off)
	return f.readAtCursor(p)
}

// readAtCursor copies bytes out of cached segments starting at the
// cursor, extending the index one member at a time whenever the cursor
// runs past the indexed range.
func (f *File) readAtCursor(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		offset := f.currentOffset

		if offset >= f.segments.totalUncompressed() {
			if f.indexingDone {
				break
			}
			if err := f.indexNextMember(); err != nil {
				return total, err
			}
			continue
		}

		index, intra, ok := f.segments.resolve(offset)
		if !ok {
			break
		}

		data, err := f.cache.get(index, func() ([]byte, error) {
			return f.loadSegment(index)
		})
		if err != nil {
			return total, err
		}

		n := copy(p[total:], data[intra:])
		total += n
		f.currentOffset += uint64(n) //nolint:gosec // Safe: copy counts are non-negative
	}

	if total == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return total, nil
}

// check validates that the file is usable at the start of an
// operation.
func (f *File) check() error {
	if f.closed {
		return ErrClosed
	}
	if f.aborted.Load() {
		return ErrAborted
	}
	return nil
}
