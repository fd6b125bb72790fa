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
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Source provides positioned reads over the compressed input. ReadAt
// must not maintain a shared cursor; it fills p fully and may return a
// short read only at end of input, matching io.ReaderAt.
type Source interface {
	io.ReaderAt

	// Size returns the total size of the input in bytes.
	Size() uint64
}

// fileSource is a Source backed by a file on an afero filesystem.
type fileSource struct {
	file afero.File
	size uint64
}

// newFileSource opens path on fsys and binds its size.
func newFileSource(fsys afero.Fs, path string) (*fileSource, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat source file: %w", err)
	}

	return &fileSource{
		file: file,
		size: uint64(info.Size()), //nolint:gosec // Safe: file sizes are non-negative
	}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off) //nolint:wrapcheck // ReadAt passthrough is intentional
}

func (s *fileSource) Size() uint64 {
	return s.size
}

func (s *fileSource) Close() error {
	return s.file.Close() //nolint:wrapcheck // Close error passthrough is intentional
}

// SliceSource is an in-memory Source over a byte slice.
type SliceSource []byte

func (s SliceSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("slice source: %w", ErrInvalidOffset)
	}
	if off >= int64(len(s)) {
		return 0, io.EOF
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s SliceSource) Size() uint64 {
	return uint64(len(s))
}
