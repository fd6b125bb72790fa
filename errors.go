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

import "errors"

// Common errors for GZIP file parsing.
var (
	// ErrInvalidSource indicates the source is too small to contain a
	// member header.
	ErrInvalidSource = errors.New("gzipf: source smaller than a member header")

	// ErrInvalidSignature indicates a member header without the GZIP
	// magic bytes.
	ErrInvalidSignature = errors.New("gzipf: invalid member signature")

	// ErrUnsupportedCompressionMethod indicates a compression method
	// other than DEFLATE.
	ErrUnsupportedCompressionMethod = errors.New("gzipf: unsupported compression method")

	// ErrUnsupportedFlags indicates a member header with reserved flag
	// bits set.
	ErrUnsupportedFlags = errors.New("gzipf: unsupported header flags")

	// ErrTruncatedInput indicates the source ended in the middle of a
	// header field, name or comment string, or member footer.
	ErrTruncatedInput = errors.New("gzipf: truncated input")

	// ErrInvalidDeflate indicates a malformed DEFLATE stream inside a
	// member.
	ErrInvalidDeflate = errors.New("gzipf: invalid DEFLATE stream")

	// ErrMemberFooterMismatch indicates the footer CRC-32 or size does
	// not match the decompressed data.
	ErrMemberFooterMismatch = errors.New("gzipf: member footer mismatch")

	// ErrInvalidOffset indicates a seek to a negative offset.
	ErrInvalidOffset = errors.New("gzipf: invalid offset")

	// ErrInvalidMemberIndex indicates a member index out of range.
	ErrInvalidMemberIndex = errors.New("gzipf: invalid member index")

	// ErrAborted indicates Abort was called, either while the operation
	// was in flight or before it started.
	ErrAborted = errors.New("gzipf: aborted")

	// ErrClosed indicates the file was already closed.
	ErrClosed = errors.New("gzipf: file closed")
)
