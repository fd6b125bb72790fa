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

package deflate

import "errors"

// Common errors for DEFLATE decoding.
var (
	// ErrTruncatedInput indicates the compressed stream ended before the
	// final block was complete.
	ErrTruncatedInput = errors.New("deflate: truncated input")

	// ErrInvalidData indicates a malformed DEFLATE stream: a reserved
	// block type, bad code lengths, an invalid Huffman code, or a
	// back-reference past the start of the window.
	ErrInvalidData = errors.New("deflate: invalid data")

	// ErrEndOfStream indicates a block was requested after the final
	// block of the stream was already decoded.
	ErrEndOfStream = errors.New("deflate: end of stream")
)
