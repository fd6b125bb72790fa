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

import (
	"errors"
	"io"
)

// readBufferSize is the size of the read-ahead buffer used to pull
// compressed bytes from the underlying reader.
const readBufferSize = 8192

// bitReader reads bits LSB-first from an io.ReaderAt, the bit order used
// by DEFLATE streams. It tracks its absolute bit position so decoding can
// be suspended at a block boundary and resumed later.
type bitReader struct {
	src   io.ReaderAt
	buf   []byte
	store [readBufferSize]byte
	pos   int   // next unread byte in buf
	off   int64 // file offset of buf[0]
	limit int64 // file offset one past the last readable byte
	bits  uint32
	nbits uint
}

// newBitReader creates a bit reader over src starting at offset.
// Bytes at or beyond limit are treated as end of input.
func newBitReader(src io.ReaderAt, offset, limit int64) bitReader {
	return bitReader{
		src:   src,
		off:   offset,
		limit: limit,
	}
}

// fetchByte returns the next raw byte of the stream, refilling the
// read-ahead buffer from the source when it runs dry.
func (br *bitReader) fetchByte() (byte, error) {
	if br.pos == len(br.buf) {
		base := br.off + int64(len(br.buf))
		want := br.limit - base
		if want <= 0 {
			return 0, ErrTruncatedInput
		}
		if want > readBufferSize {
			want = readBufferSize
		}
		n, err := br.src.ReadAt(br.store[:want], base)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				return 0, err
			}
			return 0, ErrTruncatedInput
		}
		br.off = base
		br.buf = br.store[:n]
		br.pos = 0
	}
	b := br.buf[br.pos]
	br.pos++
	return b, nil
}

// get returns the next count bits of the stream, least-significant bit
// first. count must be between 1 and 16.
func (br *bitReader) get(count uint) (uint32, error) {
	for br.nbits < count {
		b, err := br.fetchByte()
		if err != nil {
			return 0, err
		}
		br.bits |= uint32(b) << br.nbits
		br.nbits += 8
	}
	value := br.bits & ((1 << count) - 1)
	br.bits >>= count
	br.nbits -= count
	return value, nil
}

// prime starts the reader mid-byte: the low count bits of the first byte
// were already consumed by a previous decoding pass. Must be called
// before any get.
func (br *bitReader) prime(count uint8) error {
	b, err := br.fetchByte()
	if err != nil {
		return err
	}
	br.bits = uint32(b) >> count
	br.nbits = uint(8 - count)
	return nil
}

// alignToByte discards any partially consumed byte so the next get
// starts on a byte boundary.
func (br *bitReader) alignToByte() {
	drop := br.nbits % 8
	br.bits >>= drop
	br.nbits -= drop
}

// bitPosition returns the absolute position of the next unconsumed bit,
// in bits from the start of the underlying reader.
func (br *bitReader) bitPosition() int64 {
	return (br.off+int64(br.pos))*8 - int64(br.nbits)
}
