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

import "fmt"

// maxCodeLength is the longest Huffman code allowed by DEFLATE.
const maxCodeLength = 15

// huffmanTree is a canonical Huffman decoding table built from an array
// of code lengths per RFC 1951 section 3.2.2. Codes are assigned in
// increasing (length, symbol) order, so the table only needs the number
// of codes of each length and the symbols sorted the same way.
type huffmanTree struct {
	counts  [maxCodeLength + 1]uint16
	symbols []uint16
}

// newHuffmanTree builds a decoding table from code lengths. A length of
// zero means the symbol is absent. An over-subscribed set of lengths is
// rejected; an incomplete set is allowed and simply cannot decode the
// missing codes.
func newHuffmanTree(lengths []uint8) (*huffmanTree, error) {
	tree := &huffmanTree{}

	total := 0
	for _, length := range lengths {
		if length > maxCodeLength {
			return nil, fmt.Errorf("%w: code length %d", ErrInvalidData, length)
		}
		tree.counts[length]++
		if length > 0 {
			total++
		}
	}
	tree.counts[0] = 0

	// Check the lengths describe at most a full binary tree.
	left := 1
	for length := 1; length <= maxCodeLength; length++ {
		left <<= 1
		left -= int(tree.counts[length])
		if left < 0 {
			return nil, fmt.Errorf("%w: over-subscribed code lengths", ErrInvalidData)
		}
	}

	// First symbol slot for each code length.
	var offsets [maxCodeLength + 1]uint16
	for length := 1; length < maxCodeLength; length++ {
		offsets[length+1] = offsets[length] + tree.counts[length]
	}

	tree.symbols = make([]uint16, total)
	for symbol, length := range lengths {
		if length != 0 {
			tree.symbols[offsets[length]] = uint16(symbol) //nolint:gosec // Safe: symbol < 320
			offsets[length]++
		}
	}

	return tree, nil
}

// decode reads one symbol from the bit reader. Bits are accumulated
// MSB-first into a running code; at each length the code is checked
// against that length's bucket of canonical codes.
func (t *huffmanTree) decode(br *bitReader) (uint16, error) {
	code, first, index := 0, 0, 0
	for length := 1; length <= maxCodeLength; length++ {
		bit, err := br.get(1)
		if err != nil {
			return 0, err
		}
		code |= int(bit)

		count := int(t.counts[length])
		if code-first < count {
			return t.symbols[index+code-first], nil
		}
		index += count
		first += count
		first <<= 1
		code <<= 1
	}
	return 0, fmt.Errorf("%w: invalid huffman code", ErrInvalidData)
}
