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

// Package deflate decodes raw DEFLATE (RFC 1951) data one block at a
// time. Unlike the stdlib flate reader it reports the exact bit position
// of every block boundary, accepts a pre-seeded sliding-window
// dictionary, and can start mid-byte, which is what makes resumable
// random access into a gzip stream possible.
package deflate

import (
	"fmt"
	"io"
)

// WindowSize is the DEFLATE sliding window: back-references never reach
// further than this many bytes.
const WindowSize = 32768

// Block types per RFC 1951 section 3.2.3.
const (
	blockTypeStored  = 0
	blockTypeFixed   = 1
	blockTypeDynamic = 2
)

// maxLiteralCodes and friends bound the dynamic Huffman header fields.
const (
	maxLiteralCodes    = 286
	maxDistanceCodes   = 30
	numCodeLengthCodes = 19
	endOfBlockSymbol   = 256
)

// lengthBase and lengthExtra map length symbols 257..285 to base copy
// lengths and extra bit counts (RFC 1951 section 3.2.5).
var lengthBase = [29]uint16{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
	35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtra = [29]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
	3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// distanceBase and distanceExtra map distance symbols 0..29 to base
// distances and extra bit counts.
var distanceBase = [30]uint16{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
	257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193,
	12289, 16385, 24577,
}

var distanceExtra = [30]uint8{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
	7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// codeLengthOrder is the permuted order in which code-length code
// lengths appear in a dynamic block header.
var codeLengthOrder = [numCodeLengthCodes]uint8{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// Fixed Huffman trees (RFC 1951 section 3.2.6), built once.
var (
	fixedLiteralTree  *huffmanTree
	fixedDistanceTree *huffmanTree
)

func init() {
	literalLengths := make([]uint8, 288)
	for i := range literalLengths {
		switch {
		case i < 144:
			literalLengths[i] = 8
		case i < 256:
			literalLengths[i] = 9
		case i < 280:
			literalLengths[i] = 7
		default:
			literalLengths[i] = 8
		}
	}

	distanceLengths := make([]uint8, 30)
	for i := range distanceLengths {
		distanceLengths[i] = 5
	}

	var err error
	if fixedLiteralTree, err = newHuffmanTree(literalLengths); err != nil {
		panic(err)
	}
	if fixedDistanceTree, err = newHuffmanTree(distanceLengths); err != nil {
		panic(err)
	}
}

// Decoder decodes one raw DEFLATE stream block by block.
//
// The decoder appends everything it produces to an internal history
// buffer that doubles as the back-reference window. Pending returns the
// bytes produced since the last TrimWindow/SetDictionary; TrimWindow
// drops all but the last WindowSize bytes so long streams can be decoded
// in bounded memory.
type Decoder struct {
	br    bitReader
	hist  []byte // window + produced output
	taken int    // bytes of hist already handed out
	final bool   // BFINAL seen on the most recent block header
}

// NewDecoder creates a decoder reading compressed bytes from src
// starting at offset. Bytes at or beyond limit are treated as end of
// input.
func NewDecoder(src io.ReaderAt, offset, limit int64) *Decoder {
	return &Decoder{
		br: newBitReader(src, offset, limit),
	}
}

// Prime resumes a stream whose first byte was partially consumed by an
// earlier pass: the low count bits of that byte are discarded. Must be
// called before the first StepBlock.
func (d *Decoder) Prime(count uint8) error {
	if count == 0 {
		return nil
	}
	if count > 7 {
		return fmt.Errorf("%w: prime count %d", ErrInvalidData, count)
	}
	return d.br.prime(count)
}

// SetDictionary seeds the sliding window with the tail of previously
// decoded output, so back-references into data before the resume point
// resolve. Must be called before the first StepBlock.
func (d *Decoder) SetDictionary(dict []byte) {
	if len(dict) > WindowSize {
		dict = dict[len(dict)-WindowSize:]
	}
	d.hist = append(d.hist[:0], dict...)
	d.taken = len(d.hist)
}

// Finished reports whether the final block of the stream has been
// decoded.
func (d *Decoder) Finished() bool {
	return d.final
}

// Pending returns the output produced since the last TrimWindow or
// SetDictionary. The slice is only valid until the next decoder call.
func (d *Decoder) Pending() []byte {
	return d.hist[d.taken:]
}

// WindowTail returns a copy of the last min(WindowSize, produced) bytes
// of output, the dictionary a later decoder needs to resume from the
// current position.
func (d *Decoder) WindowTail() []byte {
	start := 0
	if len(d.hist) > WindowSize {
		start = len(d.hist) - WindowSize
	}
	tail := make([]byte, len(d.hist)-start)
	copy(tail, d.hist[start:])
	return tail
}

// TrimWindow marks all pending output as consumed and compacts the
// history buffer down to the sliding window.
func (d *Decoder) TrimWindow() {
	if len(d.hist) > WindowSize {
		copy(d.hist, d.hist[len(d.hist)-WindowSize:])
		d.hist = d.hist[:WindowSize]
	}
	d.taken = len(d.hist)
}

// BitPosition returns the position of the next unconsumed compressed
// bit as a byte offset into the underlying reader plus a bit remainder
// 0..7 within that byte.
func (d *Decoder) BitPosition() (int64, uint8) {
	pos := d.br.bitPosition()
	return pos >> 3, uint8(pos & 7) //nolint:gosec // Safe: masked to 3 bits
}

// StepBlock decodes exactly one DEFLATE block, appending its output to
// the history buffer. It reports whether the block carried the BFINAL
// flag. Calling it again after the final block returns ErrEndOfStream.
func (d *Decoder) StepBlock() (bool, error) {
	if d.final {
		return true, ErrEndOfStream
	}

	bfinal, err := d.br.get(1)
	if err != nil {
		return false, err
	}
	btype, err := d.br.get(2)
	if err != nil {
		return false, err
	}

	switch btype {
	case blockTypeStored:
		err = d.inflateStored()
	case blockTypeFixed:
		err = d.inflateCompressed(fixedLiteralTree, fixedDistanceTree)
	case blockTypeDynamic:
		err = d.inflateDynamic()
	default:
		err = fmt.Errorf("%w: reserved block type", ErrInvalidData)
	}
	if err != nil {
		return false, err
	}

	if bfinal == 1 {
		d.final = true
	}
	return d.final, nil
}

// inflateStored copies a stored (uncompressed) block.
func (d *Decoder) inflateStored() error {
	d.br.alignToByte()

	length, err := d.br.get(16)
	if err != nil {
		return err
	}
	complement, err := d.br.get(16)
	if err != nil {
		return err
	}
	if length != ^complement&0xffff {
		return fmt.Errorf("%w: stored block length mismatch", ErrInvalidData)
	}

	for i := uint32(0); i < length; i++ {
		b, err := d.br.fetchByte()
		if err != nil {
			return err
		}
		d.hist = append(d.hist, b)
	}
	return nil
}

// inflateDynamic reads the dynamic Huffman header, builds the
// literal/length and distance trees and decodes the block body.
func (d *Decoder) inflateDynamic() error {
	hlit, err := d.br.get(5)
	if err != nil {
		return err
	}
	hdist, err := d.br.get(5)
	if err != nil {
		return err
	}
	hclen, err := d.br.get(4)
	if err != nil {
		return err
	}

	numLiteral := int(hlit) + 257
	numDistance := int(hdist) + 1
	numCodeLength := int(hclen) + 4

	if numLiteral > maxLiteralCodes || numDistance > maxDistanceCodes {
		return fmt.Errorf("%w: too many literal or distance codes", ErrInvalidData)
	}

	var codeLengthLengths [numCodeLengthCodes]uint8
	for i := 0; i < numCodeLength; i++ {
		bits, err := d.br.get(3)
		if err != nil {
			return err
		}
		codeLengthLengths[codeLengthOrder[i]] = uint8(bits) //nolint:gosec // Safe: 3 bits
	}

	codeLengthTree, err := newHuffmanTree(codeLengthLengths[:])
	if err != nil {
		return err
	}

	// Literal/length and distance code lengths share one encoded
	// sequence with run-length symbols 16, 17 and 18.
	lengths := make([]uint8, numLiteral+numDistance)
	for index := 0; index < len(lengths); {
		symbol, err := codeLengthTree.decode(&d.br)
		if err != nil {
			return err
		}

		switch {
		case symbol < 16:
			lengths[index] = uint8(symbol) //nolint:gosec // Safe: < 16
			index++
		case symbol == 16:
			if index == 0 {
				return fmt.Errorf("%w: repeat with no previous length", ErrInvalidData)
			}
			previous := lengths[index-1]
			extra, err := d.br.get(2)
			if err != nil {
				return err
			}
			index, err = fillLengths(lengths, index, previous, int(extra)+3)
			if err != nil {
				return err
			}
		case symbol == 17:
			extra, err := d.br.get(3)
			if err != nil {
				return err
			}
			index, err = fillLengths(lengths, index, 0, int(extra)+3)
			if err != nil {
				return err
			}
		default: // symbol == 18
			extra, err := d.br.get(7)
			if err != nil {
				return err
			}
			index, err = fillLengths(lengths, index, 0, int(extra)+11)
			if err != nil {
				return err
			}
		}
	}

	if lengths[endOfBlockSymbol] == 0 {
		return fmt.Errorf("%w: missing end-of-block code", ErrInvalidData)
	}

	literalTree, err := newHuffmanTree(lengths[:numLiteral])
	if err != nil {
		return err
	}
	distanceTree, err := newHuffmanTree(lengths[numLiteral:])
	if err != nil {
		return err
	}

	return d.inflateCompressed(literalTree, distanceTree)
}

// fillLengths writes count copies of value starting at index, erroring
// when the run overflows the combined length array.
func fillLengths(lengths []uint8, index int, value uint8, count int) (int, error) {
	if index+count > len(lengths) {
		return 0, fmt.Errorf("%w: code length run past end", ErrInvalidData)
	}
	for i := 0; i < count; i++ {
		lengths[index] = value
		index++
	}
	return index, nil
}

// inflateCompressed decodes literal and length/distance symbols until
// the end-of-block marker.
func (d *Decoder) inflateCompressed(literalTree, distanceTree *huffmanTree) error {
	for {
		symbol, err := literalTree.decode(&d.br)
		if err != nil {
			return err
		}

		if symbol < endOfBlockSymbol {
			d.hist = append(d.hist, byte(symbol))
			continue
		}
		if symbol == endOfBlockSymbol {
			return nil
		}
		if symbol > 285 {
			return fmt.Errorf("%w: invalid length symbol %d", ErrInvalidData, symbol)
		}

		lengthIndex := symbol - 257
		length := int(lengthBase[lengthIndex])
		if extraBits := lengthExtra[lengthIndex]; extraBits > 0 {
			extra, err := d.br.get(uint(extraBits))
			if err != nil {
				return err
			}
			length += int(extra)
		}

		distanceSymbol, err := distanceTree.decode(&d.br)
		if err != nil {
			return err
		}
		if distanceSymbol >= maxDistanceCodes {
			return fmt.Errorf("%w: invalid distance symbol %d", ErrInvalidData, distanceSymbol)
		}
		distance := int(distanceBase[distanceSymbol])
		if extraBits := distanceExtra[distanceSymbol]; extraBits > 0 {
			extra, err := d.br.get(uint(extraBits))
			if err != nil {
				return err
			}
			distance += int(extra)
		}

		if distance > len(d.hist) {
			return fmt.Errorf("%w: back-reference before start of window", ErrInvalidData)
		}

		// Byte-by-byte copy: with distance < length the copy overlaps
		// its own output, which is how DEFLATE encodes runs.
		for i := 0; i < length; i++ {
			d.hist = append(d.hist, d.hist[len(d.hist)-distance])
		}
	}
}
