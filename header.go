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
	"sync/atomic"

	"github.com/ZaparooProject/go-gzipf/internal/binary"
)

// GZIP member header magic bytes (RFC 1952).
const (
	memberSignature1 = 0x1f
	memberSignature2 = 0x8b
)

// compressionMethodDeflate is the only compression method defined by
// RFC 1952.
const compressionMethodDeflate = 8

// Member header flag bits.
const (
	FlagText      = 0x01 // FTEXT: probably ASCII text
	FlagHeaderCRC = 0x02 // FHCRC: CRC-16 of the header present
	FlagExtra     = 0x04 // FEXTRA: extra field present
	FlagName      = 0x08 // FNAME: original file name present
	FlagComment   = 0x10 // FCOMMENT: comment present

	supportedFlagsMask = FlagText | FlagHeaderCRC | FlagExtra | FlagName | FlagComment
)

// Fixed structure sizes.
const (
	memberHeaderSize = 10
	memberFooterSize = 8
)

// Name and comment strings are scanned for their NUL terminator in
// fixed-size chunks, with a bound on the number of chunks so a missing
// terminator cannot run away.
const (
	stringChunkSize = 64
	maxStringChunks = 256
)

// memberHeader holds a parsed member header including its variable
// length fields.
type memberHeader struct {
	flags            uint8
	modificationTime uint32
	operatingSystem  uint8
	name             []byte // raw bytes including the NUL terminator
	comments         []byte
	size             uint64 // header size including variable fields
}

// parseMemberHeader parses the member header at offset. The abort flag,
// when non-nil, is polled between string chunks.
func parseMemberHeader(src Source, offset int64, abort *atomic.Bool) (*memberHeader, error) {
	var fixed [memberHeaderSize]byte
	if err := binary.ReadFullAt(src, offset, fixed[:]); err != nil {
		return nil, truncatedOr(err)
	}

	if fixed[0] != memberSignature1 || fixed[1] != memberSignature2 {
		return nil, fmt.Errorf("%w: 0x%02x 0x%02x", ErrInvalidSignature, fixed[0], fixed[1])
	}
	if fixed[2] != compressionMethodDeflate {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCompressionMethod, fixed[2])
	}

	header := &memberHeader{
		flags:            fixed[3],
		modificationTime: uint32(fixed[4]) | uint32(fixed[5])<<8 | uint32(fixed[6])<<16 | uint32(fixed[7])<<24,
		operatingSystem:  fixed[9],
	}
	// fixed[8] is XFL, informational only.

	if header.flags&^supportedFlagsMask != 0 {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnsupportedFlags, header.flags)
	}

	cursor := offset + memberHeaderSize

	if header.flags&FlagExtra != 0 {
		extraLength, err := binary.ReadUint16LEAt(src, cursor)
		if err != nil {
			return nil, truncatedOr(err)
		}
		cursor += 2 + int64(extraLength)
	}

	if header.flags&FlagName != 0 {
		name, n, err := readTerminatedString(src, cursor, abort)
		if err != nil {
			return nil, err
		}
		header.name = name
		cursor += n
	}

	if header.flags&FlagComment != 0 {
		comments, n, err := readTerminatedString(src, cursor, abort)
		if err != nil {
			return nil, err
		}
		header.comments = comments
		cursor += n
	}

	if header.flags&FlagHeaderCRC != 0 {
		// The header CRC-16 is read but not validated.
		if _, err := binary.ReadUint16LEAt(src, cursor); err != nil {
			return nil, truncatedOr(err)
		}
		cursor += 2
	}

	if cursor > int64(src.Size()) {
		return nil, fmt.Errorf("%w: header extends past end of source", ErrTruncatedInput)
	}

	header.size = uint64(cursor - offset) //nolint:gosec // Safe: cursor >= offset

	return header, nil
}

// readTerminatedString reads a NUL-terminated byte string at offset in
// chunks of stringChunkSize bytes. It returns the string including the
// terminator and the number of bytes consumed.
func readTerminatedString(src Source, offset int64, abort *atomic.Bool) ([]byte, int64, error) {
	var value []byte

	remaining := int64(src.Size()) - offset
	for chunk := 0; chunk < maxStringChunks; chunk++ {
		if abort != nil && abort.Load() {
			return nil, 0, ErrAborted
		}
		if remaining <= 0 {
			return nil, 0, fmt.Errorf("%w: unterminated string", ErrTruncatedInput)
		}

		size := int64(stringChunkSize)
		if size > remaining {
			size = remaining
		}
		data, err := binary.ReadBytesAt(src, offset+int64(len(value)), int(size))
		if err != nil {
			return nil, 0, truncatedOr(err)
		}
		remaining -= size

		for i, b := range data {
			if b == 0 {
				value = append(value, data[:i+1]...)
				return value, int64(len(value)), nil
			}
		}
		value = append(value, data...)
	}

	return nil, 0, fmt.Errorf("%w: unterminated string", ErrTruncatedInput)
}

// memberFooter holds the 8-byte member footer.
type memberFooter struct {
	checksum         uint32 // CRC-32 of the uncompressed data
	uncompressedSize uint32 // ISIZE: uncompressed size modulo 2^32
}

// parseMemberFooter parses the member footer at offset.
func parseMemberFooter(src Source, offset int64) (*memberFooter, error) {
	var fixed [memberFooterSize]byte
	if err := binary.ReadFullAt(src, offset, fixed[:]); err != nil {
		return nil, truncatedOr(err)
	}

	return &memberFooter{
		checksum:         uint32(fixed[0]) | uint32(fixed[1])<<8 | uint32(fixed[2])<<16 | uint32(fixed[3])<<24,
		uncompressedSize: uint32(fixed[4]) | uint32(fixed[5])<<8 | uint32(fixed[6])<<16 | uint32(fixed[7])<<24,
	}, nil
}

// truncatedOr maps a short read to ErrTruncatedInput and passes other
// reader failures through.
func truncatedOr(err error) error {
	if errors.Is(err, binary.ErrShortRead) {
		return fmt.Errorf("%w: %v", ErrTruncatedInput, err) //nolint:errorlint // Single sentinel wrap is intentional
	}
	return err
}
