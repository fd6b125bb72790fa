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
	"golang.org/x/text/encoding/charmap"
)

// memberDescriptor holds the metadata of one GZIP member plus its span
// in the compressed source and the virtual uncompressed stream.
// Descriptors are immutable once appended to the file's member table.
type memberDescriptor struct {
	flags            uint8
	modificationTime uint32
	operatingSystem  uint8
	name             []byte // raw header bytes including the NUL
	comments         []byte

	headerSize uint64 // bytes occupied by header and variable fields
	dataOffset uint64 // file offset of the first DEFLATE byte
	dataSize   uint64 // bytes consumed by the DEFLATE stream

	uncompressedOffset uint64 // start offset in the virtual stream
	uncompressedSize   uint64 // decoded size of this member

	calculatedChecksum uint32 // rolling CRC-32 over the decoded data
	decompressionError bool   // DEFLATE or footer validation failed
}

// Member is a read-through handle to one member of an open File. It
// stays valid until the File is closed.
type Member struct {
	file  *File
	index int
}

// descriptor returns the underlying descriptor. Descriptors are
// append-only and immutable, so no lock is needed.
func (m *Member) descriptor() *memberDescriptor {
	return &m.file.members[m.index]
}

// Flags returns the raw header flag bits.
func (m *Member) Flags() uint8 {
	return m.descriptor().flags
}

// ModificationTime returns the header modification time in POSIX
// seconds; zero means not set.
func (m *Member) ModificationTime() uint32 {
	return m.descriptor().modificationTime
}

// OperatingSystem returns the raw operating-system byte of the header.
func (m *Member) OperatingSystem() uint8 {
	return m.descriptor().operatingSystem
}

// OperatingSystemString returns the RFC 1952 name of the header's
// operating-system byte.
func (m *Member) OperatingSystemString() string {
	switch m.descriptor().operatingSystem {
	case 0:
		return "FAT filesystem (MS-DOS, OS/2, NT/Win32)"
	case 1:
		return "Amiga"
	case 2:
		return "VMS (or OpenVMS)"
	case 3:
		return "Unix"
	case 4:
		return "VM/CMS"
	case 5:
		return "Atari TOS"
	case 6:
		return "HPFS filesystem (OS/2, NT)"
	case 7:
		return "Macintosh"
	case 8:
		return "Z-System"
	case 9:
		return "CP/M"
	case 10:
		return "TOPS-20"
	case 11:
		return "NTFS filesystem (NT)"
	case 12:
		return "QDOS"
	case 13:
		return "Acorn RISCOS"
	case 255:
		return "unknown"
	default:
		return "reserved"
	}
}

// Name returns the original file name stored in the header, decoded
// from ISO-8859-1 without the NUL terminator. The second return value
// is false when the header carries no name.
func (m *Member) Name() (string, bool) {
	return latin1String(m.descriptor().name)
}

// Comments returns the header comment, decoded the same way as Name.
func (m *Member) Comments() (string, bool) {
	return latin1String(m.descriptor().comments)
}

// UncompressedSize returns the decoded size of this member in bytes.
func (m *Member) UncompressedSize() uint64 {
	return m.descriptor().uncompressedSize
}

// HasDecompressionError reports whether decoding or footer validation
// of this member failed.
func (m *Member) HasDecompressionError() bool {
	return m.descriptor().decompressionError
}

// latin1String decodes raw ISO-8859-1 header bytes to a UTF-8 string,
// dropping the trailing NUL.
func latin1String(raw []byte) (string, bool) {
	if raw == nil {
		return "", false
	}
	if n := len(raw); n > 0 && raw[n-1] == 0 {
		raw = raw[:n-1]
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO-8859-1 maps every byte; decoding cannot fail.
		return string(raw), true
	}
	return string(decoded), true
}
