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

package binary

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadFullAt(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{1, 2, 3, 4, 5})

	buf := make([]byte, 3)
	if err := ReadFullAt(r, 1, buf); err != nil {
		t.Fatalf("ReadFullAt failed: %v", err)
	}
	if !bytes.Equal(buf, []byte{2, 3, 4}) {
		t.Errorf("got %v", buf)
	}
}

func TestReadFullAtShort(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{1, 2})

	if err := ReadFullAt(r, 1, make([]byte, 4)); !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
	if err := ReadFullAt(r, 10, make([]byte, 1)); !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead past end, got %v", err)
	}
}

func TestReadLittleEndian(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{0x00, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12})

	u16, err := ReadUint16LEAt(r, 1)
	if err != nil {
		t.Fatalf("ReadUint16LEAt failed: %v", err)
	}
	if u16 != 0x1234 {
		t.Errorf("u16 = 0x%04x", u16)
	}

	u32, err := ReadUint32LEAt(r, 3)
	if err != nil {
		t.Fatalf("ReadUint32LEAt failed: %v", err)
	}
	if u32 != 0x12345678 {
		t.Errorf("u32 = 0x%08x", u32)
	}
}

func TestReadBytesAt(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte("abcdef"))

	got, err := ReadBytesAt(r, 2, 3)
	if err != nil {
		t.Fatalf("ReadBytesAt failed: %v", err)
	}
	if !bytes.Equal(got, []byte("cde")) {
		t.Errorf("got %q", got)
	}
}
