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
	"io/fs"
	"path"
	"time"
)

// FS returns a read-only fs.FS with one file per member in the root
// directory. Files are named after the member's stored name when
// present, with a numbered fallback, and read through the file's
// segment cache. The returned filesystem stays valid until Close.
func (f *File) FS() (fs.FS, error) {
	count, err := f.MemberCount()
	if err != nil {
		return nil, err
	}

	names := make([]string, count)
	taken := make(map[string]bool, count)
	for i := 0; i < count; i++ {
		name := memberFileName(f.members[i].name, i)
		if taken[name] {
			name = fmt.Sprintf("%s.%d", name, i+1)
		}
		taken[name] = true
		names[i] = name
	}

	return &memberFS{file: f, names: names}, nil
}

// memberFileName derives a filesystem name for a member: the base name
// of the stored name, or a numbered placeholder.
func memberFileName(raw []byte, index int) string {
	name, ok := latin1String(raw)
	if ok {
		name = path.Base(name)
		if name != "" && name != "." && name != ".." && name != "/" {
			return name
		}
	}
	return fmt.Sprintf("member-%d", index+1)
}

// memberFS exposes the members of an open File as a flat filesystem.
type memberFS struct {
	file  *File
	names []string
}

func (fsys *memberFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &memberDir{fsys: fsys}, nil
	}

	for i, candidate := range fsys.names {
		if candidate == name {
			descriptor := &fsys.file.members[i]
			return &memberFile{
				file:  fsys.file,
				info:  fsys.fileInfo(i),
				start: descriptor.uncompressedOffset,
				size:  int64(descriptor.uncompressedSize), //nolint:gosec // Safe: member sizes fit in int64
			}, nil
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// fileInfo builds the FileInfo for member i.
func (fsys *memberFS) fileInfo(i int) memberFileInfo {
	descriptor := &fsys.file.members[i]
	return memberFileInfo{
		name:    fsys.names[i],
		size:    int64(descriptor.uncompressedSize), //nolint:gosec // Safe: member sizes fit in int64
		modTime: time.Unix(int64(descriptor.modificationTime), 0),
	}
}

// memberFile is an open member, reading its span of the virtual
// uncompressed stream.
type memberFile struct {
	file   *File
	info   memberFileInfo
	start  uint64
	size   int64
	pos    int64
	closed bool
}

func (mf *memberFile) Read(p []byte) (int, error) {
	if mf.closed {
		return 0, &fs.PathError{Op: "read", Path: mf.info.name, Err: fs.ErrClosed}
	}
	if mf.pos >= mf.size {
		return 0, io.EOF
	}

	if remaining := mf.size - mf.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := mf.file.ReadAt(p, int64(mf.start)+mf.pos) //nolint:gosec // Safe: offsets bounded by stream size
	mf.pos += int64(n)
	if err != nil && err != io.EOF { //nolint:errorlint // io.EOF is never wrapped here
		return n, err
	}
	return n, nil
}

func (mf *memberFile) Stat() (fs.FileInfo, error) {
	return mf.info, nil
}

func (mf *memberFile) Close() error {
	mf.closed = true
	return nil
}

// memberDir is the root directory listing.
type memberDir struct {
	fsys   *memberFS
	offset int
}

func (d *memberDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: ".", Err: fs.ErrInvalid}
}

func (d *memberDir) Stat() (fs.FileInfo, error) {
	return memberFileInfo{name: ".", dir: true}, nil
}

func (d *memberDir) Close() error {
	return nil
}

func (d *memberDir) ReadDir(n int) ([]fs.DirEntry, error) {
	remaining := len(d.fsys.names) - d.offset
	if remaining == 0 {
		if n <= 0 {
			return nil, nil
		}
		return nil, io.EOF
	}
	if n <= 0 || n > remaining {
		n = remaining
	}

	entries := make([]fs.DirEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, fs.FileInfoToDirEntry(d.fsys.fileInfo(d.offset+i)))
	}
	d.offset += n
	return entries, nil
}

// memberFileInfo implements fs.FileInfo for member files and the root
// directory.
type memberFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (fi memberFileInfo) Name() string { return fi.name }
func (fi memberFileInfo) Size() int64  { return fi.size }

func (fi memberFileInfo) Mode() fs.FileMode {
	if fi.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (fi memberFileInfo) ModTime() time.Time { return fi.modTime }
func (fi memberFileInfo) IsDir() bool        { return fi.dir }
func (fi memberFileInfo) Sys() any           { return nil }
