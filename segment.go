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

import "sort"

// Segment sizing. A new segment is started at the first DEFLATE block
// boundary after either threshold is crossed, so a segment carries at
// most one block of overshoot.
const (
	// segmentSize is the compressed-byte threshold per segment.
	segmentSize = 1 << 20

	// uncompressedBlockSize is the uncompressed-byte threshold per
	// segment.
	uncompressedBlockSize = 1 << 20
)

// segmentDescriptor carries enough state to decode one slice of a
// DEFLATE stream independently: where its compressed bits start, how
// many bits of the first byte were already consumed, and the sliding
// window preceding it.
type segmentDescriptor struct {
	compressedOffset uint64 // file offset of the first compressed byte
	compressedSize   uint64
	uncompressedSize int
	startingBitCount uint8  // bits of the first byte already consumed, 0..7
	dictionary       []byte // last <= 32768 bytes of preceding output
}

// segmentTable is the append-only table of segment descriptors plus the
// prefix sums used to resolve uncompressed offsets.
type segmentTable struct {
	segments []segmentDescriptor
	ends     []uint64 // cumulative uncompressed end offset per segment
}

// append adds a segment and extends the prefix-sum index.
func (t *segmentTable) append(seg segmentDescriptor) {
	end := uint64(seg.uncompressedSize) //nolint:gosec // Safe: sizes are non-negative
	if n := len(t.ends); n > 0 {
		end += t.ends[n-1]
	}
	t.segments = append(t.segments, seg)
	t.ends = append(t.ends, end)
}

// resolve maps an uncompressed offset to a segment index and the
// offset within that segment. It returns false when offset is at or
// past the end of the indexed data.
func (t *segmentTable) resolve(offset uint64) (int, int, bool) {
	index := sort.Search(len(t.ends), func(i int) bool {
		return t.ends[i] > offset
	})
	if index == len(t.segments) {
		return 0, 0, false
	}
	return index, int(offset - t.start(index)), true //nolint:gosec // Safe: intra-segment offsets fit in int
}

// start returns the uncompressed offset where segment index begins.
func (t *segmentTable) start(index int) uint64 {
	if index == 0 {
		return 0
	}
	return t.ends[index-1]
}

// totalUncompressed returns the uncompressed size of all indexed
// segments.
func (t *segmentTable) totalUncompressed() uint64 {
	if n := len(t.ends); n > 0 {
		return t.ends[n-1]
	}
	return 0
}

// count returns the number of segments.
func (t *segmentTable) count() int {
	return len(t.segments)
}

// clear zeroes the segment dictionaries and drops the table. The
// dictionaries hold decoded file content, so they are scrubbed rather
// than just released.
func (t *segmentTable) clear() {
	for i := range t.segments {
		dict := t.segments[i].dictionary
		for j := range dict {
			dict[j] = 0
		}
		t.segments[i].dictionary = nil
	}
	t.segments = nil
	t.ends = nil
}
