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
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// maxCachedSegments bounds the number of decoded segment buffers kept
// in memory.
const maxCachedSegments = 8

// segmentCache is a bounded LRU of decoded segment buffers keyed by
// segment index. Cached buffers are immutable once stored; concurrent
// misses for the same segment coalesce into a single decompression.
type segmentCache struct {
	entries *lru.Cache[int, []byte]
	loads   singleflight.Group
}

// newSegmentCache creates a cache holding up to maxCachedSegments
// decoded segments.
func newSegmentCache() (*segmentCache, error) {
	entries, err := lru.New[int, []byte](maxCachedSegments)
	if err != nil {
		return nil, fmt.Errorf("create segment cache: %w", err)
	}
	return &segmentCache{entries: entries}, nil
}

// get returns the decoded bytes of a segment, invoking load on a miss.
func (c *segmentCache) get(index int, load func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.entries.Get(index); ok {
		return data, nil
	}

	value, err, _ := c.loads.Do(strconv.Itoa(index), func() (any, error) {
		if data, ok := c.entries.Get(index); ok {
			return data, nil
		}
		data, err := load()
		if err != nil {
			return nil, err
		}
		c.entries.Add(index, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	data, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("segment cache: unexpected entry type %T", value)
	}
	return data, nil
}

// purge drops all cached segment buffers.
func (c *segmentCache) purge() {
	c.entries.Purge()
}
