//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package segmentindex maps every key to the newest on-disk location of its
// most recent record.
package segmentindex

import (
	"bytes"
	"sort"
)

// Location addresses one record in one sealed segment. Tombstone mirrors the
// op flag of that record so that live keys can be counted without disk
// reads.
type Location struct {
	SegmentID uint64
	Offset    int64
	Tombstone bool
}

// Index is not safe for concurrent use, the owning store guards it with its
// state lock.
type Index struct {
	locations map[string]Location
	live      int
}

func New() *Index {
	return &Index{locations: map[string]Location{}}
}

func (i *Index) Get(key []byte) (Location, bool) {
	loc, ok := i.locations[string(key)]
	return loc, ok
}

func (i *Index) Set(key []byte, loc Location) {
	if prev, ok := i.locations[string(key)]; ok && !prev.Tombstone {
		i.live--
	}

	i.locations[string(key)] = loc
	if !loc.Tombstone {
		i.live++
	}
}

func (i *Index) Delete(key []byte) {
	prev, ok := i.locations[string(key)]
	if !ok {
		return
	}

	if !prev.Tombstone {
		i.live--
	}
	delete(i.locations, string(key))
}

// Len is the number of indexed keys, tombstones included
func (i *Index) Len() int {
	return len(i.locations)
}

// LiveCount is the number of indexed keys whose newest record is a value
func (i *Index) LiveCount() int {
	return i.live
}

// LiveKeys returns all keys whose newest record is a value, in byte order
func (i *Index) LiveKeys() [][]byte {
	out := make([][]byte, 0, i.live)
	for key, loc := range i.locations {
		if loc.Tombstone {
			continue
		}
		out = append(out, []byte(key))
	}

	sort.Slice(out, func(a, b int) bool {
		return bytes.Compare(out[a], out[b]) < 0
	})
	return out
}

// Rewrite applies the result of a compaction. Every key whose location
// points into one of the merged segments is moved to its location in the
// compaction output, or removed if the compaction dropped it. Keys pointing
// at segments outside of the merge set, and keys not in the index at all
// (currently shadowed by the memtable), are left untouched.
func (i *Index) Rewrite(merged map[uint64]struct{}, survivors map[string]Location) {
	for key, loc := range i.locations {
		if _, ok := merged[loc.SegmentID]; !ok {
			continue
		}

		if next, ok := survivors[key]; ok {
			i.Set([]byte(key), next)
		} else {
			i.Delete([]byte(key))
		}
	}
}
