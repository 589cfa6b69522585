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

package lsmkv

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/membership"
	"github.com/weaviate/logkv/entities/lsmkv"
)

func TestSegmentFileNames(t *testing.T) {
	name := segmentFileName(42, levelCompacted)
	assert.Equal(t, "segment-00000000000000000042-L1.db", name)

	type test struct {
		name  string
		id    uint64
		level uint16
		ok    bool
	}

	tests := []test{
		{name: name, id: 42, level: 1, ok: true},
		{name: name + tmpExt, id: 42, level: 1, ok: true},
		{name: name + compactedExt, id: 42, level: 1, ok: true},
		{name: segmentFileName(7, levelFlush), id: 7, level: 0, ok: true},
		{name: "00000000000000000001.wal"},
		{name: "segment-abc-L0.db"},
		{name: "segment-00000000000000000001.db"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id, level, ok := parseSegmentFileName(test.name)
			require.Equal(t, test.ok, ok)
			if ok {
				assert.Equal(t, test.id, id)
				assert.Equal(t, test.level, level)
			}
		})
	}

	t.Run("lexicographic order is id order", func(t *testing.T) {
		assert.Less(t, segmentFileName(9, 1), segmentFileName(10, 0))
	})
}

func TestSegment(t *testing.T) {
	for _, mmapContents := range []bool{true, false} {
		t.Run(fmt.Sprintf("mmap=%t", mmapContents), func(t *testing.T) {
			dir := t.TempDir()
			logger, _ := test.NewNullLogger()

			filter := membership.New(1000)
			seg, err := createSegment(dir, 1, levelFlush, filter, logger)
			require.NoError(t, err)

			entries := []Entry{
				{Key: []byte("a"), Value: []byte("alpha"), Op: OpPut},
				{Key: []byte("b"), Op: OpDelete},
				{Key: []byte("c"), Value: []byte{}, Op: OpPut},
			}

			var offsets []int64
			t.Run("append returns stable offsets", func(t *testing.T) {
				var expected int64
				for _, e := range entries {
					offset, err := seg.append(e)
					require.NoError(t, err)
					assert.Equal(t, expected, offset)
					offsets = append(offsets, offset)
					expected += int64(recordSize(e.Key, e.Value))
					if e.Tombstone() {
						expected -= int64(len(e.Value))
					}
				}
				assert.Equal(t, expected, seg.sizeOnDisk())
			})

			t.Run("active segment can be read", func(t *testing.T) {
				e, err := seg.read(offsets[0])
				require.NoError(t, err)
				assert.Equal(t, []byte("alpha"), e.Value)
			})

			t.Run("append keeps the filter up to date", func(t *testing.T) {
				for _, e := range entries {
					assert.True(t, seg.mayContain(e.Key))
				}
			})

			final := filepath.Join(dir, segmentFileName(1, levelFlush))
			t.Run("seal", func(t *testing.T) {
				require.NoError(t, seg.finishWrite(final))
				require.NoError(t, seg.open(mmapContents))

				_, err := os.Stat(final + tmpExt)
				assert.True(t, os.IsNotExist(err))
			})

			t.Run("sealed segment can be read", func(t *testing.T) {
				for i, offset := range offsets {
					e, err := seg.read(offset)
					require.NoError(t, err)
					assert.Equal(t, entries[i].Key, e.Key)
					assert.Equal(t, entries[i].Op, e.Op)
				}
			})

			t.Run("reading at an offset outside the segment", func(t *testing.T) {
				_, err := seg.read(seg.sizeOnDisk() + 10)
				assert.ErrorIs(t, err, lsmkv.ErrCorruptRecord)
			})

			t.Run("append to a sealed segment fails", func(t *testing.T) {
				_, err := seg.append(entries[0])
				assert.Error(t, err)
			})

			t.Run("cursor visits all records in order", func(t *testing.T) {
				var seen []Entry
				var seenOffsets []int64
				err := seg.forEachRecord(nil, func(offset int64, e Entry) error {
					seen = append(seen, e)
					seenOffsets = append(seenOffsets, offset)
					return nil
				})
				require.NoError(t, err)
				require.Len(t, seen, len(entries))
				assert.Equal(t, offsets, seenOffsets)
				for i := range entries {
					assert.Equal(t, entries[i].Key, seen[i].Key)
				}
			})

			t.Run("reopen from disk", func(t *testing.T) {
				reopened, err := openSegment(final, mmapContents, logger)
				require.NoError(t, err)
				defer reopened.drop()

				assert.Equal(t, uint64(1), reopened.id)
				assert.Equal(t, levelFlush, reopened.level)
				e, err := reopened.read(offsets[2])
				require.NoError(t, err)
				assert.Equal(t, []byte("c"), e.Key)
			})

			t.Run("release after drop closes the segment", func(t *testing.T) {
				require.True(t, seg.acquire())
				require.NoError(t, seg.drop())

				// still readable while referenced
				_, err := seg.read(offsets[0])
				require.NoError(t, err)

				assert.False(t, seg.acquire())
				seg.release()
				assert.True(t, seg.closed)
			})
		})
	}
}

func TestSegmentCursorDetectsTruncation(t *testing.T) {
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()

	seg, err := createSegment(dir, 1, levelFlush, nil, logger)
	require.NoError(t, err)
	_, err = seg.append(Entry{Key: []byte("a"), Value: []byte("12345")})
	require.NoError(t, err)
	_, err = seg.append(Entry{Key: []byte("b"), Value: []byte("67890")})
	require.NoError(t, err)

	final := filepath.Join(dir, segmentFileName(1, levelFlush))
	require.NoError(t, seg.finishWrite(final))

	info, err := os.Stat(final)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(final, info.Size()-3))

	cut, err := openSegment(final, false, logger)
	require.NoError(t, err)
	defer cut.drop()

	count := 0
	err = cut.forEachRecord(nil, func(offset int64, e Entry) error {
		count++
		return nil
	})
	assert.ErrorIs(t, err, lsmkv.ErrCorruptRecord)
	assert.Equal(t, 1, count)
}

func TestSegmentWriterRollover(t *testing.T) {
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()

	nextID := uint64(1)
	w := newSegmentWriter(dir, levelFlush, 100, func() uint64 {
		id := nextID
		nextID++
		return id
	}, func() *membership.Filter { return membership.New(1000) }, logger)

	value := make([]byte, 40)
	for i := 0; i < 10; i++ {
		_, _, err := w.write(Entry{Key: []byte(fmt.Sprintf("key-%02d", i)), Value: value})
		require.NoError(t, err)
	}

	segments := w.segments()
	// each record is 55 bytes, two fit below the 100 byte threshold
	require.Len(t, segments, 5)
	for i, seg := range segments {
		assert.Equal(t, uint64(i+1), seg.id)
		assert.True(t, seg.mayContain([]byte(fmt.Sprintf("key-%02d", 2*i))))
	}

	t.Run("abort removes everything", func(t *testing.T) {
		require.NoError(t, w.abort())
		list, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, list, 0)
	})
}
