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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// writeSegmentFile writes a complete segment with the given entries to
// name, which may carry the .tmp or .compacted suffix
func writeSegmentFile(t *testing.T, dir string, id uint64, level uint16,
	suffix string, entries ...Entry,
) {
	logger, _ := test.NewNullLogger()
	seg, err := createSegment(dir, id, level, nil, logger)
	require.NoError(t, err)
	for _, e := range entries {
		_, err := seg.append(e)
		require.NoError(t, err)
	}
	require.NoError(t, seg.finishWrite(filepath.Join(dir, segmentFileName(id, level))+suffix))
}

func put(key, value string) Entry {
	return Entry{Key: []byte(key), Value: []byte(value), Op: OpPut}
}

func del(key string) Entry {
	return Entry{Key: []byte(key), Op: OpDelete}
}

func TestSegmentGroupLoading(t *testing.T) {
	t.Run("leftovers of an interrupted write are removed", func(t *testing.T) {
		dir := t.TempDir()
		writeSegmentFile(t, dir, 1, levelFlush, "", put("a", "1"))
		writeSegmentFile(t, dir, 2, levelFlush, tmpExt, put("a", "partial"))

		s := openTestStore(t, dir, DefaultConfig())
		defer s.Shutdown(context.Background())

		requireValue(t, s, "a", "1")
		assert.Equal(t, 1, s.Statistics().SealedSegments)
		_, err := os.Stat(filepath.Join(dir, segmentFileName(2, levelFlush)+tmpExt))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("compaction interrupted before its inputs were removed", func(t *testing.T) {
		dir := t.TempDir()
		writeSegmentFile(t, dir, 1, levelFlush, "", put("a", "1"), put("b", "1"))
		writeSegmentFile(t, dir, 2, levelFlush, "", del("a"), put("b", "2"))
		writeSegmentFile(t, dir, 3, levelCompacted, compactedExt, put("b", "2"))

		s := openTestStore(t, dir, DefaultConfig())
		defer s.Shutdown(context.Background())

		requireAbsent(t, s, "a")
		requireValue(t, s, "b", "2")
		assert.Equal(t, []string{segmentFileName(3, levelCompacted), "wal"}, listDir(t, dir))
	})

	t.Run("compaction interrupted while promoting its outputs", func(t *testing.T) {
		dir := t.TempDir()
		// input 1 is gone already, input 2 still exists; the newer output
		// was already renamed, the older one was not
		writeSegmentFile(t, dir, 2, levelFlush, "", del("a"), put("c", "old"))
		writeSegmentFile(t, dir, 3, levelCompacted, compactedExt, put("b", "1"))
		writeSegmentFile(t, dir, 4, levelCompacted, "", put("c", "new"))

		s := openTestStore(t, dir, DefaultConfig())
		defer s.Shutdown(context.Background())

		requireAbsent(t, s, "a")
		requireValue(t, s, "b", "1")
		requireValue(t, s, "c", "new")
		assert.Equal(t, []string{
			segmentFileName(3, levelCompacted),
			segmentFileName(4, levelCompacted),
			"wal",
		}, listDir(t, dir))

		t.Run("new segments get ids above the recovered ones", func(t *testing.T) {
			require.NoError(t, s.Put([]byte("d"), []byte("1")))
			require.NoError(t, s.FlushMemtable())
			assert.Contains(t, listDir(t, dir), segmentFileName(5, levelFlush))
		})
	})

	t.Run("segments are ordered by id", func(t *testing.T) {
		dir := t.TempDir()
		writeSegmentFile(t, dir, 10, levelFlush, "", put("k", "newest"))
		writeSegmentFile(t, dir, 9, levelFlush, "", put("k", "older"))
		writeSegmentFile(t, dir, 2, levelFlush, "", put("k", "oldest"))

		s := openTestStore(t, dir, DefaultConfig())
		defer s.Shutdown(context.Background())
		requireValue(t, s, "k", "newest")

		s.stateLock.RLock()
		ids := []uint64{}
		for _, seg := range s.segmentGroup.snapshot() {
			ids = append(ids, seg.id)
		}
		s.stateLock.RUnlock()
		assert.Equal(t, []uint64{2, 9, 10}, ids)
	})
}

func TestSegmentGroupReplace(t *testing.T) {
	sg := &segmentGroup{}
	sg.add(&segment{id: 1}, &segment{id: 2}, &segment{id: 5})

	sg.replace(map[uint64]struct{}{1: {}, 2: {}}, []*segment{{id: 3}, {id: 4}})

	var ids []uint64
	for _, seg := range sg.snapshot() {
		ids = append(ids, seg.id)
	}
	assert.Equal(t, []uint64{3, 4, 5}, ids)
	assert.NotNil(t, sg.byID(4))
	assert.Nil(t, sg.byID(2))
	assert.Equal(t, uint64(5), sg.maxID())
}

func TestSegmentGroupFailedInit(t *testing.T) {
	t.Run("a corrupt segment fails the open", func(t *testing.T) {
		dir := t.TempDir()
		writeSegmentFile(t, dir, 1, levelFlush, "", put("a", "1"))
		writeSegmentFile(t, dir, 2, levelFlush, "", put("b", "2"))

		path := filepath.Join(dir, segmentFileName(2, levelFlush))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		require.NoError(t, err)
		_, err = f.Write([]byte{0x01, 0x02})
		require.NoError(t, err)
		require.NoError(t, f.Close())

		logger, hook := test.NewNullLogger()
		_, err = Open(context.Background(), dir, DefaultConfig(), logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, lsmkv.ErrCorruptRecord)

		for _, entry := range hook.AllEntries() {
			assert.NotEqual(t, "lsm_segment_init", entry.Data["action"])
		}

		// nothing is removed, the files are left for inspection
		assert.Equal(t, []string{
			segmentFileName(1, levelFlush),
			segmentFileName(2, levelFlush),
		}, listDir(t, dir))
	})

	t.Run("a close failure is logged", func(t *testing.T) {
		dir := t.TempDir()
		writeSegmentFile(t, dir, 1, levelFlush, "", put("a", "1"))

		logger, hook := test.NewNullLogger()
		seg, err := openSegment(filepath.Join(dir, segmentFileName(1, levelFlush)), false, logger)
		require.NoError(t, err)
		require.NoError(t, seg.file.Close())

		dropAfterFailedInit(seg, logger)

		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, "lsm_segment_init", entry.Data["action"])
		assert.NotNil(t, entry.Data[logrus.ErrorKey])
	})
}
