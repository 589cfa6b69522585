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

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replayAll(t *testing.T, dir string) ([]Entry, *commitLogger, *test.Hook) {
	logger, hook := test.NewNullLogger()

	var replayed []Entry
	cl, err := openCommitLogger(dir, logger, nil, func(e Entry) error {
		replayed = append(replayed, e)
		return nil
	})
	require.NoError(t, err)

	return replayed, cl, hook
}

func TestCommitLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wal")

	entries := []Entry{
		{Key: []byte("a"), Value: []byte("1"), Op: OpPut},
		{Key: []byte("b"), Value: []byte("2"), Op: OpPut},
		{Key: []byte("a"), Op: OpDelete},
	}

	t.Run("a new log is empty", func(t *testing.T) {
		replayed, cl, _ := replayAll(t, dir)
		defer cl.close()

		assert.Len(t, replayed, 0)
		assert.Equal(t, int64(0), cl.Size())

		for _, e := range entries {
			require.NoError(t, cl.append(e))
		}
		assert.Greater(t, cl.Size(), int64(0))
	})

	t.Run("replay returns entries in original order", func(t *testing.T) {
		replayed, cl, _ := replayAll(t, dir)
		defer cl.close()

		require.Len(t, replayed, len(entries))
		for i := range entries {
			assert.Equal(t, entries[i].Key, replayed[i].Key)
			assert.Equal(t, entries[i].Op, replayed[i].Op)
		}

		t.Run("appends continue the existing file", func(t *testing.T) {
			require.NoError(t, cl.append(Entry{Key: []byte("c"), Value: []byte("3")}))
		})
	})

	t.Run("checkpoint drops everything logged so far", func(t *testing.T) {
		replayed, cl, _ := replayAll(t, dir)
		require.Len(t, replayed, len(entries)+1)

		require.NoError(t, cl.truncateToCheckpoint())
		assert.Equal(t, int64(0), cl.Size())

		require.NoError(t, cl.append(Entry{Key: []byte("d"), Value: []byte("4")}))
		require.NoError(t, cl.close())

		replayed, cl, _ = replayAll(t, dir)
		defer cl.close()
		require.Len(t, replayed, 1)
		assert.Equal(t, []byte("d"), replayed[0].Key)

		files, err := listWALFiles(dir)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})
}

func TestCommitLoggerTornTail(t *testing.T) {
	dir := t.TempDir()

	_, cl, _ := replayAll(t, dir)
	for i := 0; i < 5; i++ {
		require.NoError(t, cl.append(Entry{
			Key:   []byte(fmt.Sprintf("key-%d", i)),
			Value: []byte(fmt.Sprintf("value-%d", i)),
		}))
	}
	validSize := cl.Size()
	path := cl.file.Name()
	require.NoError(t, cl.close())

	// simulate a crash in the middle of the next append
	torn, err := encodeRecord(Entry{Key: []byte("key-5"), Value: []byte("value-5")})
	require.NoError(t, err)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write(torn[:len(torn)-3])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	replayed, cl, hook := replayAll(t, dir)
	defer cl.close()

	t.Run("complete records are replayed", func(t *testing.T) {
		require.Len(t, replayed, 5)
		assert.Equal(t, []byte("key-4"), replayed[4].Key)
	})

	t.Run("the torn record is logged and cut off", func(t *testing.T) {
		var warned bool
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.WarnLevel &&
				entry.Data["action"] == "lsm_recover_from_active_wal_corruption" {
				warned = true
			}
		}
		assert.True(t, warned)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, validSize, info.Size())
		assert.Equal(t, validSize, cl.Size())
	})

	t.Run("later appends are not hidden behind the torn tail", func(t *testing.T) {
		require.NoError(t, cl.append(Entry{Key: []byte("key-6"), Value: []byte("value-6")}))
		require.NoError(t, cl.close())

		replayed, cl2, _ := replayAll(t, dir)
		defer cl2.close()
		require.Len(t, replayed, 6)
		assert.Equal(t, []byte("key-6"), replayed[5].Key)
	})
}

func TestCommitLoggerReplaysOlderFilesFirst(t *testing.T) {
	dir := t.TempDir()

	// a crash between creating the next file and removing the previous one
	// leaves two live files behind
	write := func(id uint64, e Entry) {
		buf, err := encodeRecord(e)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, walFileName(id)), buf, 0o600))
	}
	write(3, Entry{Key: []byte("k"), Value: []byte("old")})
	write(4, Entry{Key: []byte("k"), Value: []byte("new")})

	replayed, cl, _ := replayAll(t, dir)
	require.Len(t, replayed, 2)
	assert.Equal(t, []byte("old"), replayed[0].Value)
	assert.Equal(t, []byte("new"), replayed[1].Value)

	require.NoError(t, cl.append(Entry{Key: []byte("k"), Value: []byte("newest")}))
	require.NoError(t, cl.truncateToCheckpoint())
	require.NoError(t, cl.close())

	files, err := listWALFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, files)
}
