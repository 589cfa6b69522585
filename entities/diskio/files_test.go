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

package diskio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHelpers(t *testing.T) {
	dir := t.TempDir()

	require.Nil(t, os.WriteFile(filepath.Join(dir, "a.db"), make([]byte, 10), 0o600))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "b.db"), make([]byte, 5), 0o600))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "c.wal"), make([]byte, 7), 0o600))
	require.Nil(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))

	t.Run("sum by extension", func(t *testing.T) {
		total, err := SumFileSizes(dir, ".db")
		require.Nil(t, err)
		assert.Equal(t, int64(15), total)
	})

	t.Run("sum everything", func(t *testing.T) {
		total, err := SumFileSizes(dir, "")
		require.Nil(t, err)
		assert.Equal(t, int64(22), total)
	})

	t.Run("exists and remove", func(t *testing.T) {
		ok, err := FileExists(filepath.Join(dir, "c.wal"))
		require.Nil(t, err)
		assert.True(t, ok)

		require.Nil(t, RemoveIfExists(filepath.Join(dir, "c.wal")))
		require.Nil(t, RemoveIfExists(filepath.Join(dir, "c.wal")))

		ok, err = FileExists(filepath.Join(dir, "c.wal"))
		require.Nil(t, err)
		assert.False(t, ok)
	})

	t.Run("fsync a directory", func(t *testing.T) {
		assert.Nil(t, Fsync(dir))
	})
}

func TestMeteredReader(t *testing.T) {
	buf := bytes.NewBufferString("hello world")

	var read int64
	r := NewMeteredReader(buf, func(n, _ int64) { read += n })
	out, err := io.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, "hello world", string(out))
	assert.Equal(t, int64(11), read)
	assert.Equal(t, int64(11), r.Total())
}
