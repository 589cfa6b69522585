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
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/logkv/entities/diskio"
	"github.com/weaviate/logkv/entities/lsmkv"
)

const walExt = ".wal"

// commitLogger is the write-ahead log. Every mutation is appended and
// fsynced before it is applied to the memtable. The log is a sequence of
// files in its own directory; only the newest file receives appends, older
// files only exist until the next checkpoint has removed them.
type commitLogger struct {
	sync.Mutex
	dir     string
	logger  logrus.FieldLogger
	metrics *Metrics

	file *os.File
	id   uint64
	size int64

	// bytes in files older than the active one
	olderSize int64
	olderIDs  []uint64
}

func walFileName(id uint64) string {
	return fmt.Sprintf("%020d%s", id, walExt)
}

func parseWALFileName(name string) (uint64, bool) {
	if !strings.HasSuffix(name, walExt) {
		return 0, false
	}

	id, err := strconv.ParseUint(strings.TrimSuffix(name, walExt), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// openCommitLogger opens the log in dir. Every live file is replayed into fn
// (oldest first) before the newest file is opened for appends. A partially
// written record at the end of a file is discarded and cut off.
func openCommitLogger(dir string, logger logrus.FieldLogger, metrics *Metrics,
	fn func(e Entry) error,
) (*commitLogger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(lsmkv.ErrDirectoryUnavailable, "create wal dir %q: %v", dir, err)
	}

	ids, err := listWALFiles(dir)
	if err != nil {
		return nil, err
	}

	cl := &commitLogger{
		dir:     dir,
		logger:  logger,
		metrics: metrics,
	}

	for _, id := range ids {
		size, err := cl.replayFile(id, fn)
		if err != nil {
			return nil, err
		}
		cl.olderIDs = append(cl.olderIDs, id)
		cl.olderSize += size
	}

	if len(ids) == 0 {
		if err := cl.switchTo(1); err != nil {
			return nil, err
		}
		return cl, nil
	}

	// the newest file keeps receiving appends
	active := cl.olderIDs[len(cl.olderIDs)-1]
	cl.olderIDs = cl.olderIDs[:len(cl.olderIDs)-1]

	path := filepath.Join(dir, walFileName(active))
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, lsmkv.NewIOError("open wal", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, lsmkv.NewIOError("stat wal", path, err)
	}

	cl.file = f
	cl.id = active
	cl.size = info.Size()
	cl.olderSize -= cl.size
	cl.metrics.WALSize(cl.olderSize + cl.size)

	return cl, nil
}

func listWALFiles(dir string) ([]uint64, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(lsmkv.ErrDirectoryUnavailable, "read wal dir %q: %v", dir, err)
	}

	var ids []uint64
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if id, ok := parseWALFileName(de.Name()); ok {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids, nil
}

// replayFile parses one file and returns its size after a torn tail, if any,
// has been cut off
func (cl *commitLogger) replayFile(id uint64, fn func(e Entry) error) (int64, error) {
	path := filepath.Join(cl.dir, walFileName(id))

	p := newCommitLoggerParser(path, cl.metrics)
	res, err := p.Do(fn)
	if err != nil {
		return 0, err
	}

	if res.torn {
		cl.logger.WithField("action", "lsm_recover_from_active_wal_corruption").
			WithField("path", path).
			WithField("valid_bytes", res.validSize).
			WithField("discarded_bytes", res.fileSize-res.validSize).
			Warn("write-ahead log ends in a partially written record, " +
				"discarding the incomplete tail")

		if err := os.Truncate(path, res.validSize); err != nil {
			return 0, lsmkv.NewIOError("truncate wal", path, err)
		}
		if err := diskio.Fsync(path); err != nil {
			return 0, lsmkv.NewIOError("fsync wal", path, err)
		}
	}

	if res.entries > 0 {
		cl.logger.WithField("action", "lsm_recover_from_active_wal").
			WithField("path", path).
			WithField("entries", res.entries).
			Debug("replayed write-ahead log")
	}

	return res.validSize, nil
}

// append writes the encoded record in a single write and fsyncs the file.
// If either fails, the bytes written so far are cut off again so that no
// torn record hides later appends.
func (cl *commitLogger) append(e Entry) error {
	buf, err := encodeRecord(e)
	if err != nil {
		return err
	}

	cl.Lock()
	defer cl.Unlock()

	if cl.file == nil {
		return lsmkv.ErrClosed
	}

	path := cl.file.Name()
	n, err := cl.file.WriteAt(buf, cl.size)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err == nil {
		if serr := cl.file.Sync(); serr != nil {
			err = serr
		}
	}

	if err != nil {
		if terr := cl.file.Truncate(cl.size); terr != nil {
			cl.logger.WithField("action", "lsm_wal_append").
				WithField("path", path).
				WithError(terr).
				Error("could not truncate partially written record")
		}
		return lsmkv.NewIOError("append wal", path, err)
	}

	cl.size += int64(n)
	cl.metrics.WALSize(cl.olderSize + cl.size)
	return nil
}

// truncateToCheckpoint is called once every entry logged so far is durable
// in a sealed segment. Appends switch to a new, empty file before the old
// files are removed, so a crash in between leaves at worst already flushed
// entries to be replayed a second time.
func (cl *commitLogger) truncateToCheckpoint() error {
	cl.Lock()
	defer cl.Unlock()

	if cl.file == nil {
		return lsmkv.ErrClosed
	}

	previous := append(cl.olderIDs, cl.id)
	prevFile := cl.file

	if err := cl.switchTo(cl.id + 1); err != nil {
		return err
	}
	if err := prevFile.Close(); err != nil {
		cl.logger.WithField("action", "lsm_wal_checkpoint").
			WithField("path", prevFile.Name()).
			WithError(err).
			Warn("could not close previous write-ahead log file")
	}

	cl.olderIDs = nil
	cl.olderSize = 0
	for i, id := range previous {
		path := filepath.Join(cl.dir, walFileName(id))
		if err := diskio.RemoveIfExists(path); err != nil {
			// keep what could not be removed, it is retried on the next
			// checkpoint
			cl.olderIDs = previous[i:]
			if total, serr := diskio.SumFileSizes(cl.dir, walExt); serr == nil {
				cl.olderSize = total - cl.size
			}
			cl.metrics.WALSize(cl.olderSize + cl.size)
			return lsmkv.NewIOError("remove wal", path, err)
		}
	}

	cl.metrics.WALSize(cl.size)
	return nil
}

// switchTo must be called with the lock held
func (cl *commitLogger) switchTo(id uint64) error {
	path := filepath.Join(cl.dir, walFileName(id))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return lsmkv.NewIOError("create wal", path, err)
	}

	if err := diskio.Fsync(cl.dir); err != nil {
		f.Close()
		return lsmkv.NewIOError("fsync wal dir", cl.dir, err)
	}

	cl.file = f
	cl.id = id
	cl.size = 0
	return nil
}

// Size is the number of bytes in all live log files
func (cl *commitLogger) Size() int64 {
	cl.Lock()
	defer cl.Unlock()

	return cl.olderSize + cl.size
}

func (cl *commitLogger) close() error {
	cl.Lock()
	defer cl.Unlock()

	if cl.file == nil {
		return nil
	}

	err := cl.file.Close()
	cl.file = nil
	if err != nil {
		return lsmkv.NewIOError("close wal", cl.dir, err)
	}
	return nil
}
