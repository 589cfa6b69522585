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
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/segmentindex"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// recover rebuilds the in-memory state from disk: the segments with their
// filters, the index over them and the memtable from the write-ahead log.
func (s *Store) recover() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.Wrapf(lsmkv.ErrDirectoryUnavailable, "create dir %q: %v", s.dir, err)
	}

	sg, recovered, err := newSegmentGroup(s.dir, s.logger, s.metrics,
		s.mmapContents, s.newFilter)
	if err != nil {
		return errors.Wrap(err, "load segments")
	}

	// later segments overwrite earlier ones
	index := segmentindex.New()
	for _, rs := range recovered {
		for _, k := range rs.keys {
			index.Set(k.key, segmentindex.Location{
				SegmentID: rs.id,
				Offset:    k.offset,
				Tombstone: k.tombstone,
			})
		}
	}

	s.segmentGroup = sg
	s.index = index
	s.nextSegmentID = sg.maxID() + 1
	s.active = newMemtable(s.metrics)

	beforeRecovery := time.Now()
	cl, err := openCommitLogger(s.walDir, s.logger, s.metrics, s.applyRecovered)
	if err != nil {
		if serr := sg.shutdown(); serr != nil {
			s.logger.WithField("action", "lsm_recover_from_active_wal").
				WithField("path", s.dir).
				WithError(serr).
				Warn("could not close segments after failed recovery")
		}
		return errors.Wrap(err, "recover from write-ahead log")
	}
	s.commitlog = cl
	s.metrics.TrackStartupRecovery(beforeRecovery)

	if n := s.active.Len(); n > 0 {
		s.logger.WithField("action", "lsm_recover_from_active_wal_success").
			WithField("path", s.walDir).
			WithField("entries", n).
			Info("recovered unflushed writes from write-ahead log")
	}

	s.metrics.KeyCount(s.keyCount())
	s.metrics.WALSize(cl.Size())

	if s.active.Size() >= s.config.MaxMemtableSizeBytes {
		s.writeLock.Lock()
		s.flushIfFull()
		s.writeLock.Unlock()
	}

	return nil
}

// applyRecovered applies one replayed entry like Put or Delete would, but
// without logging it again
func (s *Store) applyRecovered(e Entry) error {
	if e.Tombstone() {
		s.active.setTombstone(e.Key)
	} else {
		s.active.put(e.Key, e.Value)
	}
	s.index.Delete(e.Key)
	return nil
}
