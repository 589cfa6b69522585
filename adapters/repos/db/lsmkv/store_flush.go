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
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/segmentindex"
	"github.com/weaviate/logkv/entities/diskio"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// FlushMemtable writes the current memtable into new segments even if it is
// not full yet
func (s *Store) FlushMemtable() (err error) {
	defer func() { s.metrics.Operation("flush", err) }()

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.closed {
		return lsmkv.ErrClosed
	}

	return s.flushAndMaybeCompact()
}

// flushAndMaybeCompact must be called with the write lock held
func (s *Store) flushAndMaybeCompact() error {
	if err := s.flush(); err != nil {
		return err
	}

	s.stateLock.RLock()
	sealed := s.segmentGroup.len()
	s.stateLock.RUnlock()

	if sealed < s.config.CompactionThresholdSegments {
		return nil
	}

	if err := s.compact(); err != nil {
		return errors.Wrap(err, "compact after flush")
	}
	return nil
}

// flush must be called with the write lock held. Until the new segments are
// published, the memtable and the write-ahead log stay the source of truth
// and any failure removes what has been written so far.
func (s *Store) flush() error {
	mt := s.active
	if mt.Len() == 0 {
		return nil
	}

	start := time.Now()
	entries := mt.drain()

	w := newSegmentWriter(s.dir, levelFlush, s.config.SegmentSizeBytes,
		s.allocateSegmentID, s.newFilter, s.logger)

	locations := make([]segmentindex.Location, len(entries))
	for i, e := range entries {
		id, offset, err := w.write(e)
		if err != nil {
			return s.abortWrite(w, errors.Wrap(err, "write memtable to segment"))
		}
		locations[i] = segmentindex.Location{
			SegmentID: id,
			Offset:    offset,
			Tombstone: e.Tombstone(),
		}
	}

	segments := w.segments()
	for _, seg := range segments {
		final := filepath.Join(s.dir, segmentFileName(seg.id, seg.level))
		if err := seg.finishWrite(final); err != nil {
			return s.abortWrite(w, errors.Wrap(err, "seal flushed segment"))
		}
		if err := seg.open(s.mmapContents); err != nil {
			return s.abortWrite(w, errors.Wrap(err, "open flushed segment"))
		}
	}

	if err := diskio.Fsync(s.dir); err != nil {
		return s.abortWrite(w, lsmkv.NewIOError("fsync dir", s.dir, err))
	}

	s.stateLock.Lock()
	s.segmentGroup.add(segments...)
	for i, e := range entries {
		s.index.Set(e.Key, locations[i])
	}
	s.active = newMemtable(s.metrics)
	keyCount := s.keyCount()
	s.stateLock.Unlock()

	s.flushes.Add(1)
	s.metrics.TrackFlush(start)
	s.metrics.KeyCount(keyCount)

	s.logger.WithField("action", "lsm_flush").
		WithField("path", s.dir).
		WithField("entries", len(entries)).
		WithField("segments", len(segments)).
		WithField("took", time.Since(start)).
		Debug("flushed memtable")

	// The segments are durable. If the log cannot be rotated its entries are
	// replayed once more on the next start, which yields the same state.
	if err := s.commitlog.truncateToCheckpoint(); err != nil {
		return errors.Wrap(err, "truncate write-ahead log after flush")
	}

	return nil
}

func (s *Store) abortWrite(w *segmentWriter, cause error) error {
	if err := w.abort(); err != nil {
		s.logger.WithField("action", "lsm_flush").
			WithField("path", s.dir).
			WithError(err).
			Error("could not remove partially written segments")
	}
	return cause
}
