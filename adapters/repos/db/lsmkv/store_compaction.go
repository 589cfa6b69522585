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
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/segmentindex"
	"github.com/weaviate/logkv/entities/diskio"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// Compact merges all sealed segments into new ones. It is a no-op if the
// sealed segments are already the output of a compaction, so calling it
// repeatedly without writes in between changes nothing.
func (s *Store) Compact() (err error) {
	defer func() { s.metrics.Operation("compact", err) }()

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.closed {
		return lsmkv.ErrClosed
	}

	return s.compact()
}

// compact must be called with the write lock held.
//
// On disk a compaction moves through these steps, each of which Open can
// pick up after a crash:
//
//  1. outputs are written as *.tmp, fsynced and renamed to *.compacted
//  2. the inputs are removed
//  3. the outputs are renamed to *.db, newest first
//
// Before step 1 has completed for all outputs, Open removes the leftovers
// and the inputs stay authoritative. Once any *.compacted file exists, Open
// removes every segment older than the oldest output and completes step 3.
func (s *Store) compact() error {
	s.stateLock.RLock()
	inputs := s.segmentGroup.snapshot()
	hasFlushed := s.segmentGroup.hasLevel(levelFlush)
	s.stateLock.RUnlock()

	if len(inputs) == 0 || !hasFlushed {
		return nil
	}

	start := time.Now()

	// all sealed segments take part, so there is no older segment a
	// tombstone would still have to shadow
	merged, err := mergeSegments(inputs, true)
	if err != nil {
		return errors.Wrap(err, "merge segments")
	}

	w := newSegmentWriter(s.dir, levelCompacted, s.config.SegmentSizeBytes,
		s.allocateSegmentID, s.newFilter, s.logger)

	survivors := make(map[string]segmentindex.Location, len(merged))
	for _, e := range merged {
		id, offset, err := w.write(e)
		if err != nil {
			return s.abortWrite(w, errors.Wrap(err, "write compacted segment"))
		}
		survivors[string(e.Key)] = segmentindex.Location{
			SegmentID: id,
			Offset:    offset,
			Tombstone: e.Tombstone(),
		}
	}

	outputs := w.segments()
	for _, seg := range outputs {
		final := filepath.Join(s.dir, segmentFileName(seg.id, seg.level)) + compactedExt
		if err := seg.finishWrite(final); err != nil {
			return s.abortWrite(w, errors.Wrap(err, "seal compacted segment"))
		}
	}
	if err := diskio.Fsync(s.dir); err != nil {
		return s.abortWrite(w, lsmkv.NewIOError("fsync dir", s.dir, err))
	}

	// From here on the compaction is committed on disk. Inputs are removed
	// oldest first: without any output there is no *.compacted marker, and
	// whatever survives a crash then is newer than what is gone.
	var errs *multierror.Error
	for _, seg := range inputs {
		if err := seg.remove(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	// Leftover inputs must not outlive the *.compacted marker, otherwise
	// keys whose tombstones were dropped would come back on the next start.
	if errs.ErrorOrNil() == nil {
		for i := len(outputs) - 1; i >= 0; i-- {
			seg := outputs[i]
			if err := seg.rename(strings.TrimSuffix(seg.path, compactedExt)); err != nil {
				errs = multierror.Append(errs, err)
				break
			}
		}
	}

	if err := diskio.Fsync(s.dir); err != nil {
		errs = multierror.Append(errs, lsmkv.NewIOError("fsync dir", s.dir, err))
	}

	for _, seg := range outputs {
		if err := seg.open(s.mmapContents); err != nil {
			// The inputs stay open and keep serving reads, the next Open
			// completes the compaction from disk.
			errs = multierror.Append(errs, errors.Wrap(err, "open compacted segment"))
			return errs
		}
	}

	mergedIDs := make(map[uint64]struct{}, len(inputs))
	for _, seg := range inputs {
		mergedIDs[seg.id] = struct{}{}
	}

	s.stateLock.Lock()
	s.segmentGroup.replace(mergedIDs, outputs)
	s.index.Rewrite(mergedIDs, survivors)
	keyCount := s.keyCount()
	s.stateLock.Unlock()

	for _, seg := range inputs {
		if err := seg.drop(); err != nil {
			s.logger.WithField("action", "lsm_compaction").
				WithField("path", seg.path).
				WithError(err).
				Warn("could not close merged segment")
		}
	}

	s.compactions.Add(1)
	s.metrics.TrackCompaction(start)
	s.metrics.KeyCount(keyCount)

	s.logger.WithField("action", "lsm_compaction").
		WithField("path", s.dir).
		WithField("input_segments", len(inputs)).
		WithField("output_segments", len(outputs)).
		WithField("keys", len(merged)).
		WithField("took", time.Since(start)).
		Debug("compacted segments")

	if err := errs.ErrorOrNil(); err != nil {
		return errors.Wrap(err, "finish compaction on disk")
	}
	return nil
}

// mergeSegments reads all records of the given segments, oldest first, and
// keeps the newest entry per key. If dropTombstones is set, keys whose newest
// entry is a delete are left out entirely, which is only correct if no
// segment older than the merge set exists. The result is in key order.
func mergeSegments(segments []*segment, dropTombstones bool) ([]Entry, error) {
	latest := map[string]Entry{}

	for _, seg := range segments {
		err := seg.forEachRecord(nil, func(offset int64, e Entry) error {
			latest[string(e.Key)] = e
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "read segment %d", seg.id)
		}
	}

	out := make([]Entry, 0, len(latest))
	for _, e := range latest {
		if dropTombstones && e.Tombstone() {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(a, b int) bool {
		return bytes.Compare(out[a].Key, out[b].Key) < 0
	})
	return out, nil
}
