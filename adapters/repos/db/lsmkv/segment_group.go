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
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/membership"
	"github.com/weaviate/logkv/entities/diskio"
	enterrors "github.com/weaviate/logkv/entities/errors"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// segmentGroup is the ordered set of sealed segments, oldest first. It has
// no lock of its own, the store guards it with its state lock.
type segmentGroup struct {
	segments []*segment
	dir      string
	logger   logrus.FieldLogger
	metrics  *Metrics
}

// recoveredSegment is the key set of a segment as found by the full scan
// that rebuilds its filter
type recoveredSegment struct {
	id   uint64
	keys []recoveredKey
}

type recoveredKey struct {
	key       []byte
	offset    int64
	tombstone bool
}

// newSegmentGroup loads all segments in dir. Leftovers of interrupted writes
// are removed and an interrupted compaction is finished before any segment is
// opened. The filter of every segment is rebuilt by a full scan, segments are
// loaded in parallel.
func newSegmentGroup(dir string, logger logrus.FieldLogger, metrics *Metrics,
	mmapContents bool, newFilter func() *membership.Filter,
) (*segmentGroup, []recoveredSegment, error) {
	sg := &segmentGroup{
		dir:     dir,
		logger:  logger,
		metrics: metrics,
	}

	paths, err := sg.prepareDir()
	if err != nil {
		return nil, nil, err
	}

	segments := make([]*segment, len(paths))
	recovered := make([]recoveredSegment, len(paths))

	eg := enterrors.NewErrorGroupWrapper(logger, runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			seg, keys, err := loadSegment(path, mmapContents, newFilter(), logger, metrics)
			if err != nil {
				return errors.Wrapf(err, "init segment %s", filepath.Base(path))
			}
			segments[i] = seg
			recovered[i] = recoveredSegment{id: seg.id, keys: keys}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		for _, seg := range segments {
			if seg != nil {
				dropAfterFailedInit(seg, logger)
			}
		}
		return nil, nil, err
	}

	sg.segments = segments
	sg.publishMetrics()

	return sg, recovered, nil
}

// prepareDir cleans up after a crash and returns the paths of all complete
// segments ordered by id
func (sg *segmentGroup) prepareDir() ([]string, error) {
	list, err := os.ReadDir(sg.dir)
	if err != nil {
		return nil, errors.Wrapf(lsmkv.ErrDirectoryUnavailable, "read dir %q: %v", sg.dir, err)
	}

	type segmentFile struct {
		id   uint64
		name string
	}

	var complete, compacted []segmentFile
	for _, entry := range list {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		id, _, ok := parseSegmentFileName(name)
		if !ok {
			// skip, this could be the commit log, etc.
			continue
		}

		switch {
		case strings.HasSuffix(name, tmpExt):
			path := filepath.Join(sg.dir, name)
			if err := diskio.RemoveIfExists(path); err != nil {
				return nil, lsmkv.NewIOError("remove", path, err)
			}
			sg.logger.WithField("action", "lsm_segment_init").
				WithField("path", path).
				Info("discarded partially written segment")
		case strings.HasSuffix(name, compactedExt):
			compacted = append(compacted, segmentFile{id: id, name: name})
		case filepath.Ext(name) == segmentExt:
			complete = append(complete, segmentFile{id: id, name: name})
		}
	}

	if len(compacted) > 0 {
		// The compaction wrote all of its outputs before it started to remove
		// its inputs. Its inputs are exactly the segments older than its
		// oldest output.
		sort.Slice(compacted, func(a, b int) bool { return compacted[a].id < compacted[b].id })
		minCompacted := compacted[0].id

		remaining := complete[:0]
		for _, f := range complete {
			if f.id >= minCompacted {
				remaining = append(remaining, f)
				continue
			}

			path := filepath.Join(sg.dir, f.name)
			if err := diskio.RemoveIfExists(path); err != nil {
				return nil, lsmkv.NewIOError("remove", path, err)
			}
		}
		complete = remaining

		for i := len(compacted) - 1; i >= 0; i-- {
			from := filepath.Join(sg.dir, compacted[i].name)
			to := strings.TrimSuffix(from, compactedExt)
			if err := os.Rename(from, to); err != nil {
				return nil, lsmkv.NewIOError("rename", from, err)
			}
			complete = append(complete, segmentFile{
				id:   compacted[i].id,
				name: filepath.Base(to),
			})
		}

		if err := diskio.Fsync(sg.dir); err != nil {
			return nil, lsmkv.NewIOError("fsync dir", sg.dir, err)
		}

		sg.logger.WithField("action", "lsm_compaction").
			WithField("path", sg.dir).
			WithField("outputs", len(compacted)).
			Info("finished interrupted compaction")
	}

	sort.Slice(complete, func(a, b int) bool { return complete[a].id < complete[b].id })

	paths := make([]string, len(complete))
	for i, f := range complete {
		paths[i] = filepath.Join(sg.dir, f.name)
	}
	return paths, nil
}

func loadSegment(path string, mmapContents bool, filter *membership.Filter,
	logger logrus.FieldLogger, metrics *Metrics,
) (*segment, []recoveredKey, error) {
	seg, err := openSegment(path, mmapContents, logger)
	if err != nil {
		return nil, nil, err
	}

	var keys []recoveredKey
	err = seg.forEachRecord(metrics.TrackStartupReadSegmentDiskIO,
		func(offset int64, e Entry) error {
			filter.Add(e.Key)
			keys = append(keys, recoveredKey{
				key:       e.Key,
				offset:    offset,
				tombstone: e.Tombstone(),
			})
			return nil
		})
	if err != nil {
		dropAfterFailedInit(seg, logger)
		return nil, nil, err
	}

	seg.filter = filter
	return seg, keys, nil
}

// dropAfterFailedInit closes a segment that did not make it into the group
func dropAfterFailedInit(seg *segment, logger logrus.FieldLogger) {
	if err := seg.drop(); err != nil {
		logger.WithField("action", "lsm_segment_init").
			WithField("path", seg.path).
			WithError(err).
			Warn("could not close segment after failed init")
	}
}

func (sg *segmentGroup) add(segments ...*segment) {
	sg.segments = append(sg.segments, segments...)
	sg.publishMetrics()
}

// replace swaps the merged segments for the compaction outputs. Segments
// that were not part of the merge keep their position; the outputs are newer
// than all of the merged segments, so they are inserted after the newest of
// them.
func (sg *segmentGroup) replace(merged map[uint64]struct{}, outputs []*segment) {
	next := make([]*segment, 0, len(sg.segments)-len(merged)+len(outputs))
	inserted := false

	lastMerged := -1
	for i, seg := range sg.segments {
		if _, ok := merged[seg.id]; ok {
			lastMerged = i
		}
	}

	for i, seg := range sg.segments {
		if _, ok := merged[seg.id]; !ok {
			next = append(next, seg)
		}
		if i == lastMerged {
			next = append(next, outputs...)
			inserted = true
		}
	}
	if !inserted {
		next = append(next, outputs...)
	}

	sg.segments = next
	sg.publishMetrics()
}

// snapshot returns a copy of the current list, oldest first
func (sg *segmentGroup) snapshot() []*segment {
	out := make([]*segment, len(sg.segments))
	copy(out, sg.segments)
	return out
}

func (sg *segmentGroup) len() int {
	return len(sg.segments)
}

func (sg *segmentGroup) byID(id uint64) *segment {
	i := sort.Search(len(sg.segments), func(i int) bool {
		return sg.segments[i].id >= id
	})
	if i < len(sg.segments) && sg.segments[i].id == id {
		return sg.segments[i]
	}
	return nil
}

func (sg *segmentGroup) totalSize() int64 {
	var total int64
	for _, seg := range sg.segments {
		total += seg.sizeOnDisk()
	}
	return total
}

func (sg *segmentGroup) hasLevel(level uint16) bool {
	for _, seg := range sg.segments {
		if seg.level == level {
			return true
		}
	}
	return false
}

func (sg *segmentGroup) maxID() uint64 {
	if len(sg.segments) == 0 {
		return 0
	}
	return sg.segments[len(sg.segments)-1].id
}

func (sg *segmentGroup) publishMetrics() {
	sg.metrics.SegmentState(len(sg.segments), sg.totalSize())
}

func (sg *segmentGroup) shutdown() error {
	var errs *multierror.Error
	for _, seg := range sg.segments {
		if err := seg.drop(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	sg.segments = nil
	return errs.ErrorOrNil()
}
