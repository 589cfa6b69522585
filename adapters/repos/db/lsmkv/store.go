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
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/membership"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/segmentindex"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// KeyValueStore is the capability the rest of the application depends on
type KeyValueStore interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Compact() error
	FlushMemtable() error
	Statistics() Statistics
	Shutdown(ctx context.Context) error
}

var _ KeyValueStore = (*Store)(nil)

// Store is a log-structured key-value store that owns one directory on the
// file system. Every mutation is logged to the write-ahead log before it is
// applied to the memtable. Full memtables are flushed into immutable
// segments, which are merged by compactions.
type Store struct {
	dir    string
	walDir string
	config Config
	logger logrus.FieldLogger

	metrics      *Metrics
	bloomMetrics *bloomFilterMetrics
	mmapContents bool
	filterOpts   []membership.Option

	// writeLock serializes all mutations: puts, deletes, flushes and
	// compactions
	writeLock sync.Mutex

	// stateLock guards the memtable pointer, the index and the segment list.
	// Writers hold it exclusively only to publish a new state, readers hold
	// it shared only to take a snapshot.
	stateLock    sync.RWMutex
	active       *Memtable
	index        *segmentindex.Index
	segmentGroup *segmentGroup
	closed       bool

	commitlog *commitLogger

	// guarded by writeLock
	nextSegmentID uint64

	flushes     atomic.Int64
	compactions atomic.Int64
}

// Open opens the store in dir, creating the directory if needed, and
// recovers its state from the segments and the write-ahead log found there.
func Open(ctx context.Context, dir string, cfg Config, logger logrus.FieldLogger,
	opts ...StoreOption,
) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid store config")
	}

	s := &Store{
		dir:          dir,
		walDir:       cfg.WALDirectory,
		config:       cfg,
		logger:       logger,
		mmapContents: true,
	}
	if !filepath.IsAbs(s.walDir) {
		s.walDir = filepath.Join(dir, s.walDir)
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.bloomMetrics = newBloomFilterMetrics(s.metrics)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "open store")
	}

	beforeAll := time.Now()
	s.metrics.startLoading()
	err := s.recover()
	s.metrics.finishLoading(err)
	if err != nil {
		return nil, err
	}
	s.metrics.TrackStartupStore(beforeAll)

	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) newFilter() *membership.Filter {
	return membership.New(s.config.FilterSizeBits, s.filterOpts...)
}

// allocateSegmentID must be called with the write lock held
func (s *Store) allocateSegmentID() uint64 {
	id := s.nextSegmentID
	s.nextSegmentID++
	return id
}

func (s *Store) Put(key, value []byte) (err error) {
	defer func() { s.metrics.Operation("put", err) }()

	if len(key) == 0 {
		return lsmkv.ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.closed {
		return lsmkv.ErrClosed
	}

	if err := s.commitlog.append(Entry{Key: key, Value: value, Op: OpPut}); err != nil {
		return errors.Wrap(err, "write into commit log")
	}

	s.stateLock.Lock()
	s.active.put(key, value)
	s.index.Delete(key)
	s.stateLock.Unlock()

	s.flushIfFull()
	return nil
}

func (s *Store) Delete(key []byte) (err error) {
	defer func() { s.metrics.Operation("delete", err) }()

	if len(key) == 0 {
		return lsmkv.ErrEmptyKey
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.closed {
		return lsmkv.ErrClosed
	}

	if err := s.commitlog.append(Entry{Key: key, Op: OpDelete}); err != nil {
		return errors.Wrap(err, "write into commit log")
	}

	s.stateLock.Lock()
	s.active.setTombstone(key)
	s.index.Delete(key)
	s.stateLock.Unlock()

	s.flushIfFull()
	return nil
}

// flushIfFull must be called with the write lock held. The mutation that
// triggered it is already durable in the write-ahead log, so a failed flush
// does not fail the mutation. It is attempted again on the next write.
func (s *Store) flushIfFull() {
	if s.active.Size() < s.config.MaxMemtableSizeBytes {
		return
	}

	if err := s.flushAndMaybeCompact(); err != nil {
		s.logger.WithField("action", "lsm_flush").
			WithField("path", s.dir).
			WithError(err).
			Error("flush of full memtable failed, data remains in write-ahead log")
	}
}

// Get returns the current value of key. found is false if the key was never
// written or its latest mutation is a delete.
func (s *Store) Get(key []byte) (value []byte, found bool, err error) {
	defer func() { s.metrics.Operation("get", err) }()

	if len(key) == 0 {
		return nil, false, lsmkv.ErrEmptyKey
	}

	s.stateLock.RLock()
	if s.closed {
		s.stateLock.RUnlock()
		return nil, false, lsmkv.ErrClosed
	}

	if e, ok := s.active.get(key); ok {
		s.stateLock.RUnlock()
		if e.Tombstone() {
			return nil, false, nil
		}
		return copyBytes(e.Value), true, nil
	}

	loc, ok := s.index.Get(key)
	if !ok {
		s.stateLock.RUnlock()
		return nil, false, nil
	}

	target := s.probeSegments(key, loc.SegmentID)
	if target == nil || !target.acquire() {
		s.stateLock.RUnlock()
		return nil, false, errors.Errorf("index points at unknown segment %d", loc.SegmentID)
	}
	s.stateLock.RUnlock()
	defer target.release()

	if loc.Tombstone {
		return nil, false, nil
	}

	e, err := target.read(loc.Offset)
	if err != nil {
		return nil, false, errors.Wrapf(err, "read key from segment %d", target.id)
	}
	if !bytes.Equal(e.Key, key) {
		return nil, false, lsmkv.NewCorruptRecordError(target.path, loc.Offset,
			"indexed record belongs to a different key")
	}
	if e.Tombstone() {
		return nil, false, nil
	}

	return e.Value, true, nil
}

// probeSegments consults the filters of the sealed segments from newest to
// oldest until it reaches the segment the index points at, which it
// returns. Must be called with the state lock held.
func (s *Store) probeSegments(key []byte, targetID uint64) *segment {
	segments := s.segmentGroup.segments
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		start := time.Now()

		if seg.id == targetID {
			if seg.mayContain(key) {
				s.bloomMetrics.truePositive(start)
			} else {
				s.bloomMetrics.falseNegative(start)
				s.logger.WithField("action", "lsm_bloom_filter_get").
					WithField("segment", seg.path).
					Warn("membership filter rejects a key the index points at")
			}
			return seg
		}

		if !seg.mayContain(key) {
			s.bloomMetrics.trueNegative(start)
			continue
		}

		s.bloomMetrics.falsePositive(start)
	}

	return nil
}

// Keys returns every live key in ascending byte order
func (s *Store) Keys() ([][]byte, error) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	if s.closed {
		return nil, lsmkv.ErrClosed
	}

	keys := s.index.LiveKeys()
	memKeys, tombstones := s.active.keys()
	for i, key := range memKeys {
		if !tombstones[i] {
			keys = append(keys, key)
		}
	}

	sort.Slice(keys, func(a, b int) bool {
		return bytes.Compare(keys[a], keys[b]) < 0
	})
	return keys, nil
}

// keyCount must be called with the state lock held
func (s *Store) keyCount() int {
	return s.index.LiveCount() + s.active.LiveCount()
}

// Shutdown closes the write-ahead log and all segments. The memtable is not
// flushed, its contents are recovered from the write-ahead log on the next
// Open.
func (s *Store) Shutdown(ctx context.Context) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if s.closed {
		return nil
	}

	s.metrics.startUnloading()
	defer s.metrics.finishUnloading()

	var errs *multierror.Error

	s.stateLock.Lock()
	s.closed = true
	if err := s.segmentGroup.shutdown(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "close segments"))
	}
	s.stateLock.Unlock()

	if err := s.commitlog.close(); err != nil {
		errs = multierror.Append(errs, errors.Wrap(err, "close commit log"))
	}

	return errs.ErrorOrNil()
}
