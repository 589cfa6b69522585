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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/membership"
	"github.com/weaviate/logkv/entities/diskio"
	"github.com/weaviate/logkv/entities/lsmkv"
)

const (
	segmentExt    = ".db"
	tmpExt        = ".tmp"
	compactedExt  = ".compacted"
	segmentPrefix = "segment-"

	// levelFlush marks segments written by a memtable flush, levelCompacted
	// segments written by a compaction.
	levelFlush     uint16 = 0
	levelCompacted uint16 = 1
)

// segmentFileName encodes the id zero-padded so that a directory listing is
// ordered by id
func segmentFileName(id uint64, level uint16) string {
	return fmt.Sprintf("%s%020d-L%d%s", segmentPrefix, id, level, segmentExt)
}

// parseSegmentFileName accepts a segment file name with or without the
// .tmp/.compacted suffix
func parseSegmentFileName(name string) (id uint64, level uint16, ok bool) {
	name = strings.TrimSuffix(name, tmpExt)
	name = strings.TrimSuffix(name, compactedExt)
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentExt) {
		return 0, 0, false
	}

	base := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentExt)
	idPart, levelPart, found := strings.Cut(base, "-L")
	if !found {
		return 0, 0, false
	}

	parsedID, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, 0, false
	}

	parsedLevel, err := strconv.ParseUint(levelPart, 10, 16)
	if err != nil {
		return 0, 0, false
	}

	return parsedID, uint16(parsedLevel), true
}

// segment is an append-only file of length-prefixed records. It is active
// (single writer, appends only) until finishWrite, and sealed (immutable,
// readable from any goroutine) after open.
type segment struct {
	id     uint64
	level  uint16
	path   string
	logger logrus.FieldLogger

	// guards file, size, contents and the sealed flag while the segment is
	// active; a sealed segment never changes so reads don't lock it
	mu           sync.Mutex
	file         *os.File
	size         int64
	sealed       bool
	contents     mmap.MMap
	mmapContents bool

	filter *membership.Filter

	// reference counting for readers, so that a segment superseded by a
	// compaction is only closed once its last reader is done
	refMu   sync.Mutex
	refs    int
	dropped bool
	closed  bool
}

// createSegment creates a new, empty, active segment. The file carries the
// .tmp suffix until finishWrite renames it, so that a crash mid-write never
// leaves a file that looks like a complete segment.
func createSegment(dir string, id uint64, level uint16, filter *membership.Filter,
	logger logrus.FieldLogger,
) (*segment, error) {
	path := filepath.Join(dir, segmentFileName(id, level)) + tmpExt
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, lsmkv.NewIOError("create segment", path, err)
	}

	return &segment{
		id:     id,
		level:  level,
		path:   path,
		file:   f,
		filter: filter,
		logger: logger,
	}, nil
}

// append writes one record to the end of the segment and returns the offset
// the record starts at. If the write fails, the file is truncated back to
// its previous length so that the logical size never covers a partial
// record.
func (s *segment) append(e Entry) (int64, error) {
	buf, err := encodeRecord(e)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed || s.file == nil {
		return 0, errors.Errorf("append to sealed segment %d", s.id)
	}

	offset := s.size
	n, err := s.file.WriteAt(buf, offset)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if terr := s.file.Truncate(offset); terr != nil {
			s.logger.WithField("action", "lsm_segment_append").
				WithField("path", s.path).
				WithError(terr).
				Error("could not truncate partial record")
		}
		return 0, lsmkv.NewIOError("append", s.path, err)
	}

	s.size += int64(n)
	if s.filter != nil {
		s.filter.Add(e.Key)
	}

	return offset, nil
}

// finishWrite makes the active segment durable and moves it to its final
// name. The segment is not readable until open is called.
func (s *segment) finishWrite(finalPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return errors.Errorf("finish write of closed segment %d", s.id)
	}

	if err := s.file.Sync(); err != nil {
		return lsmkv.NewIOError("fsync", s.path, err)
	}
	if err := s.file.Close(); err != nil {
		return lsmkv.NewIOError("close", s.path, err)
	}
	s.file = nil

	if err := os.Rename(s.path, finalPath); err != nil {
		return lsmkv.NewIOError("rename", s.path, err)
	}
	s.path = finalPath

	return nil
}

// rename moves a segment whose write has finished but that is not open yet
func (s *segment) rename(finalPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Rename(s.path, finalPath); err != nil {
		return lsmkv.NewIOError("rename", s.path, err)
	}
	s.path = finalPath
	return nil
}

// open seals the segment: the file is opened read-only and, unless pread is
// used, mapped into memory.
func (s *segment) open(mmapContents bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return lsmkv.NewIOError("open segment", s.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return lsmkv.NewIOError("stat segment", s.path, err)
	}

	s.file = f
	s.size = info.Size()
	s.mmapContents = mmapContents && s.size > 0

	if s.mmapContents {
		contents, err := mmap.MapRegion(f, int(s.size), mmap.RDONLY, 0, 0)
		if err != nil {
			f.Close()
			return lsmkv.NewIOError("mmap segment", s.path, err)
		}
		s.contents = contents
	}

	s.sealed = true
	return nil
}

// openSegment opens an existing, complete segment file from disk
func openSegment(path string, mmapContents bool, logger logrus.FieldLogger) (*segment, error) {
	id, level, ok := parseSegmentFileName(filepath.Base(path))
	if !ok {
		return nil, errors.Errorf("%q is not a segment file name", path)
	}

	s := &segment{id: id, level: level, path: path, logger: logger}
	if err := s.open(mmapContents); err != nil {
		return nil, err
	}

	return s, nil
}

// read decodes the record starting at offset
func (s *segment) read(offset int64) (Entry, error) {
	var (
		ra   io.ReaderAt
		size int64
	)

	if s.sealed {
		if s.mmapContents {
			ra = bytes.NewReader(s.contents)
		} else {
			ra = s.file
		}
		size = s.size
	} else {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.file == nil {
			return Entry{}, errors.Errorf("read from closed segment %d", s.id)
		}
		ra = s.file
		size = s.size
	}

	e, _, err := decodeRecordAt(s.path, ra, size, offset)
	return e, err
}

// sizeOnDisk is the logical length of the segment
func (s *segment) sizeOnDisk() int64 {
	if s.sealed {
		return s.size
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// mayContain consults the membership filter. Without a filter every key
// may be present.
func (s *segment) mayContain(key []byte) bool {
	if s.filter == nil {
		return true
	}
	return s.filter.MayContain(key)
}

func (s *segment) acquire() bool {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	if s.dropped {
		return false
	}
	s.refs++
	return true
}

func (s *segment) release() {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	s.refs--
	if s.refs == 0 && s.dropped {
		if err := s.closeLocked(); err != nil {
			s.logger.WithField("action", "lsm_segment_release").
				WithField("path", s.path).
				WithError(err).
				Warn("could not close segment after last reader released it")
		}
	}
}

// drop gives up the owner's interest in the segment. The file handles are
// closed immediately if no reader holds the segment, otherwise by the last
// release.
func (s *segment) drop() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	s.dropped = true
	if s.refs > 0 {
		return nil
	}
	return s.closeLocked()
}

func (s *segment) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contents != nil {
		if err := s.contents.Unmap(); err != nil {
			return lsmkv.NewIOError("munmap", s.path, err)
		}
		s.contents = nil
	}

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return lsmkv.NewIOError("close", s.path, err)
		}
		s.file = nil
	}

	return nil
}

// discard closes and removes a segment that never became part of the store,
// e.g. the output of a failed flush
func (s *segment) discard() error {
	s.refMu.Lock()
	s.dropped = true
	closeErr := s.closeLocked()
	s.refMu.Unlock()

	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	if err := diskio.RemoveIfExists(path); err != nil {
		return lsmkv.NewIOError("remove", path, err)
	}
	return closeErr
}

// remove deletes the file of a segment that has been superseded. Open file
// handles and mappings stay valid until the segment is closed.
func (s *segment) remove() error {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	if err := diskio.RemoveIfExists(path); err != nil {
		return lsmkv.NewIOError("remove", path, err)
	}
	return nil
}
