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
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/membership"
)

// segmentWriter writes a key-ordered stream of entries into one or more new
// segments of the same level. Once a segment has reached maxSize, the next
// entry starts a new segment. Every segment gets its own filter.
type segmentWriter struct {
	dir       string
	level     uint16
	maxSize   int64
	nextID    func() uint64
	newFilter func() *membership.Filter
	logger    logrus.FieldLogger

	current *segment
	written []*segment
}

func newSegmentWriter(dir string, level uint16, maxSize int64,
	nextID func() uint64, newFilter func() *membership.Filter,
	logger logrus.FieldLogger,
) *segmentWriter {
	return &segmentWriter{
		dir:       dir,
		level:     level,
		maxSize:   maxSize,
		nextID:    nextID,
		newFilter: newFilter,
		logger:    logger,
	}
}

// write appends e and returns the id of the segment it landed in and its
// offset within that segment
func (w *segmentWriter) write(e Entry) (uint64, int64, error) {
	if w.current == nil || w.current.sizeOnDisk() >= w.maxSize {
		seg, err := createSegment(w.dir, w.nextID(), w.level, w.newFilter(), w.logger)
		if err != nil {
			return 0, 0, err
		}
		w.current = seg
		w.written = append(w.written, seg)
	}

	offset, err := w.current.append(e)
	if err != nil {
		return 0, 0, err
	}

	return w.current.id, offset, nil
}

// segments returns every segment created so far, in id order
func (w *segmentWriter) segments() []*segment {
	return w.written
}

// abort closes and removes every segment the writer has created
func (w *segmentWriter) abort() error {
	var errs *multierror.Error
	for _, seg := range w.written {
		if err := seg.discard(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	w.written = nil
	w.current = nil
	return errs.ErrorOrNil()
}
