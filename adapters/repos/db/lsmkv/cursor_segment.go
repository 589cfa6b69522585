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
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/weaviate/logkv/entities/diskio"
	"github.com/weaviate/logkv/entities/lsmkv"
)

// segmentCursor is a forward scan over all records of a segment, from the
// start of the file to the end-of-file observed when the cursor was created.
// Every cursor opens its own file handle, so a scan can be restarted by
// creating a new cursor. Cursors are used by compaction and recovery only,
// point lookups always go through segment.read.
type segmentCursor struct {
	path       string
	file       *os.File
	reader     *bufio.Reader
	nextOffset int64
	end        int64
}

func (s *segment) newCursor(cb diskio.MeteredReaderCallback) (*segmentCursor, error) {
	s.mu.Lock()
	path := s.path
	end := s.size
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, lsmkv.NewIOError("open cursor", path, err)
	}

	metered := diskio.NewMeteredReader(io.LimitReader(f, end), cb)
	return &segmentCursor{
		path:   path,
		file:   f,
		reader: bufio.NewReaderSize(metered, 64*1024),
		end:    end,
	}, nil
}

// next returns the offset and entry of the next record. Once the cursor is
// exhausted it returns lsmkv.NotFound. A record that is cut off by the end
// of the file is reported as corrupt, sealed segments never end in a partial
// record.
func (c *segmentCursor) next() (int64, Entry, error) {
	if c.nextOffset >= c.end {
		return 0, Entry{}, lsmkv.NotFound
	}

	offset := c.nextOffset
	e, n, err := readRecord(c.reader, c.end-offset)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return 0, Entry{}, lsmkv.NewCorruptRecordError(c.path, offset,
				"record cut off by end of file at %d", c.end)
		}
		if _, ok := err.(*os.PathError); ok {
			return 0, Entry{}, lsmkv.NewIOError("read", c.path, err)
		}
		return 0, Entry{}, lsmkv.NewCorruptRecordError(c.path, offset, "%v", err)
	}

	c.nextOffset += n
	return offset, e, nil
}

func (c *segmentCursor) close() error {
	return c.file.Close()
}

// forEachRecord runs a full scan of the segment and calls fn for every
// record in file order
func (s *segment) forEachRecord(cb diskio.MeteredReaderCallback,
	fn func(offset int64, e Entry) error,
) error {
	c, err := s.newCursor(cb)
	if err != nil {
		return err
	}
	defer c.close()

	for {
		offset, e, err := c.next()
		if errors.Is(err, lsmkv.NotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := fn(offset, e); err != nil {
			return err
		}
	}
}
