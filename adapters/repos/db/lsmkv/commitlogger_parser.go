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

type commitloggerParser struct {
	path    string
	reader  io.Reader
	metrics *Metrics
}

type commitloggerParseResult struct {
	entries   int
	fileSize  int64
	validSize int64
	// torn is set if the file does not end at a record boundary
	torn bool
}

func newCommitLoggerParser(path string, metrics *Metrics) *commitloggerParser {
	return &commitloggerParser{
		path:    path,
		metrics: metrics,
	}
}

// Do passes every complete record to fn in file order. Every append is
// fsynced before the next one starts, so only the last record of a file can
// be incomplete. Anything that does not decode is therefore treated as the
// torn tail of the log and not as an error.
func (p *commitloggerParser) Do(fn func(e Entry) error) (commitloggerParseResult, error) {
	var res commitloggerParseResult

	f, err := os.Open(p.path)
	if err != nil {
		return res, lsmkv.NewIOError("open wal", p.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return res, lsmkv.NewIOError("stat wal", p.path, err)
	}
	res.fileSize = info.Size()

	metered := diskio.NewMeteredReader(f, p.metrics.TrackStartupReadWALDiskIO)
	p.reader = bufio.NewReaderSize(metered, 1*1024*1024)

	for {
		e, n, err := readRecord(p.reader, res.fileSize-res.validSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if _, ok := err.(*os.PathError); ok {
				return res, lsmkv.NewIOError("read wal", p.path, err)
			}
			res.torn = true
			break
		}

		if err := fn(e); err != nil {
			return res, errors.Wrapf(err, "apply wal record at offset %d", res.validSize)
		}

		res.validSize += n
		res.entries++
	}

	return res, nil
}
