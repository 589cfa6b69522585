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
	"github.com/pkg/errors"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/membership"
)

const (
	DefaultSegmentSizeBytes            int64  = 1024 * 1024
	DefaultCompactionThresholdSegments int    = 4
	DefaultFilterSizeBits              uint   = membership.DefaultSizeBits
	DefaultMaxMemtableSizeBytes        uint64 = 1024 * 1024
	DefaultWALDirectory                       = "wal"
)

// Config holds the tunables of a store. It is validated by Open and never
// changed afterwards.
type Config struct {
	// SegmentSizeBytes is the size at which a segment writer moves on to a new
	// segment
	SegmentSizeBytes int64

	// CompactionThresholdSegments is the number of sealed segments at which a
	// flush triggers a compaction
	CompactionThresholdSegments int

	// FilterSizeBits is the size of the membership filter of each segment
	FilterSizeBits uint

	// MaxMemtableSizeBytes is the estimated memtable size at which it is
	// flushed
	MaxMemtableSizeBytes uint64

	// WALDirectory is relative to the store directory unless absolute
	WALDirectory string
}

func DefaultConfig() Config {
	return Config{
		SegmentSizeBytes:            DefaultSegmentSizeBytes,
		CompactionThresholdSegments: DefaultCompactionThresholdSegments,
		FilterSizeBits:              DefaultFilterSizeBits,
		MaxMemtableSizeBytes:        DefaultMaxMemtableSizeBytes,
		WALDirectory:                DefaultWALDirectory,
	}
}

func (c Config) Validate() error {
	if c.SegmentSizeBytes <= 0 {
		return errors.Errorf("segment size must be positive, got %d", c.SegmentSizeBytes)
	}
	if c.CompactionThresholdSegments < 1 {
		return errors.Errorf("compaction threshold must be at least 1 segment, got %d",
			c.CompactionThresholdSegments)
	}
	if c.FilterSizeBits == 0 {
		return errors.New("filter size must be at least 1 bit")
	}
	if c.MaxMemtableSizeBytes == 0 {
		return errors.New("max memtable size must be positive")
	}
	if c.WALDirectory == "" {
		return errors.New("wal directory must not be empty")
	}
	return nil
}
