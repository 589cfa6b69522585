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

type StoreOption func(s *Store) error

func WithMetrics(metrics *Metrics) StoreOption {
	return func(s *Store) error {
		s.metrics = metrics
		return nil
	}
}

// WithPread reads sealed segments with positional reads instead of mapping
// them into memory
func WithPread(pread bool) StoreOption {
	return func(s *Store) error {
		s.mmapContents = !pread
		return nil
	}
}

func WithFilterFalsePositiveRate(p float64) StoreOption {
	return func(s *Store) error {
		if p <= 0 || p >= 1 {
			return errors.Errorf("false positive rate must be in (0, 1), got %v", p)
		}
		s.filterOpts = append(s.filterOpts, membership.WithFalsePositiveRate(p))
		return nil
	}
}

// WithFilterProbes overrides the number of hash probes per key that is
// otherwise derived from the false positive rate
func WithFilterProbes(k uint) StoreOption {
	return func(s *Store) error {
		if k == 0 {
			return errors.New("filter probes must be at least 1")
		}
		s.filterOpts = append(s.filterOpts, membership.WithProbes(k))
		return nil
	}
}
