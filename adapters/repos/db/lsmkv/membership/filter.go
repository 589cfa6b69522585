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

// Package membership contains the per-segment probabilistic set test. A
// filter answers "definitely absent" or "maybe present" for a key so that
// segments which cannot hold a key are never read from disk.
package membership

import (
	"math"

	"github.com/willf/bloom"
)

const (
	DefaultSizeBits          = 10000
	DefaultFalsePositiveRate = 0.01
)

type Option func(f *filterConfig)

type filterConfig struct {
	probes            uint
	falsePositiveRate float64
}

// WithFalsePositiveRate sets the rate the number of probes is derived from.
// Rates outside of (0, 1) are ignored.
func WithFalsePositiveRate(p float64) Option {
	return func(c *filterConfig) {
		if p > 0 && p < 1 {
			c.falsePositiveRate = p
		}
	}
}

// WithProbes sets the number of hash probes directly and takes precedence
// over WithFalsePositiveRate.
func WithProbes(k uint) Option {
	return func(c *filterConfig) {
		c.probes = k
	}
}

// Filter is a bloom filter with k probes derived from two base hashes via
// double hashing. Filters are built once when their segment is sealed and
// are read-only afterwards, so reads need no locking.
type Filter struct {
	bloom *bloom.BloomFilter
	added uint
}

func New(sizeBits uint, opts ...Option) *Filter {
	cfg := filterConfig{falsePositiveRate: DefaultFalsePositiveRate}
	for _, opt := range opts {
		opt(&cfg)
	}

	if sizeBits == 0 {
		sizeBits = DefaultSizeBits
	}

	k := cfg.probes
	if k == 0 {
		k = ProbesForRate(cfg.falsePositiveRate)
	}

	return &Filter{bloom: bloom.New(sizeBits, k)}
}

// ProbesForRate is the optimal number of probes for a target false-positive
// rate p when the bit array is sized for the load: k = log2(1/p).
func ProbesForRate(p float64) uint {
	if p <= 0 || p >= 1 {
		p = DefaultFalsePositiveRate
	}

	k := uint(math.Ceil(math.Log2(1 / p)))
	if k < 1 {
		k = 1
	}
	return k
}

func (f *Filter) Add(key []byte) {
	f.bloom.Add(key)
	f.added++
}

// MayContain returns false only if the key was definitely never added
func (f *Filter) MayContain(key []byte) bool {
	return f.bloom.Test(key)
}

func (f *Filter) Probes() uint {
	return f.bloom.K()
}

func (f *Filter) SizeBits() uint {
	return f.bloom.Cap()
}

// Added is the number of keys added, duplicates included
func (f *Filter) Added() uint {
	return f.added
}

// EstimatedFalsePositiveRate is the theoretical rate after n distinct keys:
// (1 - e^(-kn/m))^k
func (f *Filter) EstimatedFalsePositiveRate(n uint) float64 {
	k := float64(f.Probes())
	m := float64(f.SizeBits())
	return math.Pow(1-math.Exp(-k*float64(n)/m), k)
}
