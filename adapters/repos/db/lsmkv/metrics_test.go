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
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/logkv/adapters/repos/db/lsmkv/membership"
	"github.com/weaviate/logkv/usecases/monitoring"
)

func TestStoreMetrics(t *testing.T) {
	prom := monitoring.NewPrometheusMetrics()
	metrics := NewMetrics(prom, "test")

	logger, _ := test.NewNullLogger()
	cfg := testConfig()
	cfg.CompactionThresholdSegments = 100
	s, err := Open(context.Background(), t.TempDir(), cfg, logger, WithMetrics(metrics))
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(prom.StoresLoaded))

	for seg := 0; seg < 3; seg++ {
		for i := 0; i < 10; i++ {
			key := fmt.Sprintf("seg-%d-key-%d", seg, i)
			require.NoError(t, s.Put([]byte(key), []byte("value")))
		}
		require.NoError(t, s.FlushMemtable())
	}

	labels := prometheus.Labels{"store": "test"}

	t.Run("segment state", func(t *testing.T) {
		assert.Equal(t, float64(3), testutil.ToFloat64(prom.LSMSegmentCount.With(labels)))
		assert.Equal(t, float64(s.Statistics().DiskBytes),
			testutil.ToFloat64(prom.LSMSegmentSize.With(labels)))
		assert.Equal(t, float64(30), testutil.ToFloat64(prom.KeyCount.With(labels)))
	})

	t.Run("operations", func(t *testing.T) {
		assert.Equal(t, float64(30), testutil.ToFloat64(prom.StoreOperations.With(
			prometheus.Labels{"store": "test", "operation": "put", "status": "success"})))
	})

	t.Run("filter outcomes", func(t *testing.T) {
		// the key lives in the oldest of three segments, the two newer ones
		// are probed first
		requireValue(t, s, "seg-0-key-0", "value")

		counts := filterOutcomeCounts(t, prom)
		assert.Equal(t, uint64(1), counts["get_true_positive"])
		assert.Equal(t, uint64(2), counts["get_true_negative"]+counts["get_false_positive"])
	})

	t.Run("a filter rejecting the indexed key is not a true positive", func(t *testing.T) {
		s.stateLock.Lock()
		oldest := s.segmentGroup.segments[0]
		oldest.filter = membership.New(cfg.FilterSizeBits)
		s.stateLock.Unlock()

		requireValue(t, s, "seg-0-key-1", "value")

		counts := filterOutcomeCounts(t, prom)
		assert.Equal(t, uint64(1), counts["get_true_positive"])
		assert.Equal(t, uint64(1), counts["get_false_negative"])
	})

	t.Run("memtable is empty after the flush", func(t *testing.T) {
		assert.Equal(t, float64(0), testutil.ToFloat64(prom.LSMMemtableSize.With(labels)))
	})

	t.Run("shutdown", func(t *testing.T) {
		require.NoError(t, s.Shutdown(context.Background()))
		assert.Equal(t, float64(0), testutil.ToFloat64(prom.StoresLoaded))
		assert.Equal(t, float64(1), testutil.ToFloat64(prom.StoresUnloaded))
	})
}

func filterOutcomeCounts(t *testing.T, prom *monitoring.PrometheusMetrics) map[string]uint64 {
	families, err := prom.Gatherer.Gather()
	require.NoError(t, err)

	counts := map[string]uint64{}
	for _, family := range families {
		if family.GetName() != "logkv_lsm_bloom_filters_duration_ms" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "operation" {
					counts[label.GetValue()] += metric.GetSummary().GetSampleCount()
				}
			}
		}
	}
	return counts
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.Nil(t, NewMetrics(nil, "test"))

	m.Operation("put", nil)
	m.KeyCount(1)
	m.WALSize(1)
	m.SegmentState(1, 1)
	m.TrackStartupReadWALDiskIO(1, 1)
	m.MemtableOpObserver("put")(0)
	m.MemtableSizeSetter()(0)
	m.startLoading()
	m.finishLoading(nil)
}
