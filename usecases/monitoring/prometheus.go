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

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds every collector the key-value engine reports to.
// The engine curries the vectors with the name of the store, so a single
// instance can serve several stores in one process.
type PrometheusMetrics struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	StoreOperations      *prometheus.CounterVec
	AsyncOperations      *prometheus.HistogramVec
	LSMMemtableDurations *prometheus.SummaryVec
	LSMMemtableSize      *prometheus.GaugeVec
	LSMBloomFilters      *prometheus.SummaryVec
	LSMSegmentCount      *prometheus.GaugeVec
	LSMSegmentSize       *prometheus.GaugeVec
	LSMWALSize           *prometheus.GaugeVec
	KeyCount             *prometheus.GaugeVec

	StartupDurations *prometheus.SummaryVec
	StartupDiskIO    *prometheus.SummaryVec

	StoresLoading   prometheus.Gauge
	StoresLoaded    prometheus.Gauge
	StoresUnloading prometheus.Gauge
	StoresUnloaded  prometheus.Gauge
}

// NewPrometheusMetrics creates all collectors and registers them on a fresh
// registry
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	return NewPrometheusMetricsWithRegistry(reg, reg)
}

func NewPrometheusMetricsWithRegistry(reg prometheus.Registerer,
	gatherer prometheus.Gatherer,
) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		Registerer: reg,
		Gatherer:   gatherer,

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logkv_store_operations_total",
			Help: "Number of public store operations by outcome",
		}, []string{"operation", "status", "store"}),
		AsyncOperations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "logkv_lsm_async_operation_duration_ms",
			Help:    "Duration of flushes and compactions in ms",
			Buckets: prometheus.ExponentialBuckets(1, 2, 15),
		}, []string{"operation", "store"}),
		LSMMemtableDurations: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: "logkv_lsm_memtable_operation_duration_ms",
			Help: "Time in ms for a memtable operation",
		}, []string{"operation", "store"}),
		LSMMemtableSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logkv_lsm_memtable_size",
			Help: "Estimated size of the active memtable in bytes",
		}, []string{"store"}),
		LSMBloomFilters: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: "logkv_lsm_bloom_filters_duration_ms",
			Help: "Duration of segment lookups by membership filter outcome",
		}, []string{"operation", "store"}),
		LSMSegmentCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logkv_lsm_segments",
			Help: "Number of sealed segments",
		}, []string{"store"}),
		LSMSegmentSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logkv_lsm_segment_size",
			Help: "Bytes on disk used by sealed segments",
		}, []string{"store"}),
		LSMWALSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logkv_lsm_wal_size",
			Help: "Bytes in the live write-ahead log files",
		}, []string{"store"}),
		KeyCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logkv_key_count",
			Help: "Number of live keys",
		}, []string{"store"}),

		StartupDurations: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: "logkv_startup_durations_ms",
			Help: "Duration of individual startup operations in ms",
		}, []string{"operation", "store"}),
		StartupDiskIO: factory.NewSummaryVec(prometheus.SummaryOpts{
			Name: "logkv_startup_diskio_throughput",
			Help: "Disk I/O throughput in bytes per second during startup",
		}, []string{"operation", "store"}),

		StoresLoading: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logkv_stores_loading",
			Help: "Number of stores currently recovering",
		}),
		StoresLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logkv_stores_loaded",
			Help: "Number of stores open for reads and writes",
		}),
		StoresUnloading: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logkv_stores_unloading",
			Help: "Number of stores currently shutting down",
		}),
		StoresUnloaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "logkv_stores_unloaded",
			Help: "Number of stores that have been shut down",
		}),
	}
}
