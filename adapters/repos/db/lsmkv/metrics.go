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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/weaviate/logkv/usecases/monitoring"
)

type (
	NsObserver   func(ns int64)
	Setter       func(val uint64)
	TimeObserver func(start time.Time)
)

// Metrics is the store's view of the prometheus collectors, curried with the
// store name. A nil *Metrics is valid and turns every method into a no-op.
type Metrics struct {
	prom *monitoring.PrometheusMetrics

	operations        *prometheus.CounterVec
	asyncOperations   prometheus.ObserverVec
	memtableDurations prometheus.ObserverVec
	memtableSize      prometheus.Gauge
	bloomFilters      prometheus.ObserverVec
	segmentCount      prometheus.Gauge
	segmentSize       prometheus.Gauge
	walSize           prometheus.Gauge
	keyCount          prometheus.Gauge
	startupDurations  prometheus.ObserverVec
	startupDiskIO     prometheus.ObserverVec
}

func NewMetrics(promMetrics *monitoring.PrometheusMetrics, storeName string) *Metrics {
	if promMetrics == nil {
		return nil
	}

	labels := prometheus.Labels{"store": storeName}

	return &Metrics{
		prom:              promMetrics,
		operations:        promMetrics.StoreOperations.MustCurryWith(labels),
		asyncOperations:   promMetrics.AsyncOperations.MustCurryWith(labels),
		memtableDurations: promMetrics.LSMMemtableDurations.MustCurryWith(labels),
		memtableSize:      promMetrics.LSMMemtableSize.With(labels),
		bloomFilters:      promMetrics.LSMBloomFilters.MustCurryWith(labels),
		segmentCount:      promMetrics.LSMSegmentCount.With(labels),
		segmentSize:       promMetrics.LSMSegmentSize.With(labels),
		walSize:           promMetrics.LSMWALSize.With(labels),
		keyCount:          promMetrics.KeyCount.With(labels),
		startupDurations:  promMetrics.StartupDurations.MustCurryWith(labels),
		startupDiskIO:     promMetrics.StartupDiskIO.MustCurryWith(labels),
	}
}

func noOpNsObserver(startNs int64) {}

func noOpTimeObserver(start time.Time) {}

func noOpSetter(val uint64) {}

func (m *Metrics) MemtableOpObserver(op string) NsObserver {
	if m == nil {
		return noOpNsObserver
	}

	curried := m.memtableDurations.With(prometheus.Labels{"operation": op})

	return func(startNs int64) {
		took := float64(time.Now().UnixNano()-startNs) / float64(time.Millisecond)
		curried.Observe(took)
	}
}

func (m *Metrics) MemtableSizeSetter() Setter {
	if m == nil {
		return noOpSetter
	}

	return func(size uint64) {
		m.memtableSize.Set(float64(size))
	}
}

func (m *Metrics) BloomFilterObserver(op string) TimeObserver {
	if m == nil {
		return noOpTimeObserver
	}

	curried := m.bloomFilters.With(prometheus.Labels{"operation": op})

	return func(start time.Time) {
		took := float64(time.Since(start)) / float64(time.Millisecond)
		curried.Observe(took)
	}
}

// Operation counts a public store call by its outcome
func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.With(prometheus.Labels{"operation": op, "status": status}).Inc()
}

func (m *Metrics) TrackFlush(start time.Time) {
	m.trackAsync("flush_memtable", start)
}

func (m *Metrics) TrackCompaction(start time.Time) {
	m.trackAsync("compact_segments", start)
}

func (m *Metrics) trackAsync(op string, start time.Time) {
	if m == nil {
		return
	}

	took := float64(time.Since(start)) / float64(time.Millisecond)
	m.asyncOperations.With(prometheus.Labels{"operation": op}).Observe(took)
}

// SegmentState publishes the shape of the sealed segment list
func (m *Metrics) SegmentState(count int, diskBytes int64) {
	if m == nil {
		return
	}

	m.segmentCount.Set(float64(count))
	m.segmentSize.Set(float64(diskBytes))
}

func (m *Metrics) WALSize(size int64) {
	if m == nil {
		return
	}

	m.walSize.Set(float64(size))
}

func (m *Metrics) KeyCount(count int) {
	if m == nil {
		return
	}

	m.keyCount.Set(float64(count))
}

func (m *Metrics) TrackStartupReadWALDiskIO(read int64, nanoseconds int64) {
	m.trackStartupDiskIO("lsm_recover_wal", read, nanoseconds)
}

func (m *Metrics) TrackStartupReadSegmentDiskIO(read int64, nanoseconds int64) {
	m.trackStartupDiskIO("lsm_recover_segment", read, nanoseconds)
}

func (m *Metrics) trackStartupDiskIO(op string, read int64, nanoseconds int64) {
	if m == nil || nanoseconds <= 0 {
		return
	}

	seconds := float64(nanoseconds) / float64(time.Second)
	throughput := float64(read) / seconds
	m.startupDiskIO.With(prometheus.Labels{"operation": op}).Observe(throughput)
}

func (m *Metrics) TrackStartupStore(start time.Time) {
	m.trackStartup("lsm_startup_store", start)
}

func (m *Metrics) TrackStartupRecovery(start time.Time) {
	m.trackStartup("lsm_startup_store_recovery", start)
}

func (m *Metrics) trackStartup(op string, start time.Time) {
	if m == nil {
		return
	}

	took := float64(time.Since(start)) / float64(time.Millisecond)
	m.startupDurations.With(prometheus.Labels{"operation": op}).Observe(took)
}

func (m *Metrics) startLoading() {
	if m == nil {
		return
	}
	m.prom.StartLoadingStore()
}

func (m *Metrics) finishLoading(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.prom.AbortLoadingStore()
		return
	}
	m.prom.FinishLoadingStore()
}

func (m *Metrics) startUnloading() {
	if m == nil {
		return
	}
	m.prom.StartUnloadingStore()
}

func (m *Metrics) finishUnloading() {
	if m == nil {
		return
	}
	m.prom.FinishUnloadingStore()
}
