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

type memtableMetrics struct {
	put          NsObserver
	setTombstone NsObserver
	get          NsObserver
	size         Setter
}

// newMemtableMetrics curries the prometheus-functions just once to make sure
// they don't have to be curried on the hotpath where we this would lead to a
// lot of allocations.
func newMemtableMetrics(metrics *Metrics) *memtableMetrics {
	return &memtableMetrics{
		put:          metrics.MemtableOpObserver("put"),
		setTombstone: metrics.MemtableOpObserver("setTombstone"),
		get:          metrics.MemtableOpObserver("get"),
		size:         metrics.MemtableSizeSetter(),
	}
}
