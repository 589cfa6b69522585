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

type bloomFilterMetrics struct {
	trueNegative  TimeObserver
	falsePositive TimeObserver
	truePositive  TimeObserver
	falseNegative TimeObserver
}

// newBloomFilterMetrics curries the prometheus-functions just once to make
// sure they don't have to be curried on the hotpath where we this would lead
// to a lot of allocations.
func newBloomFilterMetrics(metrics *Metrics) *bloomFilterMetrics {
	return &bloomFilterMetrics{
		trueNegative:  metrics.BloomFilterObserver("get_true_negative"),
		falsePositive: metrics.BloomFilterObserver("get_false_positive"),
		truePositive:  metrics.BloomFilterObserver("get_true_positive"),
		falseNegative: metrics.BloomFilterObserver("get_false_negative"),
	}
}
