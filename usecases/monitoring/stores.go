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

// Move the store from unloaded to in progress
func (pm *PrometheusMetrics) StartLoadingStore() {
	if pm == nil {
		return
	}

	pm.StoresLoading.Inc()
}

// Move the store from in progress to loaded
func (pm *PrometheusMetrics) FinishLoadingStore() {
	if pm == nil {
		return
	}

	pm.StoresLoading.Dec()
	pm.StoresLoaded.Inc()
}

// A store whose recovery failed never reaches the loaded state
func (pm *PrometheusMetrics) AbortLoadingStore() {
	if pm == nil {
		return
	}

	pm.StoresLoading.Dec()
}

// Move the store from loaded to in progress
func (pm *PrometheusMetrics) StartUnloadingStore() {
	if pm == nil {
		return
	}

	pm.StoresLoaded.Dec()
	pm.StoresUnloading.Inc()
}

// Move the store from in progress to unloaded
func (pm *PrometheusMetrics) FinishUnloadingStore() {
	if pm == nil {
		return
	}

	pm.StoresUnloading.Dec()
	pm.StoresUnloaded.Inc()
}
