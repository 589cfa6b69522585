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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	m := NewPrometheusMetrics()

	t.Run("start_loading_store", func(t *testing.T) {
		m.StartLoadingStore()

		assert.Equal(t, float64(1), testutil.ToFloat64(m.StoresLoading))
		assert.Equal(t, float64(0), testutil.ToFloat64(m.StoresLoaded))
	})

	t.Run("finish_loading_store", func(t *testing.T) {
		m.FinishLoadingStore()

		assert.Equal(t, float64(0), testutil.ToFloat64(m.StoresLoading))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.StoresLoaded))
	})

	t.Run("unload_store", func(t *testing.T) {
		m.StartUnloadingStore()
		assert.Equal(t, float64(0), testutil.ToFloat64(m.StoresLoaded))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.StoresUnloading))

		m.FinishUnloadingStore()
		assert.Equal(t, float64(0), testutil.ToFloat64(m.StoresUnloading))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.StoresUnloaded))
	})

	t.Run("aborted_load", func(t *testing.T) {
		m.StartLoadingStore()
		m.AbortLoadingStore()

		assert.Equal(t, float64(0), testutil.ToFloat64(m.StoresLoading))
		assert.Equal(t, float64(0), testutil.ToFloat64(m.StoresLoaded))
	})

	t.Run("nil_metrics_are_safe", func(t *testing.T) {
		var nilMetrics *PrometheusMetrics
		nilMetrics.StartLoadingStore()
		nilMetrics.FinishLoadingStore()
		nilMetrics.StartUnloadingStore()
		nilMetrics.FinishUnloadingStore()
	})

	t.Run("collectors_are_gathered", func(t *testing.T) {
		families, err := m.Gatherer.Gather()
		require.NoError(t, err)

		names := map[string]bool{}
		for _, f := range families {
			names[f.GetName()] = true
		}
		assert.True(t, names["logkv_stores_loaded"])
		assert.True(t, names["logkv_stores_unloaded"])
	})
}
