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

package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if v := os.Getenv("LOGKV_DATA_PATH"); v != "" {
		config.Persistence.DataPath = v
	}

	if v := os.Getenv("LOGKV_SEGMENT_SIZE"); v != "" {
		asInt, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse LOGKV_SEGMENT_SIZE as int")
		}
		config.Storage.SegmentSize = asInt
	}

	if v := os.Getenv("LOGKV_COMPACTION_THRESHOLD"); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse LOGKV_COMPACTION_THRESHOLD as int")
		}
		config.Storage.CompactionThreshold = asInt
	}

	if v := os.Getenv("LOGKV_BLOOM_FILTER_SIZE"); v != "" {
		asUint, err := strconv.ParseUint(v, 10, 0)
		if err != nil {
			return errors.Wrapf(err, "parse LOGKV_BLOOM_FILTER_SIZE as uint")
		}
		config.Storage.BloomFilterSize = uint(asUint)
	}

	if v := os.Getenv("LOGKV_BLOOM_FILTER_FALSE_POSITIVE_RATE"); v != "" {
		asFloat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "parse LOGKV_BLOOM_FILTER_FALSE_POSITIVE_RATE as float")
		}
		config.Storage.BloomFilterFalsePositiveRate = asFloat
	}

	if v := os.Getenv("LOGKV_MAX_MEMTABLE_SIZE"); v != "" {
		asUint, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse LOGKV_MAX_MEMTABLE_SIZE as uint")
		}
		config.Storage.MaxMemtableSize = asUint
	}

	if v := os.Getenv("LOGKV_WAL_DIRECTORY"); v != "" {
		config.Storage.WALDirectory = v
	}

	if enabled(os.Getenv("LOGKV_USE_PREAD")) {
		config.Storage.UsePread = true
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	if enabled(os.Getenv("PROMETHEUS_MONITORING_ENABLED")) {
		config.Monitoring.Enabled = true
	}

	return nil
}

func enabled(value string) bool {
	if value == "" {
		return false
	}

	if value == "on" ||
		value == "enabled" ||
		value == "1" ||
		value == "true" {
		return true
	}

	return false
}
