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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/logkv/adapters/repos/db/lsmkv"
	"github.com/weaviate/logkv/entities/diskio"
)

// DefaultConfigFile is the default file when no config file is provided
const DefaultConfigFile string = "./logkv.conf.yaml"

const (
	DefaultPersistenceDataPath = "./data"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// Flags are input options
type Flags struct {
	ConfigFile string `long:"config-file" description:"path to config file (default: ./logkv.conf.yaml)"`

	DataPath                     string  `long:"data-path" description:"directory the store keeps its segments in"`
	SegmentSize                  int64   `long:"segment-size" description:"size in bytes at which a new segment is started"`
	CompactionThreshold          int     `long:"compaction-threshold" description:"number of sealed segments that triggers a compaction"`
	BloomFilterSize              uint    `long:"bloom-filter-size" description:"size in bits of the membership filter of each segment"`
	BloomFilterFalsePositiveRate float64 `long:"bloom-filter-false-positive-rate" description:"target false positive rate the number of filter probes is derived from"`
	MaxMemtableSize              uint64  `long:"max-memtable-size" description:"memtable size in bytes that triggers a flush"`
	WALDirectory                 string  `long:"wal-directory" description:"directory of the write-ahead log, relative to the data path unless absolute"`
	UsePread                     bool    `long:"use-pread" description:"read segments with positional reads instead of mmap"`

	LogLevel          string `long:"log-level" description:"one of trace, debug, info, warn, error"`
	LogFormat         string `long:"log-format" description:"text or json"`
	MonitoringEnabled bool   `long:"monitoring" description:"collect prometheus metrics"`
}

// Config outline of the config file
type Config struct {
	Persistence Persistence `json:"persistence" yaml:"persistence"`
	Storage     Storage     `json:"storage" yaml:"storage"`
	Logging     Logging     `json:"logging" yaml:"logging"`
	Monitoring  Monitoring  `json:"monitoring" yaml:"monitoring"`
}

// Validate the configuration
func (c *Config) Validate() error {
	if err := c.Persistence.Validate(); err != nil {
		return err
	}

	if err := c.Logging.Validate(); err != nil {
		return err
	}

	if err := c.StoreConfig().Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if p := c.Storage.BloomFilterFalsePositiveRate; p != 0 && (p <= 0 || p >= 1) {
		return fmt.Errorf("storage.bloom_filter_false_positive_rate must be between 0 and 1, got %v", p)
	}

	return nil
}

// StoreConfig is the immutable engine configuration derived from the
// storage section
func (c *Config) StoreConfig() lsmkv.Config {
	return lsmkv.Config{
		SegmentSizeBytes:            c.Storage.SegmentSize,
		CompactionThresholdSegments: c.Storage.CompactionThreshold,
		FilterSizeBits:              c.Storage.BloomFilterSize,
		MaxMemtableSizeBytes:        c.Storage.MaxMemtableSize,
		WALDirectory:                c.Storage.WALDirectory,
	}
}

type Persistence struct {
	DataPath string `json:"dataPath" yaml:"dataPath"`
}

func (p Persistence) Validate() error {
	if p.DataPath == "" {
		return fmt.Errorf("persistence.dataPath must be set")
	}

	return nil
}

// Storage holds the engine tunables
type Storage struct {
	SegmentSize                  int64   `json:"segment_size" yaml:"segment_size"`
	CompactionThreshold          int     `json:"compaction_threshold" yaml:"compaction_threshold"`
	BloomFilterSize              uint    `json:"bloom_filter_size" yaml:"bloom_filter_size"`
	BloomFilterFalsePositiveRate float64 `json:"bloom_filter_false_positive_rate" yaml:"bloom_filter_false_positive_rate"`
	MaxMemtableSize              uint64  `json:"max_memtable_size" yaml:"max_memtable_size"`
	WALDirectory                 string  `json:"wal_directory" yaml:"wal_directory"`
	UsePread                     bool    `json:"use_pread" yaml:"use_pread"`
}

type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

func (l Logging) Validate() error {
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	switch l.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be one of text, json, got %q", l.Format)
	}
}

type Monitoring struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Defaults returns a config with every value set to its default
func Defaults() Config {
	store := lsmkv.DefaultConfig()

	return Config{
		Persistence: Persistence{DataPath: DefaultPersistenceDataPath},
		Storage: Storage{
			SegmentSize:         store.SegmentSizeBytes,
			CompactionThreshold: store.CompactionThresholdSegments,
			BloomFilterSize:     store.FilterSizeBits,
			MaxMemtableSize:     store.MaxMemtableSizeBytes,
			WALDirectory:        store.WALDirectory,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig from config locations. The load order for configuration values if the following
// 1. Defaults
// 2. Config file
// 3. Environment variables
// 4. Command line flags
// If a config option is specified multiple times in different locations, the latest one will be used in this order.
func LoadConfig(flags *Flags, logger logrus.FieldLogger) (Config, error) {
	config := Defaults()

	configFileName := flags.ConfigFile
	if configFileName == "" {
		exists, err := diskio.FileExists(DefaultConfigFile)
		if err != nil {
			return config, configErr(fmt.Errorf("stat config file: %w", err))
		}
		if exists {
			configFileName = DefaultConfigFile
		}
	}

	if configFileName != "" {
		file, err := os.ReadFile(configFileName)
		if err != nil {
			return config, configErr(fmt.Errorf("read config file: %w", err))
		}

		logger.WithField("action", "config_load").
			WithField("config_file_path", configFileName).
			Debug("loading config file")

		if len(file) > 0 {
			if err := parseConfigFile(file, configFileName, &config); err != nil {
				return config, configErr(err)
			}
		}
	}

	if err := FromEnv(&config); err != nil {
		return config, configErr(err)
	}

	fromFlags(flags, &config)

	if err := config.Validate(); err != nil {
		return config, configErr(err)
	}

	return config, nil
}

// parseConfigFile decodes into config, values missing from the file keep
// what config already holds
func parseConfigFile(file []byte, name string, config *Config) error {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return fmt.Errorf("config file does not have a file ending, got '%s'", name)
	}

	switch ext {
	case "json":
		if err := json.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the json config file: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml or .json", ext)
	}

	return nil
}

// fromFlags parses values from flags given as parameter and overrides values in the config
func fromFlags(flags *Flags, config *Config) {
	if flags.DataPath != "" {
		config.Persistence.DataPath = flags.DataPath
	}
	if flags.SegmentSize > 0 {
		config.Storage.SegmentSize = flags.SegmentSize
	}
	if flags.CompactionThreshold > 0 {
		config.Storage.CompactionThreshold = flags.CompactionThreshold
	}
	if flags.BloomFilterSize > 0 {
		config.Storage.BloomFilterSize = flags.BloomFilterSize
	}
	if flags.BloomFilterFalsePositiveRate > 0 {
		config.Storage.BloomFilterFalsePositiveRate = flags.BloomFilterFalsePositiveRate
	}
	if flags.MaxMemtableSize > 0 {
		config.Storage.MaxMemtableSize = flags.MaxMemtableSize
	}
	if flags.WALDirectory != "" {
		config.Storage.WALDirectory = flags.WALDirectory
	}
	if flags.UsePread {
		config.Storage.UsePread = true
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		config.Logging.Format = flags.LogFormat
	}
	if flags.MonitoringEnabled {
		config.Monitoring.Enabled = true
	}
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
