package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults in Normalize.
type Config struct {
	Addr               string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir          string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	MaxQuotaBytes      int64    `json:"max_quota_bytes" yaml:"max_quota_bytes" toml:"max_quota_bytes"`
	DefaultModel       string   `json:"default_model" yaml:"default_model" toml:"default_model"`
	ResidencyLimit     int      `json:"residency_limit" yaml:"residency_limit" toml:"residency_limit"`
	BatchSize          int      `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	BatchWindowMS      int      `json:"batch_window_ms" yaml:"batch_window_ms" toml:"batch_window_ms"`
	PoolSize           int      `json:"pool_size" yaml:"pool_size" toml:"pool_size"`
	MaxConcurrentTasks int      `json:"max_concurrent_tasks" yaml:"max_concurrent_tasks" toml:"max_concurrent_tasks"`
	PruneIntervalS     int      `json:"prune_interval_s" yaml:"prune_interval_s" toml:"prune_interval_s"`
	Preload            []string `json:"preload" yaml:"preload" toml:"preload"`
	SourceDir          string   `json:"source_dir" yaml:"source_dir" toml:"source_dir"`
	EngineCtxSize      int      `json:"engine_ctx_size" yaml:"engine_ctx_size" toml:"engine_ctx_size"`
	EngineThreads      int      `json:"engine_threads" yaml:"engine_threads" toml:"engine_threads"`
	LogLevel           string   `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Defaults applied by Normalize for unset fields.
const (
	DefaultAddr          = ":8080"
	DefaultModelsDir     = "~/.inferd/models"
	DefaultBatchSize     = 4
	DefaultBatchWindowMS = 100
	DefaultPoolSize      = 4
	DefaultMaxTasks      = 2
	DefaultPruneS        = 300
)

// Normalize fills unset fields with package defaults.
func (c *Config) Normalize() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchWindowMS <= 0 {
		c.BatchWindowMS = DefaultBatchWindowMS
	}
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = DefaultMaxTasks
	}
	if c.PruneIntervalS <= 0 {
		c.PruneIntervalS = DefaultPruneS
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
