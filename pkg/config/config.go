// Package config loads and validates the process configuration from
// defaults, an optional YAML file and environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	App     AppConfig     `koanf:"app"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Tracing TracingConfig `koanf:"tracing"`
	Cache   CacheConfig   `koanf:"cache"`
	Solver  SolverConfig  `koanf:"solver"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"` // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"` // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// CacheConfig holds route cache settings.
type CacheConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Backend         string        `koanf:"backend"` // memory, redis
	DefaultTTL      time.Duration `koanf:"default_ttl"`
	MaxEntries      int           `koanf:"max_entries"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
	RedisPassword   string        `koanf:"redis_password"`
	RedisDB         int           `koanf:"redis_db"`
	RedisPoolSize   int           `koanf:"redis_pool_size"`
}

// SolverConfig holds the tunables of the cargo distribution solver.
//
// Accuracy is an inverse granularity: per-pair demand is divided by it to
// obtain the flow quantum pushed per round, so higher values spread flow
// assignment over more rounds. MaxSaturation caps edge capacity (as a
// percentage) during the first solver pass to leave headroom for the second.
type SolverConfig struct {
	Accuracy            uint          `koanf:"accuracy"`
	MaxSaturation       uint          `koanf:"max_saturation"`    // percent, 0 = unlimited
	DistributionMode    string        `koanf:"distribution_mode"` // symmetric, asymmetric
	CompressionInterval time.Duration `koanf:"compression_interval"`
	Workers             int           `koanf:"workers"`
	JobTimeout          time.Duration `koanf:"job_timeout"`
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port %d", c.Metrics.Port)
	}
	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("invalid tracing sample rate %f", c.Tracing.SampleRate)
	}
	switch c.Cache.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache backend %q", c.Cache.Backend)
	}
	if c.Solver.Accuracy == 0 {
		return fmt.Errorf("solver accuracy must be at least 1")
	}
	if c.Solver.MaxSaturation > 1000 {
		return fmt.Errorf("solver max saturation %d%% out of range", c.Solver.MaxSaturation)
	}
	switch c.Solver.DistributionMode {
	case "symmetric", "asymmetric":
	default:
		return fmt.Errorf("invalid distribution mode %q", c.Solver.DistributionMode)
	}
	if c.Solver.Workers < 0 {
		return fmt.Errorf("solver workers must not be negative")
	}
	return nil
}
