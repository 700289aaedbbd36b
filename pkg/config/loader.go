package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "CARGODIST_"
	configEnvVar = "CONFIG_PATH"
)

// Loader assembles configuration from multiple sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths replaces the list of config file candidates.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.configPaths = paths }
}

// WithEnvPrefix replaces the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// NewLoader creates a configuration loader with the default search paths.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/cargodist/config.yaml",
		},
		envPrefix: envPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges configuration sources in ascending priority:
// built-in defaults, then a YAML config file, then environment variables.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// The config file is optional.
	if err := l.loadConfigFile(); err != nil {
		return nil, err
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "cargodist",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 5,
		"log.max_age":     30,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "cargodist",
		"metrics.subsystem": "solver",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "cargodist",
		"tracing.sample_rate":  0.1,

		// Cache
		"cache.enabled":          false,
		"cache.backend":          "memory",
		"cache.default_ttl":      5 * time.Minute,
		"cache.max_entries":      100000,
		"cache.cleanup_interval": time.Minute,
		"cache.redis_addr":       "localhost:6379",
		"cache.redis_db":         0,
		"cache.redis_pool_size":  10,

		// Solver
		"solver.accuracy":             16,
		"solver.max_saturation":       80,
		"solver.distribution_mode":    "asymmetric",
		"solver.compression_interval": 21 * 24 * time.Hour,
		"solver.workers":              0, // 0 = GOMAXPROCS
		"solver.job_timeout":          30 * time.Second,
	}
	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() error {
	paths := l.configPaths
	if p := os.Getenv(l.envPrefix + configEnvVar); p != "" {
		paths = append([]string{p}, paths...)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// envKeyMappings resolves environment keys whose config names themselves
// contain underscores, which the default underscore-to-dot rewrite would
// split incorrectly.
var envKeyMappings = map[string]string{
	"log.file.path":               "log.file_path",
	"log.max.size":                "log.max_size",
	"log.max.backups":             "log.max_backups",
	"log.max.age":                 "log.max_age",
	"tracing.service.name":        "tracing.service_name",
	"tracing.sample.rate":         "tracing.sample_rate",
	"cache.default.ttl":           "cache.default_ttl",
	"cache.max.entries":           "cache.max_entries",
	"cache.cleanup.interval":      "cache.cleanup_interval",
	"cache.redis.addr":            "cache.redis_addr",
	"cache.redis.password":        "cache.redis_password",
	"cache.redis.db":              "cache.redis_db",
	"cache.redis.pool.size":       "cache.redis_pool_size",
	"solver.max.saturation":       "solver.max_saturation",
	"solver.distribution.mode":    "solver.distribution_mode",
	"solver.compression.interval": "solver.compression_interval",
	"solver.job.timeout":          "solver.job_timeout",
}

func (l *Loader) loadEnv() error {
	// CARGODIST_SOLVER_ACCURACY -> solver.accuracy
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, l.envPrefix)), "_", ".")
		if mapped, ok := envKeyMappings[key]; ok {
			return mapped
		}
		return key
	}), nil)
}

// Load is a convenience wrapper around NewLoader().Load().
func Load() (*Config, error) {
	return NewLoader().Load()
}
