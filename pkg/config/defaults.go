package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/statekeep/pkg/api"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAPIDefaults(&cfg.API)
	applyStorageDefaults(&cfg.Storage)
	applyCatalogDefaults(cfg)
	cfg.Reports.ApplyDefaults()
	cfg.Coordinator.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	// Apply profiling defaults
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)
	// No need to set, zero value is false

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyAPIDefaults sets ops API server defaults.
func applyAPIDefaults(cfg *api.Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.Auth.JWT.AccessTokenDuration == 0 {
		cfg.Auth.JWT.AccessTokenDuration = 15 * time.Minute
	}
	if cfg.Auth.JWT.RefreshTokenDuration == 0 {
		cfg.Auth.JWT.RefreshTokenDuration = 7 * 24 * time.Hour
	}
}

// applyStorageDefaults sets artifact storage defaults.
// Storage path is required and has no default.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Quarantine == "" && cfg.Path != "" {
		cfg.Quarantine = filepath.Join(cfg.Path, "quarantine")
	}
}

// applyCatalogDefaults sets catalog backend defaults. The Badger backend
// defaults its path next to the artifact tree so one data directory holds
// both.
func applyCatalogDefaults(cfg *Config) {
	if cfg.Catalog.Backend == "" {
		cfg.Catalog.Backend = CatalogBackendBadger
	}
	if cfg.Catalog.Backend == CatalogBackendBadger && cfg.Catalog.Badger.Path == "" && cfg.Storage.Path != "" {
		cfg.Catalog.Badger.Path = filepath.Join(cfg.Storage.Path, "catalog")
	}
	if cfg.Catalog.Backend == CatalogBackendPostgres {
		cfg.Catalog.Postgres.ApplyDefaults()
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Storage: StorageConfig{
			Path: "/var/lib/statekeep/artifacts",
		},
		Units: []UnitConfig{
			{
				ID:   "qlearning",
				Keys: map[string]string{"qtable": "zstd"},
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
