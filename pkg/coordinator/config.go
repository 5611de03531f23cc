package coordinator

import (
	"fmt"
	"time"
)

// Config holds coordinator configuration.
//
// The mapstructure-tagged fields form the coordinator section of the config
// file; Root and QuarantineDir come from the storage section and are filled
// in by the caller before New.
type Config struct {
	// Root is the artifact storage directory (required).
	// Artifact files live at <Root>/<unit>/<key>.skp.
	Root string `mapstructure:"-" yaml:"-"`

	// QuarantineDir is where corrupt artifact bytes are preserved.
	// Default: <Root>/quarantine
	QuarantineDir string `mapstructure:"-" yaml:"-"`

	// Workers bounds FlushAll and startup-load parallelism.
	// Default: the number of registered units
	Workers int `mapstructure:"workers" yaml:"workers,omitempty"`

	// QuiescenceTimeout bounds the drain wait of every exclusive run.
	// An exclusive run whose wait expires proceeds with a warning unless
	// StrictQuiescence is set.
	// Default: 5s
	QuiescenceTimeout time.Duration `mapstructure:"quiescence_timeout" yaml:"quiescence_timeout"`

	// FlushTimeout bounds each per-artifact flush inside a full flush.
	// An artifact that misses it is abandoned (left dirty) and reported.
	// Default: 30s
	FlushTimeout time.Duration `mapstructure:"flush_timeout" yaml:"flush_timeout"`

	// ShutdownTimeout is the overall RunShutdown budget when the caller
	// passes no explicit timeout.
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// DebounceInterval delays async flushes so bursts of saves to the same
	// artifact coalesce into one durable write.
	// Default: 1s
	DebounceInterval time.Duration `mapstructure:"debounce_interval" yaml:"debounce_interval"`

	// StrictQuiescence refuses exclusive runs whose drain wait times out
	// instead of proceeding with a warning.
	// Default: false
	StrictQuiescence bool `mapstructure:"strict_quiescence" yaml:"strict_quiescence"`
}

// ApplyDefaults sets default values for unspecified fields. Workers stays
// zero here; New sizes it to the registry when unset.
func (c *Config) ApplyDefaults() {
	if c.QuiescenceTimeout <= 0 {
		c.QuiescenceTimeout = 5 * time.Second
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("storage root is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	return nil
}
