package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/statekeep/pkg/artifact"
)

// validate is the package-wide validator instance.
// Initialized once; struct tags drive the field-level rules.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration for errors.
//
// Validation happens in two passes: struct tags (required, oneof, ranges)
// via go-playground/validator, then cross-field rules the tags cannot
// express (telemetry endpoint when enabled, unit codec names, auth secret
// length).
//
// Validate does not mutate the config; normalization belongs to
// ApplyDefaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	if err := validateCatalog(&cfg.Catalog); err != nil {
		return err
	}
	if err := cfg.Reports.Validate(); err != nil {
		return fmt.Errorf("reports: %w", err)
	}
	if err := validateCoordinator(cfg); err != nil {
		return err
	}
	if err := validateUnits(cfg.Units); err != nil {
		return err
	}
	if err := validateAPIAuth(cfg); err != nil {
		return err
	}

	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	if cfg.Enabled && cfg.Endpoint == "" {
		return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
	}
	if cfg.Profiling.Enabled && cfg.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling endpoint is required when profiling is enabled")
	}
	return nil
}

func validateCatalog(cfg *CatalogConfig) error {
	switch cfg.Backend {
	case CatalogBackendBadger:
		if cfg.Badger.Path == "" && !cfg.Badger.InMemory {
			return fmt.Errorf("catalog badger path is required")
		}
	case CatalogBackendPostgres:
		if err := cfg.Postgres.Validate(); err != nil {
			return fmt.Errorf("catalog postgres: %w", err)
		}
	default:
		return fmt.Errorf("unsupported catalog backend: %s (valid: badger, postgres)", cfg.Backend)
	}
	return nil
}

func validateCoordinator(cfg *Config) error {
	if cfg.Coordinator.Workers < 0 {
		return fmt.Errorf("coordinator workers cannot be negative")
	}
	return nil
}

// validateUnits checks unit declarations: unique ids, at least one key per
// unit, and codec names the artifact package knows.
func validateUnits(units []UnitConfig) error {
	seen := make(map[string]bool, len(units))
	for i, u := range units {
		if u.ID == "" {
			return fmt.Errorf("unit #%d: id cannot be empty", i+1)
		}
		if seen[u.ID] {
			return fmt.Errorf("unit %q: declared more than once", u.ID)
		}
		seen[u.ID] = true

		if len(u.Keys) == 0 {
			return fmt.Errorf("unit %q: at least one key is required", u.ID)
		}
		for key, codec := range u.Keys {
			if key == "" {
				return fmt.Errorf("unit %q: key name cannot be empty", u.ID)
			}
			if _, err := artifact.ParseKind(codec); err != nil {
				return fmt.Errorf("unit %q key %q: %w", u.ID, key, err)
			}
		}
	}
	return nil
}

// validateAPIAuth requires a strong JWT secret whenever operator auth is
// configured. The secret may come from the environment instead of the file.
func validateAPIAuth(cfg *Config) error {
	if !cfg.API.AuthEnabled() {
		return nil
	}
	secret := cfg.API.GetJWTSecret()
	if secret == "" {
		return fmt.Errorf("api auth: jwt secret is required when a password hash is set")
	}
	if len(secret) < 32 {
		return fmt.Errorf("api auth: jwt secret must be at least 32 characters, got %d", len(secret))
	}
	return nil
}
