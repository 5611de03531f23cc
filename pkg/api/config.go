package api

import (
	"os"
	"time"

	"github.com/marmos91/statekeep/internal/logger"
)

// EnvAPISecret is the name of the environment variable for the ops API's JWT
// signing secret. It takes precedence over the config file value.
const EnvAPISecret = "STATEKEEP_API_SECRET"

// Config configures the ops API HTTP server.
//
// The API exposes health checks, the Prometheus metrics endpoint, and
// read-only views over the catalog and run reports. Mutating endpoints
// (manual flush, quarantine deletion) exist only when authentication is
// configured.
//
// When Enabled is false, no API server is started (zero overhead).
type Config struct {
	// Enabled controls whether the API server is started.
	// Default: true (API is enabled by default)
	// Use a pointer to distinguish "not set" from "explicitly false"
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the API endpoints.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means there is no timeout.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// A zero or negative value means there is no timeout.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If zero, the value of ReadTimeout is used.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// Auth configures operator authentication for mutating endpoints.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// AuthConfig configures operator authentication.
//
// Authentication is active when PasswordHash is set. Without it the API
// serves read-only endpoints and rejects mutations.
type AuthConfig struct {
	// PasswordHash is the bcrypt hash of the operator password.
	// Generated with 'statekeep passwd'.
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`

	// JWT configures token generation and validation.
	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

// JWTConfig configures JWT token generation and validation.
type JWTConfig struct {
	// Secret is the HMAC signing key for JWT tokens.
	// Must be at least 32 characters long.
	// Can also be set via STATEKEEP_API_SECRET environment variable.
	// Environment variable takes precedence over config file.
	Secret string `mapstructure:"secret" yaml:"secret"`

	// AccessTokenDuration is the lifetime of access tokens.
	// Default: 15m
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" yaml:"access_token_duration"`

	// RefreshTokenDuration is the lifetime of refresh tokens.
	// Default: 168h (7 days)
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" yaml:"refresh_token_duration"`
}

// IsEnabled returns whether the API server is enabled.
// Defaults to true if not explicitly set.
func (c *Config) IsEnabled() bool {
	if c.Enabled == nil {
		return true // Default: enabled
	}
	return *c.Enabled
}

// AuthEnabled returns whether operator authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.Auth.PasswordHash != ""
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	// JWT defaults
	if c.Auth.JWT.AccessTokenDuration == 0 {
		c.Auth.JWT.AccessTokenDuration = 15 * time.Minute
	}
	if c.Auth.JWT.RefreshTokenDuration == 0 {
		c.Auth.JWT.RefreshTokenDuration = 7 * 24 * time.Hour
	}
}

// GetJWTSecret returns the JWT secret, preferring the environment variable.
// Returns empty string if neither env var nor config secret is set.
// Logs a warning if the environment variable overrides a config file value.
func (c *Config) GetJWTSecret() string {
	envSecret := os.Getenv(EnvAPISecret)
	if envSecret != "" {
		if c.Auth.JWT.Secret != "" && c.Auth.JWT.Secret != envSecret {
			logger.Warn("JWT secret from environment variable overrides config file value",
				"env_var", EnvAPISecret)
		}
		return envSecret
	}
	return c.Auth.JWT.Secret
}

// HasJWTSecret returns whether a JWT secret is configured.
func (c *Config) HasJWTSecret() bool {
	return c.GetJWTSecret() != ""
}
