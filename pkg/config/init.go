package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig creates a configuration file at the default location.
//
// Returns the path of the created file. When a config file already exists
// and force is false, an error is returned and the file is left untouched.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a configuration file at the given path, creating
// parent directories as needed.
//
// The generated file is a commented starter config with a freshly generated
// JWT secret; it loads and validates as-is.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	secret, err := generateJWTSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	content := buildConfigTemplate(secret)

	// 0600: the file carries the JWT secret and, later, a password hash.
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateJWTSecret returns a 64-character hex secret from crypto/rand.
func generateJWTSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// defaultDataDir returns the artifact data directory for generated configs.
//
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share, falling back to the
// current directory.
func defaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "statekeep")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "statekeep-data"
	}

	return filepath.Join(home, ".local", "share", "statekeep")
}

// buildConfigTemplate renders the starter configuration file.
func buildConfigTemplate(jwtSecret string) string {
	dataDir := defaultDataDir()

	return fmt.Sprintf(`# statekeep Configuration File
#
# Configuration sources (in order of precedence):
#   1. Environment variables (STATEKEEP_*)
#   2. This file
#   3. Built-in defaults
#
# Example: STATEKEEP_LOGGING_LEVEL=DEBUG overrides logging.level.

logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: INFO
  # Output format: text or json
  format: text
  # Destination: stdout, stderr, or a file path
  output: stdout

telemetry:
  # OpenTelemetry tracing (opt-in)
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    # Pyroscope continuous profiling (opt-in)
    enabled: false
    endpoint: http://localhost:4040

metrics:
  # Prometheus metrics, served at /metrics on the ops API
  enabled: false

api:
  # Ops API: health, catalog and run-report views, manual flush
  enabled: true
  port: 8080
  auth:
    # Set with 'statekeep passwd' to enable mutating endpoints
    # password_hash: ""
    jwt:
      secret: %q
      access_token_duration: 15m
      refresh_token_duration: 168h

storage:
  # Artifact files live at <path>/<unit>/<key>.skp
  path: %s
  # Corrupt artifacts are preserved under <path>/quarantine
  # quarantine: ""
  mirror:
    # Best-effort S3 mirroring of flushed artifacts (opt-in)
    enabled: false
    # bucket: my-statekeep-mirror
    # region: us-east-1
    # endpoint: ""
    # key_prefix: statekeep/
    # force_path_style: false

catalog:
  # Artifact catalog backend: badger (embedded, default) or postgres
  backend: badger
  badger:
    path: %s

reports:
  # Run-report store: sqlite (default) or postgres
  type: sqlite
  sqlite:
    path: %s

coordinator:
  # Drain wait before exclusive runs
  quiescence_timeout: 5s
  # Per-artifact flush budget
  flush_timeout: 30s
  # Overall shutdown budget
  shutdown_timeout: 30s
  # Saves within this window coalesce into one flush
  debounce_interval: 1s
  # Refuse exclusive runs instead of proceeding when the drain times out
  strict_quiescence: false

units:
  # Learning units and their persisted keys (codec: raw or zstd)
  - id: qlearning
    keys:
      qtable: zstd
  - id: genetic
    keys:
      population: raw
      hyperparams: raw
`,
		jwtSecret,
		filepath.Join(dataDir, "artifacts"),
		filepath.Join(dataDir, "catalog"),
		filepath.Join(dataDir, "reports.db"),
	)
}
