package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/artifact"
)

// PostgresConfig holds the configuration for the Postgres catalog backend.
type PostgresConfig struct {
	// Connection parameters
	Host     string `mapstructure:"host" validate:"required" yaml:"host"`
	Port     int    `mapstructure:"port" validate:"required" yaml:"port"`
	Database string `mapstructure:"database" validate:"required" yaml:"database"`
	User     string `mapstructure:"user" validate:"required" yaml:"user"`
	Password string `mapstructure:"password" validate:"required" yaml:"password"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full prefer" yaml:"ssl_mode"`

	// Connection pool
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns,omitempty"`                 // Default: 10
	MinConns        int32         `mapstructure:"min_conns" yaml:"min_conns,omitempty"`                 // Default: 2
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime,omitempty"` // Default: 1h

	// Timeouts
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout,omitempty"` // Default: 5s
	QueryTimeout   time.Duration `mapstructure:"query_timeout" yaml:"query_timeout,omitempty"`     // Default: 30s

	// AutoMigrate runs schema migrations on open. Default: true.
	AutoMigrate *bool `mapstructure:"auto_migrate" yaml:"auto_migrate,omitempty"`
}

// ApplyDefaults sets default values for unspecified configuration fields.
func (c *PostgresConfig) ApplyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 1 * time.Hour
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
	if c.AutoMigrate == nil {
		enabled := true
		c.AutoMigrate = &enabled
	}
}

// Validate checks if the configuration is valid.
func (c *PostgresConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// ConnectionString builds a PostgreSQL connection string from the config.
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.Host,
		c.Port,
		c.Database,
		c.User,
		c.Password,
		c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

// PostgresStore is the Postgres catalog backend for deployments that already
// run a database server.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects to Postgres, optionally runs migrations, and returns
// the catalog store.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog configuration: %w", err)
	}

	if *cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg.ConnectionString()); err != nil {
			return nil, fmt.Errorf("failed to run catalog migrations: %w", err)
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if cfg.QueryTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeout.Milliseconds())
	}

	logger.Info("Connecting to Postgres catalog",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"user", cfg.User,
		"max_conns", cfg.MaxConns,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// PutEntry stores or replaces the entry for an artifact.
func (s *PostgresStore) PutEntry(ctx context.Context, e Entry) error {
	query := `
		INSERT INTO artifacts (unit, key, kind, size, checksum, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unit, key) DO UPDATE SET
			kind = EXCLUDED.kind,
			size = EXCLUDED.size,
			checksum = EXCLUDED.checksum,
			saved_at = EXCLUDED.saved_at
	`
	_, err := s.pool.Exec(ctx, query, e.Unit, e.Key, e.Kind, e.Size, int64(e.Checksum), e.SavedAt)
	if err != nil {
		return fmt.Errorf("failed to store catalog entry %s: %w", e.ID(), err)
	}
	return nil
}

// GetEntry retrieves the entry for an artifact.
func (s *PostgresStore) GetEntry(ctx context.Context, id artifact.ID) (*Entry, error) {
	query := `
		SELECT unit, key, kind, size, checksum, saved_at
		FROM artifacts
		WHERE unit = $1 AND key = $2
	`
	var (
		e        Entry
		checksum int64
	)
	err := s.pool.QueryRow(ctx, query, id.Unit, id.Key).
		Scan(&e.Unit, &e.Key, &e.Kind, &e.Size, &checksum, &e.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog entry %s: %w", id, err)
	}
	e.Checksum = uint32(checksum)
	return &e, nil
}

// ListEntries returns all catalogued artifacts sorted by unit then key.
func (s *PostgresStore) ListEntries(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT unit, key, kind, size, checksum, saved_at
		FROM artifacts
		ORDER BY unit, key
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			checksum int64
		)
		if err := rows.Scan(&e.Unit, &e.Key, &e.Kind, &e.Size, &checksum, &e.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		e.Checksum = uint32(checksum)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes the entry for an artifact. Missing entries are ignored.
func (s *PostgresStore) DeleteEntry(ctx context.Context, id artifact.ID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM artifacts WHERE unit = $1 AND key = $2`, id.Unit, id.Key)
	if err != nil {
		return fmt.Errorf("failed to delete catalog entry %s: %w", id, err)
	}
	return nil
}

// PutQuarantine records one quarantined file.
func (s *PostgresStore) PutQuarantine(ctx context.Context, q QuarantineEntry) error {
	query := `
		INSERT INTO quarantine (unit, key, path, reason, size, quarantined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unit, key, quarantined_at) DO UPDATE SET
			path = EXCLUDED.path,
			reason = EXCLUDED.reason,
			size = EXCLUDED.size
	`
	_, err := s.pool.Exec(ctx, query,
		q.Unit, q.Key, q.Path, q.Reason, q.Size, q.QuarantinedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store quarantine record %s: %w", q.ID(), err)
	}
	return nil
}

// ListQuarantine returns all quarantine records sorted by unit, key, then time.
func (s *PostgresStore) ListQuarantine(ctx context.Context) ([]QuarantineEntry, error) {
	query := `
		SELECT unit, key, path, reason, size, quarantined_at
		FROM quarantine
		ORDER BY unit, key, quarantined_at
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantine records: %w", err)
	}
	defer rows.Close()

	var records []QuarantineEntry
	for rows.Next() {
		var (
			q     QuarantineEntry
			nanos int64
		)
		if err := rows.Scan(&q.Unit, &q.Key, &q.Path, &q.Reason, &q.Size, &nanos); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine record: %w", err)
		}
		q.QuarantinedAt = time.Unix(0, nanos)
		records = append(records, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list quarantine records: %w", err)
	}
	return records, nil
}

// DeleteQuarantine removes one quarantine record.
func (s *PostgresStore) DeleteQuarantine(ctx context.Context, id artifact.ID, quarantinedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM quarantine WHERE unit = $1 AND key = $2 AND quarantined_at = $3`,
		id.Unit, id.Key, quarantinedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to delete quarantine record %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quarantine record %s@%d: %w", id, quarantinedAt.UnixNano(), ErrNotFound)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
