package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/artifact"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so prefixed keys separate the two record
// types into namespaces:
//
// Data Type            Prefix   Key Format                       Value Type
// ===========================================================================
// Artifact entries     "a:"     a:<unit>/<key>                   Entry (JSON)
// Quarantine records   "q:"     q:<unit>/<key>:<unixnano>        QuarantineEntry (JSON)
//
// The quarantine key carries the quarantine time because one artifact can be
// quarantined more than once; the nanosecond stamp matches the preserved
// file name, so an API delete can address an exact record.

const (
	prefixEntry      = "a:"
	prefixQuarantine = "q:"
)

func keyEntry(id artifact.ID) []byte {
	return []byte(prefixEntry + id.String())
}

func keyQuarantine(id artifact.ID, at time.Time) []byte {
	return []byte(prefixQuarantine + id.String() + ":" + strconv.FormatInt(at.UnixNano(), 10))
}

// BadgerConfig holds configuration for the embedded Badger catalog.
type BadgerConfig struct {
	// Path is the directory for the database files. Required unless InMemory.
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory,omitempty"`

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes,omitempty"`
}

// badgerLogger adapts the process logger to Badger's Logger interface.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf("badger: "+format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf("badger: "+format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf("badger: "+format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf("badger: "+format, args...))
}

// BadgerStore is the embedded default catalog backend.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens (creating if necessary) the Badger catalog at cfg.Path.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("catalog: badger path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger catalog: %w", err)
	}

	logger.Debug("Badger catalog opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &BadgerStore{db: db}, nil
}

// PutEntry stores or replaces the entry for an artifact.
func (s *BadgerStore) PutEntry(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode catalog entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyEntry(e.ID()), value)
	})
}

// GetEntry retrieves the entry for an artifact.
func (s *BadgerStore) GetEntry(ctx context.Context, id artifact.ID) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyEntry(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("artifact %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			var e Entry
			if err := json.Unmarshal(val, &e); err != nil {
				return fmt.Errorf("failed to decode catalog entry: %w", err)
			}
			entry = &e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListEntries returns all catalogued artifacts sorted by unit then key.
func (s *BadgerStore) ListEntries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e Entry
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("failed to decode catalog entry: %w", err)
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Unit != entries[j].Unit {
			return entries[i].Unit < entries[j].Unit
		}
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

// DeleteEntry removes the entry for an artifact. Missing entries are ignored.
func (s *BadgerStore) DeleteEntry(ctx context.Context, id artifact.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyEntry(id))
	})
}

// PutQuarantine records one quarantined file.
func (s *BadgerStore) PutQuarantine(ctx context.Context, q QuarantineEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to encode quarantine record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyQuarantine(q.ID(), q.QuarantinedAt), value)
	})
}

// ListQuarantine returns all quarantine records sorted by unit, key, then time.
func (s *BadgerStore) ListQuarantine(ctx context.Context) ([]QuarantineEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []QuarantineEntry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixQuarantine)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var q QuarantineEntry
				if err := json.Unmarshal(val, &q); err != nil {
					return fmt.Errorf("failed to decode quarantine record: %w", err)
				}
				records = append(records, q)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Unit != records[j].Unit {
			return records[i].Unit < records[j].Unit
		}
		if records[i].Key != records[j].Key {
			return records[i].Key < records[j].Key
		}
		return records[i].QuarantinedAt.Before(records[j].QuarantinedAt)
	})
	return records, nil
}

// DeleteQuarantine removes one quarantine record.
func (s *BadgerStore) DeleteQuarantine(ctx context.Context, id artifact.ID, quarantinedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := keyQuarantine(id, quarantinedAt)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("quarantine record %s@%d: %w", id, quarantinedAt.UnixNano(), ErrNotFound)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
