// Package catalog persists metadata about stored artifacts: what was written,
// when, how large, and which corrupt files were quarantined. The catalog is
// advisory; artifact files on disk remain the source of truth and the
// coordinator treats catalog failures as best effort.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/statekeep/pkg/artifact"
)

// ErrNotFound is returned when a catalog entry does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// Entry is the catalog row for one durably stored artifact.
type Entry struct {
	Unit     string    `json:"unit"`
	Key      string    `json:"key"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size"`
	Checksum uint32    `json:"checksum"`
	SavedAt  time.Time `json:"saved_at"`
}

// ID returns the artifact identity of the entry.
func (e Entry) ID() artifact.ID {
	return artifact.NewID(e.Unit, e.Key)
}

// QuarantineEntry records corrupt artifact bytes that were set aside for
// inspection. Path points at the preserved file; QuarantinedAt doubles as the
// entry identity because one artifact can be quarantined more than once.
type QuarantineEntry struct {
	Unit          string    `json:"unit"`
	Key           string    `json:"key"`
	Path          string    `json:"path"`
	Reason        string    `json:"reason"`
	Size          int64     `json:"size"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}

// ID returns the artifact identity of the quarantined bytes.
func (q QuarantineEntry) ID() artifact.ID {
	return artifact.NewID(q.Unit, q.Key)
}

// Store is the catalog persistence interface. BadgerStore is the embedded
// default; PostgresStore serves deployments that already run Postgres.
type Store interface {
	// PutEntry stores or replaces the entry for an artifact.
	PutEntry(ctx context.Context, e Entry) error

	// GetEntry retrieves the entry for an artifact.
	// Returns ErrNotFound if the artifact was never catalogued.
	GetEntry(ctx context.Context, id artifact.ID) (*Entry, error)

	// ListEntries returns all catalogued artifacts sorted by unit then key.
	ListEntries(ctx context.Context) ([]Entry, error)

	// DeleteEntry removes the entry for an artifact.
	// Deleting a missing entry is not an error.
	DeleteEntry(ctx context.Context, id artifact.ID) error

	// PutQuarantine records one quarantined file.
	PutQuarantine(ctx context.Context, q QuarantineEntry) error

	// ListQuarantine returns all quarantine records sorted by unit, key,
	// then quarantine time.
	ListQuarantine(ctx context.Context) ([]QuarantineEntry, error)

	// DeleteQuarantine removes one quarantine record identified by artifact
	// and quarantine time. Returns ErrNotFound if no such record exists.
	DeleteQuarantine(ctx context.Context, id artifact.ID, quarantinedAt time.Time) error

	// Close releases the underlying database.
	Close() error
}
