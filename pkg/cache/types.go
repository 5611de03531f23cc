// Package cache implements dirty/clean bookkeeping and payload caching for
// persisted artifacts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marmos91/statekeep/pkg/artifact"
)

// ============================================================================
// Errors
// ============================================================================

// ErrCacheClosed is returned when operations are attempted on a closed cache.
var ErrCacheClosed = errors.New("cache is closed")

// TransientError wraps a flush failure. The artifact stays dirty and the
// same flush is safe to retry.
type TransientError struct {
	ID  artifact.ID
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("flush %s: %v", e.ID, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PartialFlushError aggregates the failures of one FlushAll pass. Successful
// artifacts stay flushed; failed ones stay dirty for the next pass.
type PartialFlushError struct {
	Failed []artifact.ID
	Errors map[artifact.ID]error
}

func (e *PartialFlushError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, id := range e.Failed {
		ids[i] = id.String()
	}
	return fmt.Sprintf("flush failed for %d artifact(s): %s", len(e.Failed), strings.Join(ids, ", "))
}

// ============================================================================
// Reports
// ============================================================================

// FlushReport is the aggregate outcome of a FlushAll pass.
type FlushReport struct {
	Succeeded []artifact.ID
	Failed    []artifact.ID
	Errors    map[artifact.ID]error
	Duration  time.Duration
}

// Err returns nil when every artifact flushed, otherwise a
// *PartialFlushError naming the stragglers.
func (r *FlushReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialFlushError{Failed: r.Failed, Errors: r.Errors}
}

func sortIDs(ids []artifact.ID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Unit != ids[j].Unit {
			return ids[i].Unit < ids[j].Unit
		}
		return ids[i].Key < ids[j].Key
	})
}

// ============================================================================
// Collaborator seams
// ============================================================================

// KindResolver maps an artifact to its registered codec kind. A nil resolver
// means every artifact is stored raw.
type KindResolver interface {
	Codec(unit, key string) (artifact.Kind, error)
}

// FlushRecord describes one durably written artifact.
type FlushRecord struct {
	ID   artifact.ID
	Kind artifact.Kind
	Size int64
	Sum  uint32
	At   time.Time
}

// QuarantineRecord describes corrupt stored bytes set aside for inspection.
type QuarantineRecord struct {
	ID     artifact.ID
	Reason string
	Path   string
	Size   int64
	At     time.Time
}

// Journal receives artifact lifecycle events (flushes, quarantines) for
// recording outside the cache: catalog rows, mirror uploads. Implementations
// are best effort and must not block for long; the cache never fails an
// operation because the journal did.
type Journal interface {
	ArtifactFlushed(ctx context.Context, rec FlushRecord)
	ArtifactQuarantined(ctx context.Context, rec QuarantineRecord)
}

// ============================================================================
// Configuration
// ============================================================================

// Config holds cache configuration.
type Config struct {
	// Root is the storage directory. Artifact files live at
	// <Root>/<unit>/<key>.skp.
	Root string

	// QuarantineDir is where corrupt artifact bytes are preserved.
	// Default: <Root>/quarantine.
	QuarantineDir string

	// Workers bounds FlushAll parallelism; the coordinator sizes it to the
	// number of registered units. Default: 4.
	Workers int

	// FlushTimeout bounds each per-artifact flush inside FlushAll.
	// An artifact that misses it is abandoned (left dirty) and reported.
	// Default: 30s.
	FlushTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QuarantineDir == "" {
		c.QuarantineDir = filepath.Join(c.Root, "quarantine")
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 30 * time.Second
	}
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Artifacts     int `json:"artifacts"`
	Dirty         int `json:"dirty"`
	Cached        int `json:"cached"`
	QueuedFlushes int `json:"queued_flushes"`
	OpenChannels  int `json:"open_channels"`
}
