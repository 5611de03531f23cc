package coordinator

import (
	"context"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/cache"
	"github.com/marmos91/statekeep/pkg/catalog"
)

// journal receives artifact lifecycle events from the cache and fans them
// out: per-unit flush counters, catalog rows, mirror uploads, and the
// capture window of the current exclusive run. Every hop is best effort;
// the cache never fails an operation because one of these did.
type journal struct {
	c *Coordinator
}

func (j journal) ArtifactFlushed(ctx context.Context, rec cache.FlushRecord) {
	c := j.c
	c.bumpFlush(rec.ID.Unit, rec.Size)
	c.captureFlush(rec.ID, rec.Size)

	if c.catalog != nil {
		err := c.catalog.PutEntry(ctx, catalog.Entry{
			Unit:     rec.ID.Unit,
			Key:      rec.ID.Key,
			Kind:     rec.Kind.String(),
			Size:     rec.Size,
			Checksum: rec.Sum,
			SavedAt:  rec.At,
		})
		if err != nil {
			logger.Warn("catalog entry not recorded",
				"unit", rec.ID.Unit, "key", rec.ID.Key, "error", err)
		}
	}

	if c.uploader != nil {
		c.uploader.Enqueue(rec.ID)
	}
}

func (j journal) ArtifactQuarantined(ctx context.Context, rec cache.QuarantineRecord) {
	c := j.c
	c.captureQuarantine(rec.ID, rec.Reason)

	if c.catalog == nil {
		return
	}

	err := c.catalog.PutQuarantine(ctx, catalog.QuarantineEntry{
		Unit:          rec.ID.Unit,
		Key:           rec.ID.Key,
		Path:          rec.Path,
		Reason:        rec.Reason,
		Size:          rec.Size,
		QuarantinedAt: rec.At,
	})
	if err != nil {
		logger.Warn("quarantine not recorded",
			"unit", rec.ID.Unit, "key", rec.ID.Key, "error", err)
	}

	// The artifact entry now describes bytes that were quarantined away.
	if err := c.catalog.DeleteEntry(ctx, rec.ID); err != nil {
		logger.Warn("stale catalog entry not removed",
			"unit", rec.ID.Unit, "key", rec.ID.Key, "error", err)
	}
}

// Exclusive runs open a capture window so per-artifact journal events can be
// folded into the run report: flushed sizes, and quarantines that explain
// why a warm load came back empty. Exclusive runs are serialized by the
// gate, so a single window suffices.

func (c *Coordinator) beginCapture() {
	c.capMu.Lock()
	c.capFlushed = make(map[artifact.ID]int64)
	c.capQuarantined = make(map[artifact.ID]string)
	c.capMu.Unlock()
}

func (c *Coordinator) endCapture() (map[artifact.ID]int64, map[artifact.ID]string) {
	c.capMu.Lock()
	flushed, quarantined := c.capFlushed, c.capQuarantined
	c.capFlushed, c.capQuarantined = nil, nil
	c.capMu.Unlock()
	return flushed, quarantined
}

func (c *Coordinator) captureFlush(id artifact.ID, size int64) {
	c.capMu.Lock()
	if c.capFlushed != nil {
		c.capFlushed[id] = size
	}
	c.capMu.Unlock()
}

func (c *Coordinator) captureQuarantine(id artifact.ID, reason string) {
	c.capMu.Lock()
	if c.capQuarantined != nil {
		c.capQuarantined[id] = reason
	}
	c.capMu.Unlock()
}
