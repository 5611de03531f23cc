package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/stream"
)

// Flush durably writes the artifact's cached payload: envelope-encode, write
// through a fresh stream bridge, truncate to the written length, sync. A
// clean artifact is a no-op. On success the dirty flag clears and the
// payload is evicted; on failure both survive for retry and the error is a
// *TransientError.
//
// In-flight channel operations are always awaited, even past the context
// deadline: abandoning a write mid-air could land bytes after a later
// truncate. An expired context therefore only aborts between steps.
func (c *Cache) Flush(ctx context.Context, id artifact.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e, err := c.entryFor(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dirty {
		return nil
	}

	start := time.Now()
	payload := e.payload

	raw, err := artifact.Encode(e.kind, payload)
	if err != nil {
		c.flushFailed(id)
		return &TransientError{ID: id, Err: err}
	}

	ch, err := c.channelLocked(e)
	if err != nil {
		c.flushFailed(id)
		return &TransientError{ID: id, Err: err}
	}

	w := stream.New(ch, id.String())
	if _, err := w.Write(raw); err != nil {
		c.flushFailed(id)
		return &TransientError{ID: id, Err: err}
	}
	if err := ctx.Err(); err != nil {
		c.flushFailed(id)
		return &TransientError{ID: id, Err: err}
	}
	if err := ch.Truncate(int64(len(raw))); err != nil {
		c.flushFailed(id)
		return &TransientError{ID: id, Err: err}
	}
	if err := ch.Sync(); err != nil {
		c.flushFailed(id)
		return &TransientError{ID: id, Err: err}
	}

	now := time.Now()
	e.dirty = false
	e.payload = nil
	e.lastPersisted = now
	e.savedSum = artifact.PayloadSum(payload)
	e.hasSavedSum = true

	if c.metrics != nil {
		c.metrics.ObserveFlush(id.Unit, int64(len(raw)), time.Since(start))
	}
	if c.journal != nil {
		c.journal.ArtifactFlushed(ctx, FlushRecord{
			ID:   id,
			Kind: e.kind,
			Size: int64(len(raw)),
			Sum:  e.savedSum,
			At:   now,
		})
	}

	logger.Debug("artifact flushed",
		"unit", id.Unit,
		"key", id.Key,
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (c *Cache) flushFailed(id artifact.ID) {
	if c.metrics != nil {
		c.metrics.RecordFlushError(id.Unit)
	}
}

// FlushAll flushes every dirty artifact with bounded parallelism. Each
// artifact gets its own sub-deadline; one artifact's failure never blocks
// another's flush. Failed artifacts stay dirty and are named in the report.
func (c *Cache) FlushAll(ctx context.Context) *FlushReport {
	start := time.Now()
	ids := c.Dirty()

	report := &FlushReport{Errors: make(map[artifact.ID]error)}
	if len(ids) == 0 {
		report.Duration = time.Since(start)
		return report
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			flushCtx, cancel := context.WithTimeout(ctx, c.cfg.FlushTimeout)
			defer cancel()

			err := c.Flush(flushCtx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, id)
				report.Errors[id] = err
			} else {
				report.Succeeded = append(report.Succeeded, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	sortIDs(report.Succeeded)
	sortIDs(report.Failed)
	report.Duration = time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordDirtyArtifacts(len(c.Dirty()))
	}
	if len(report.Failed) > 0 {
		logger.Warn("flush pass left artifacts dirty",
			"succeeded", len(report.Succeeded),
			"failed", len(report.Failed),
			"duration_ms", report.Duration.Milliseconds())
	} else {
		logger.Debug("flush pass complete",
			"succeeded", len(report.Succeeded),
			"duration_ms", report.Duration.Milliseconds())
	}
	return report
}
