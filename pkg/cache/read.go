package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/aio"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/stream"
)

// Read returns the artifact's payload. The cached copy is served when
// present (dirty or clean); otherwise the stored envelope is read and
// decoded, and the result warms the cache for later reads.
//
// Absence is a value, not an error: a missing, empty or corrupt artifact
// yields (nil, nil). Corrupt bytes are quarantined with a trace before
// being reported as absent. Only transient I/O failures return an error.
func (c *Cache) Read(ctx context.Context, id artifact.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, err := c.entryFor(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	e.mu.Lock()
	if e.payload != nil {
		out := append([]byte(nil), e.payload...)
		e.mu.Unlock()
		if c.metrics != nil {
			c.metrics.ObserveRead(id.Unit, int64(len(out)), time.Since(start), true)
		}
		return out, nil
	}
	e.mu.Unlock()

	// Miss: concurrent first reads of one artifact share a single disk read.
	v, err, _ := c.readGroup.Do(id.String(), func() (any, error) {
		return c.readFromDisk(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	payload, _ := v.([]byte)
	if c.metrics != nil {
		c.metrics.ObserveRead(id.Unit, int64(len(payload)), time.Since(start), false)
	}
	if payload == nil {
		return nil, nil
	}
	return append([]byte(nil), payload...), nil
}

// readFromDisk loads and decodes the stored envelope under the entry mutex.
// Returns (nil, nil) for "no prior state".
func (c *Cache) readFromDisk(ctx context.Context, e *entry) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A put or an earlier coalesced read may have landed while this call
	// queued on the singleflight group.
	if e.payload != nil {
		return append([]byte(nil), e.payload...), nil
	}

	ch, err := c.channelLocked(e)
	if err != nil {
		return nil, fmt.Errorf("open channel for %s: %w", e.id, err)
	}

	size, err := ch.Size()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", e.id, err)
	}
	if size == 0 {
		return nil, nil
	}

	r := stream.New(ch, e.id.String())
	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", e.id, err)
	}

	payload, err := artifact.Decode(e.id, raw)
	switch {
	case errors.Is(err, artifact.ErrNoData):
		return nil, nil
	case err != nil:
		var ce *artifact.CorruptError
		if errors.As(err, &ce) {
			c.quarantineLocked(ctx, e, ch, raw, ce)
			return nil, nil
		}
		return nil, err
	}

	// Warm the cache: the payload is exactly what is durable, so the entry
	// is clean and future identical puts dedup against it.
	e.payload = append([]byte(nil), payload...)
	e.dirty = false
	e.savedSum = artifact.PayloadSum(payload)
	e.hasSavedSum = true
	return payload, nil
}

// quarantineLocked preserves corrupt stored bytes for inspection and resets
// the artifact to empty so the unit can persist fresh state. The original
// file is truncated only after the copy is safely on disk; if preserving
// fails, the evidence stays in place. Caller holds the entry mutex.
func (c *Cache) quarantineLocked(ctx context.Context, e *entry, ch aio.Channel, raw []byte, ce *artifact.CorruptError) {
	now := time.Now()
	dir := filepath.Join(c.cfg.QuarantineDir, e.id.Unit)
	path := filepath.Join(dir, fmt.Sprintf("%s.%d%s", e.id.Key, now.UnixNano(), artifact.FileExt))

	logger.Warn("corrupt artifact detected, quarantining",
		"unit", e.id.Unit,
		"key", e.id.Key,
		"bytes", len(raw),
		"path", path,
		"error", ce.Reason)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error("quarantine directory", "path", dir, "error", err)
		return
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		logger.Error("quarantine write failed, corrupt bytes left in place", "path", path, "error", err)
		return
	}

	if err := ch.Truncate(0); err != nil {
		logger.Error("truncating corrupt artifact", "unit", e.id.Unit, "key", e.id.Key, "error", err)
	}

	if c.metrics != nil {
		c.metrics.RecordQuarantine(e.id.Unit)
	}
	if c.journal != nil {
		c.journal.ArtifactQuarantined(ctx, QuarantineRecord{
			ID:     e.id,
			Reason: ce.Reason,
			Path:   path,
			Size:   int64(len(raw)),
			At:     now,
		})
	}
}
