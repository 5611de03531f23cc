package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/aio"
	"github.com/marmos91/statekeep/pkg/artifact"
)

// entry is the per-artifact bookkeeping record. The entry mutex serializes
// every read, write and state change for one artifact, which is what keeps
// the single-user precondition of the stream bridge true.
type entry struct {
	id   artifact.ID
	kind artifact.Kind

	mu            sync.Mutex
	dirty         bool
	payload       []byte // nil = evicted
	lastMutated   time.Time
	lastPersisted time.Time

	// savedSum is the checksum of the last payload confirmed durable; puts
	// carrying identical bytes are dropped while the entry is clean.
	savedSum    uint32
	hasSavedSum bool

	ch aio.Channel // lazily opened
}

// Cache tracks dirty state and cached payloads for every artifact touched
// since startup. The dirty flag is set by Put and cleared only after a
// confirmed durable write; the cached payload is evicted after a successful
// flush to bound memory.
type Cache struct {
	cfg     Config
	exec    *aio.Executor
	kinds   KindResolver
	journal Journal
	metrics CacheMetrics

	mu      sync.Mutex
	entries map[artifact.ID]*entry
	queued  int // entries with a pending debounced flush
	flushQ  map[artifact.ID]bool
	closed  bool

	// readGroup coalesces concurrent first reads of the same artifact into
	// one disk read.
	readGroup singleflight.Group
}

// Option customizes a Cache.
type Option func(*Cache)

// WithJournal wires a lifecycle-event recorder.
func WithJournal(j Journal) Option {
	return func(c *Cache) { c.journal = j }
}

// WithMetrics wires cache metrics. A nil value disables collection.
func WithMetrics(m CacheMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a cache over the given executor. kinds may be nil, in which
// case every artifact is stored raw.
func New(cfg Config, exec *aio.Executor, kinds KindResolver, opts ...Option) *Cache {
	cfg.applyDefaults()

	c := &Cache{
		cfg:     cfg,
		exec:    exec,
		kinds:   kinds,
		entries: make(map[artifact.ID]*entry),
		flushQ:  make(map[artifact.ID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put caches payload for the artifact and marks it dirty. The payload is
// copied, so callers may reuse the buffer.
//
// A put whose bytes match the last durably written payload of a clean entry
// is dropped: the data is already on disk and rewriting it buys nothing.
func (c *Cache) Put(id artifact.ID, payload []byte) error {
	e, err := c.entryFor(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dirty && e.hasSavedSum && artifact.PayloadSum(payload) == e.savedSum {
		if c.metrics != nil {
			c.metrics.RecordDedupSkip(id.Unit)
		}
		logger.Debug("put skipped, payload already durable", "unit", id.Unit, "key", id.Key)
		return nil
	}

	e.payload = append(e.payload[:0:0], payload...)
	e.dirty = true
	e.lastMutated = time.Now()
	return nil
}

// Dirty returns the ids of all dirty artifacts, sorted.
func (c *Cache) Dirty() []artifact.ID {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	var ids []artifact.ID
	for _, e := range entries {
		e.mu.Lock()
		if e.dirty {
			ids = append(ids, e.id)
		}
		e.mu.Unlock()
	}
	sortIDs(ids)
	return ids
}

// TryQueueFlush marks id as having a pending debounced flush task. It
// returns false when one is already queued, so rapid saves of the same
// artifact coalesce into a single write.
func (c *Cache) TryQueueFlush(id artifact.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.flushQ[id] {
		return false
	}
	c.flushQ[id] = true
	c.queued++
	return true
}

// DequeueFlush clears the pending-flush mark. Flush tasks call it as they
// start, so saves arriving mid-flush queue a fresh task.
func (c *Cache) DequeueFlush(id artifact.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flushQ[id] {
		delete(c.flushQ, id)
		c.queued--
	}
}

// QueuedFlushes returns the number of pending debounced flush tasks.
func (c *Cache) QueuedFlushes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queued
}

// Stats returns a point-in-time occupancy snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	s := Stats{Artifacts: len(entries), QueuedFlushes: c.queued}
	c.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		if e.dirty {
			s.Dirty++
		}
		if e.payload != nil {
			s.Cached++
		}
		if e.ch != nil {
			s.OpenChannels++
		}
		e.mu.Unlock()
	}
	return s
}

// CloseChannels closes every open artifact channel. Entry state (dirty
// flags, payloads) survives; the channels reopen lazily on the next flush
// or read. Used by shutdown after the final FlushAll.
func (c *Cache) CloseChannels(ctx context.Context) error {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	var firstErr error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.mu.Lock()
		if e.ch != nil {
			if err := e.ch.Close(); err != nil {
				logger.Error("closing artifact channel", "unit", e.id.Unit, "key", e.id.Key, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
			e.ch = nil
		}
		e.mu.Unlock()
	}
	return firstErr
}

// Close closes the cache and all channels. Later operations return
// ErrCacheClosed. Close is idempotent.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.CloseChannels(context.Background())
}

// entryFor returns the bookkeeping entry for id, creating it on first touch
// with the registered codec kind.
func (c *Cache) entryFor(id artifact.ID) (*entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCacheClosed
	}
	if e, ok := c.entries[id]; ok {
		return e, nil
	}

	kind := artifact.KindRaw
	if c.kinds != nil {
		k, err := c.kinds.Codec(id.Unit, id.Key)
		if err != nil {
			return nil, err
		}
		kind = k
	}

	e := &entry{id: id, kind: kind}
	c.entries[id] = e
	return e, nil
}

// channelLocked lazily opens the artifact's file channel. The caller holds
// the entry mutex.
func (c *Cache) channelLocked(e *entry) (aio.Channel, error) {
	if e.ch != nil {
		return e.ch, nil
	}
	ch, err := aio.OpenFile(c.exec, e.id.Path(c.cfg.Root))
	if err != nil {
		return nil, err
	}
	e.ch = ch
	return ch, nil
}
