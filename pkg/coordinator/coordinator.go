// Package coordinator is the persistence facade learning units and the host
// application talk to. It owns the shared I/O executor, the artifact cache,
// the activity tracker and the exclusivity gate, and wires the optional
// collaborators (catalog, run reports, mirror uploads, metrics) behind a
// small API: Save, Load and the whole-system exclusive runs.
//
// A coordinator is built per host with New and stopped once with
// RunShutdown. It is not a singleton; tests build as many as they like.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/internal/telemetry"
	"github.com/marmos91/statekeep/pkg/activity"
	"github.com/marmos91/statekeep/pkg/aio"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/cache"
	"github.com/marmos91/statekeep/pkg/catalog"
	"github.com/marmos91/statekeep/pkg/gate"
	"github.com/marmos91/statekeep/pkg/mirror"
	"github.com/marmos91/statekeep/pkg/registry"
	"github.com/marmos91/statekeep/pkg/report"
)

// Coordinator mediates all artifact persistence for one process.
type Coordinator struct {
	cfg Config
	reg *registry.Registry

	exec    *aio.Executor
	cache   *cache.Cache
	tracker *activity.Tracker
	gate    *gate.Gate

	// Optional collaborators, wired via Options.
	catalog      catalog.Store
	reports      *report.Store
	uploader     *mirror.Uploader
	metrics      CoordinatorMetrics
	cacheMetrics cache.CacheMetrics

	// inflight counts debounced flush tasks currently executing.
	inflight atomic.Int64

	closed atomic.Bool

	statsMu sync.Mutex
	units   map[string]*unitCounters

	// Capture window for the current exclusive run; see journal.go.
	capMu          sync.Mutex
	capFlushed     map[artifact.ID]int64
	capQuarantined map[artifact.ID]string
}

type unitCounters struct {
	saves        int64
	saveBytes    int64
	loads        int64
	loadBytes    int64
	flushes      int64
	flushedBytes int64
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithCatalog wires a catalog store. Every durable write upserts its row and
// every quarantine is recorded, all best effort.
func WithCatalog(s catalog.Store) Option {
	return func(c *Coordinator) { c.catalog = s }
}

// WithReports wires a report store; every exclusive run persists one row.
func WithReports(s *report.Store) Option {
	return func(c *Coordinator) { c.reports = s }
}

// WithUploader wires a mirror uploader; every durable write enqueues an
// upload. The caller starts the uploader, RunShutdown stops it after the
// final flush.
func WithUploader(u *mirror.Uploader) Option {
	return func(c *Coordinator) { c.uploader = u }
}

// WithMetrics wires coordinator metrics. A nil value disables collection.
func WithMetrics(m CoordinatorMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCacheMetrics wires metrics for the coordinator-owned cache.
func WithCacheMetrics(m cache.CacheMetrics) Option {
	return func(c *Coordinator) { c.cacheMetrics = m }
}

// New builds a coordinator over the registered units and starts its I/O
// executor. Workers defaults to the number of registered units so flush and
// warm-load parallelism scales with the persisted surface.
func New(cfg Config, reg *registry.Registry, opts ...Option) (*Coordinator, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = len(reg.Units())
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	c := &Coordinator{
		cfg:   cfg,
		reg:   reg,
		units: make(map[string]*unitCounters),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tracker = activity.New()
	for _, u := range reg.Units() {
		c.tracker.Register(u.ID)
		c.units[u.ID] = &unitCounters{}
	}

	c.gate = gate.New(c.tracker, gate.Config{
		QuiescenceTimeout: cfg.QuiescenceTimeout,
		StrictQuiescence:  cfg.StrictQuiescence,
		OnStateChange: func(s gate.State) {
			if c.metrics != nil {
				c.metrics.RecordGateState(s.String())
			}
		},
	})

	c.exec = aio.NewExecutor(aio.ExecutorConfig{Workers: cfg.Workers})
	c.exec.Start()

	c.cache = cache.New(cache.Config{
		Root:          cfg.Root,
		QuarantineDir: cfg.QuarantineDir,
		Workers:       cfg.Workers,
		FlushTimeout:  cfg.FlushTimeout,
	}, c.exec, reg, cache.WithJournal(journal{c}), cache.WithMetrics(c.cacheMetrics))

	if c.metrics != nil {
		c.metrics.RecordGateState(gate.StateIdle.String())
	}

	logger.Info("Coordinator ready",
		"units", len(reg.Units()),
		"artifacts", len(reg.Artifacts()),
		"workers", cfg.Workers,
		"root", cfg.Root)

	return c, nil
}

// Save caches the payload for (unit, key) and arranges its durable write.
// Async units return as soon as the payload is cached, with the flush
// debounced so save bursts coalesce into one write; sync units block until
// the artifact is on disk. Saves to disabled units are dropped.
//
// The payload is copied, so the caller may reuse its buffer immediately.
func (c *Coordinator) Save(ctx context.Context, unitID, key string, payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	unit, err := c.reg.Unit(unitID)
	if err != nil {
		return err
	}
	if _, ok := unit.Keys[key]; !ok {
		return fmt.Errorf("%w: %s/%s", registry.ErrUnknownKey, unitID, key)
	}
	if !unit.Enabled {
		logger.Debug("save dropped, unit disabled", "unit", unitID, "key", key)
		return nil
	}

	ctx, span := telemetry.StartArtifactSpan(ctx, telemetry.SpanSave, unitID, key,
		telemetry.ArtifactBytes(int64(len(payload))),
		telemetry.SyncSave(!unit.Async))
	defer span.End()

	id := artifact.NewID(unitID, key)
	start := time.Now()

	err = c.gate.RunShared(ctx, unitID, func(ctx context.Context) error {
		c.tracker.MarkBusy(unitID)
		defer c.tracker.MarkIdle(unitID)

		if err := c.cache.Put(id, payload); err != nil {
			return err
		}
		if unit.Async {
			c.scheduleFlush(id)
			return nil
		}

		flushCtx, cancel := context.WithTimeout(ctx, c.cfg.FlushTimeout)
		defer cancel()
		return c.cache.Flush(flushCtx, id)
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	c.bumpSave(unitID, int64(len(payload)))
	if c.metrics != nil {
		c.metrics.ObserveSave(unitID, int64(len(payload)), time.Since(start))
	}
	return nil
}

// Load returns the persisted payload for (unit, key): from cache when the
// artifact was touched this session, from disk otherwise. A nil payload
// with a nil error means no prior state exists, whether the file is absent,
// was corrupt and got quarantined, or the unit is disabled. Callers start
// fresh on nil.
func (c *Coordinator) Load(ctx context.Context, unitID, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	unit, err := c.reg.Unit(unitID)
	if err != nil {
		return nil, err
	}
	if _, ok := unit.Keys[key]; !ok {
		return nil, fmt.Errorf("%w: %s/%s", registry.ErrUnknownKey, unitID, key)
	}
	if !unit.Enabled {
		logger.Debug("load skipped, unit disabled", "unit", unitID, "key", key)
		return nil, nil
	}

	ctx, span := telemetry.StartArtifactSpan(ctx, telemetry.SpanLoad, unitID, key)
	defer span.End()

	id := artifact.NewID(unitID, key)
	start := time.Now()

	var payload []byte
	err = c.gate.RunShared(ctx, unitID, func(ctx context.Context) error {
		c.tracker.MarkBusy(unitID)
		defer c.tracker.MarkIdle(unitID)

		p, rerr := c.cache.Read(ctx, id)
		payload = p
		return rerr
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	c.bumpLoad(unitID, int64(len(payload)))
	if c.metrics != nil {
		c.metrics.ObserveLoad(unitID, int64(len(payload)), time.Since(start))
	}
	return payload, nil
}

// scheduleFlush arms the debounced flush for one artifact. Only the first
// save of a burst arms a timer; saves landing inside the window ride the
// already-queued task and the latest cached payload wins.
func (c *Coordinator) scheduleFlush(id artifact.ID) {
	if !c.cache.TryQueueFlush(id) {
		return
	}
	c.recordQueuedFlushes()
	time.AfterFunc(c.cfg.DebounceInterval, func() { c.flushTask(id) })
}

// flushTask is the debounced flush body. It runs off every save path, so a
// failure here leaves the artifact dirty for the next save or full flush
// instead of failing any caller.
func (c *Coordinator) flushTask(id artifact.ID) {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)

	c.cache.DequeueFlush(id)
	c.recordQueuedFlushes()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FlushTimeout)
	defer cancel()

	if err := c.cache.Flush(ctx, id); err != nil {
		if errors.Is(err, cache.ErrCacheClosed) {
			// Shutdown already flushed everything.
			return
		}
		logger.Warn("debounced flush failed, artifact stays dirty",
			"unit", id.Unit, "key", id.Key, "error", err)
	}
}

func (c *Coordinator) recordQueuedFlushes() {
	if c.metrics != nil {
		c.metrics.RecordQueuedFlushes(c.cache.QueuedFlushes())
	}
}

// IOInProgress reports whether persistence work is pending: a queued or
// running debounced flush, an admitted shared operation, or an exclusive
// run. Hosts poll it to defer window close or scene switches.
func (c *Coordinator) IOInProgress() bool {
	if c.inflight.Load() > 0 {
		return true
	}
	if c.cache.QueuedFlushes() > 0 {
		return true
	}
	if c.gate.SharedActive() > 0 {
		return true
	}
	return c.gate.State() != gate.StateIdle
}

// Dirty returns the ids of artifacts with unflushed changes, sorted.
func (c *Coordinator) Dirty() []artifact.ID {
	return c.cache.Dirty()
}

// Units returns the registered units, sorted by id.
func (c *Coordinator) Units() []registry.Unit {
	return c.reg.Units()
}

// UnitStats is a per-unit operation snapshot.
type UnitStats struct {
	Saves        int64 `json:"saves"`
	SaveBytes    int64 `json:"save_bytes"`
	Loads        int64 `json:"loads"`
	LoadBytes    int64 `json:"load_bytes"`
	Flushes      int64 `json:"flushes"`
	FlushedBytes int64 `json:"flushed_bytes"`
}

// Stats is a point-in-time operational snapshot of one coordinator.
type Stats struct {
	Units         map[string]UnitStats `json:"units"`
	Cache         cache.Stats          `json:"cache"`
	GateState     string               `json:"gate_state"`
	SharedActive  int                  `json:"shared_active"`
	MirrorPending int                  `json:"mirror_pending,omitempty"`
}

// Stats returns a point-in-time operational snapshot.
func (c *Coordinator) Stats() Stats {
	s := Stats{
		Units:        make(map[string]UnitStats),
		Cache:        c.cache.Stats(),
		GateState:    c.gate.State().String(),
		SharedActive: c.gate.SharedActive(),
	}

	c.statsMu.Lock()
	for id, u := range c.units {
		s.Units[id] = UnitStats{
			Saves:        u.saves,
			SaveBytes:    u.saveBytes,
			Loads:        u.loads,
			LoadBytes:    u.loadBytes,
			Flushes:      u.flushes,
			FlushedBytes: u.flushedBytes,
		}
	}
	c.statsMu.Unlock()

	if c.uploader != nil {
		s.MirrorPending = c.uploader.Pending()
	}
	return s
}

func (c *Coordinator) bumpSave(unit string, bytes int64) {
	c.statsMu.Lock()
	u := c.counters(unit)
	u.saves++
	u.saveBytes += bytes
	c.statsMu.Unlock()
}

func (c *Coordinator) bumpLoad(unit string, bytes int64) {
	c.statsMu.Lock()
	u := c.counters(unit)
	u.loads++
	u.loadBytes += bytes
	c.statsMu.Unlock()
}

func (c *Coordinator) bumpFlush(unit string, bytes int64) {
	c.statsMu.Lock()
	u := c.counters(unit)
	u.flushes++
	u.flushedBytes += bytes
	c.statsMu.Unlock()
}

// counters returns the counter record for a unit. Caller holds statsMu.
func (c *Coordinator) counters(unit string) *unitCounters {
	u, ok := c.units[unit]
	if !ok {
		u = &unitCounters{}
		c.units[unit] = u
	}
	return u
}
