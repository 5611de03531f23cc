package coordinator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/internal/telemetry"
	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/gate"
	"github.com/marmos91/statekeep/pkg/report"
)

// RunStartup warm-loads every registered artifact under whole-system
// exclusivity so first reads come from memory. Absent artifacts are normal
// on first launch; corrupt files are quarantined and reported, and the unit
// starts fresh. Per-artifact trouble never aborts the pass.
func (c *Coordinator) RunStartup(ctx context.Context) (*Report, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.runExclusive(ctx, gate.Startup, c.warmLoad)
}

// RunTrainingStopSave flushes all dirty artifacts when the operator stops a
// training loop. The system keeps running afterwards.
func (c *Coordinator) RunTrainingStopSave(ctx context.Context) (*Report, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.runExclusive(ctx, gate.TrainingStopSave, func(ctx context.Context, rep *Report) error {
		c.flushAllInto(ctx, rep)
		return nil
	})
}

// RunGameResetSave flushes all dirty artifacts before the host resets its
// world, so learned state survives the reset.
func (c *Coordinator) RunGameResetSave(ctx context.Context) (*Report, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.runExclusive(ctx, gate.GameResetSave, func(ctx context.Context, rep *Report) error {
		c.flushAllInto(ctx, rep)
		return nil
	})
}

// FlushAll is an operator-requested full flush; the ops API exposes it.
// Semantics match the other save runs: everything dirty is written, the
// system keeps running.
func (c *Coordinator) FlushAll(ctx context.Context) (*Report, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.runExclusive(ctx, gate.ManualFlush, func(ctx context.Context, rep *Report) error {
		c.flushAllInto(ctx, rep)
		return nil
	})
}

// RunUIRead runs fn with whole-system exclusivity so it observes a frozen,
// consistent view across every unit. fn must not call Save or Load, which
// would deadlock against the gate it is holding.
func (c *Coordinator) RunUIRead(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	_, err := c.runExclusive(ctx, gate.UIRead, func(ctx context.Context, _ *Report) error {
		return fn(ctx)
	})
	return err
}

// RunShutdown flushes every dirty artifact, closes the artifact channels,
// stops the I/O executor and the mirror uploader, and marks the coordinator
// closed. Later operations return ErrClosed; a closed coordinator never
// reopens. timeout bounds the whole sequence, zero means
// Config.ShutdownTimeout.
//
// When the gate refuses the run (strict quiescence) or the context expires
// before admission, nothing was flushed and the coordinator reopens so the
// caller can retry with a longer budget.
func (c *Coordinator) RunShutdown(ctx context.Context, timeout time.Duration) (*Report, error) {
	if !c.closed.CompareAndSwap(false, true) {
		return nil, ErrClosed
	}

	if timeout <= 0 {
		timeout = c.cfg.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rep, err := c.runExclusive(ctx, gate.Shutdown, func(ctx context.Context, rep *Report) error {
		c.flushAllInto(ctx, rep)
		if cerr := c.cache.Close(); cerr != nil {
			logger.Error("closing cache", "error", cerr)
		}
		return nil
	})
	if err != nil {
		c.closed.Store(false)
		return nil, err
	}

	c.stopBackground(ctx, timeout)

	logger.Info("Coordinator stopped",
		"run_id", rep.ID,
		"flushed", rep.Succeeded(),
		"failed", rep.Failed())
	return rep, nil
}

// stopBackground stops the executor and the mirror uploader, each within
// what remains of the shutdown budget.
func (c *Coordinator) stopBackground(ctx context.Context, fallback time.Duration) {
	budget := func() time.Duration {
		if d, ok := ctx.Deadline(); ok {
			r := time.Until(d)
			if r < 0 {
				r = 0
			}
			return r
		}
		return fallback
	}

	c.exec.Stop(budget())
	if c.uploader != nil {
		c.uploader.Stop(budget())
	}
}

// runExclusive is the shared shell of every exclusive run: gate admission,
// journal capture, report assembly, metrics, logging and persistence. body
// receives the report and records its per-artifact outcomes; partial
// failures belong in the report, not in body's error.
func (c *Coordinator) runExclusive(ctx context.Context, kind gate.Kind, body func(ctx context.Context, rep *Report) error) (*Report, error) {
	rep := newReport(kind)

	ctx, span := telemetry.StartRunSpan(ctx, kind.String(), telemetry.RunID(rep.ID))
	defer span.End()

	c.beginCapture()
	info, err := c.gate.RunExclusive(ctx, kind, func(ctx context.Context) error {
		return body(ctx, rep)
	})
	flushed, quarantined := c.endCapture()

	rep.FinishedAt = time.Now()
	if info != nil {
		rep.DrainWait = info.DrainWait
		rep.QuiescenceTimedOut = info.QuiescenceTimedOut
		rep.BusyUnits = info.BusyUnits
	}

	// info is nil exactly when the body never ran: the gate refused the run
	// or the context expired while waiting for admission.
	if info == nil {
		var lte *gate.LockTimeoutError
		if errors.As(err, &lte) && c.metrics != nil {
			c.metrics.RecordQuiescenceTimeout(kind.String())
		}
		telemetry.RecordError(ctx, err)
		logger.Warn("exclusive run refused",
			"kind", kind.String(), "run_id", rep.ID, "error", err)
		return nil, err
	}

	// Fold journal events observed during the run into the outcomes: bytes
	// for flushed artifacts, and quarantines explaining empty warm loads.
	for i := range rep.Artifacts {
		a := &rep.Artifacts[i]
		if n, ok := flushed[a.ID]; ok && a.Outcome == report.OutcomeFlushed {
			a.Bytes = n
		}
		if reason, ok := quarantined[a.ID]; ok && a.Outcome == report.OutcomeAbsent {
			a.Outcome = report.OutcomeCorrupt
			a.Err = errors.New(reason)
		}
	}
	rep.sortArtifacts()

	span.SetAttributes(
		telemetry.QuiescenceTimedOut(rep.QuiescenceTimedOut),
		telemetry.BusyUnits(len(rep.BusyUnits)))
	if err != nil {
		telemetry.RecordError(ctx, err)
	}

	if c.metrics != nil {
		c.metrics.ObserveExclusiveRun(kind.String(), rep.Duration())
		if rep.QuiescenceTimedOut {
			c.metrics.RecordQuiescenceTimeout(kind.String())
		}
	}

	c.logReport(rep, err)
	c.persistReport(ctx, rep, err)
	return rep, err
}

// warmLoad reads every registered artifact into cache with bounded
// parallelism, recording one outcome each.
func (c *Coordinator) warmLoad(ctx context.Context, rep *Report) error {
	ids := c.reg.Artifacts()
	outcomes := make([]ArtifactOutcome, len(ids))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			payload, err := c.cache.Read(ctx, id)

			out := ArtifactOutcome{ID: id}
			switch {
			case err != nil:
				out.Outcome = report.OutcomeFailed
				out.Err = err
			case payload == nil:
				out.Outcome = report.OutcomeAbsent
			default:
				out.Outcome = report.OutcomeLoaded
				out.Bytes = int64(len(payload))
				c.bumpLoad(id.Unit, out.Bytes)
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	rep.Artifacts = outcomes
	return nil
}

// flushAllInto runs one full flush pass and folds its outcome into the
// report. Clean registered artifacts are recorded as skipped so the report
// covers the whole persisted surface.
func (c *Coordinator) flushAllInto(ctx context.Context, rep *Report) {
	fr := c.cache.FlushAll(ctx)

	seen := make(map[artifact.ID]bool, len(fr.Succeeded)+len(fr.Failed))
	for _, id := range fr.Succeeded {
		seen[id] = true
		rep.Artifacts = append(rep.Artifacts, ArtifactOutcome{
			ID:      id,
			Outcome: report.OutcomeFlushed,
		})
	}
	for _, id := range fr.Failed {
		seen[id] = true
		rep.Artifacts = append(rep.Artifacts, ArtifactOutcome{
			ID:      id,
			Outcome: report.OutcomeFailed,
			Err:     fr.Errors[id],
		})
	}
	for _, id := range c.reg.Artifacts() {
		if !seen[id] {
			rep.Artifacts = append(rep.Artifacts, ArtifactOutcome{
				ID:      id,
				Outcome: report.OutcomeSkipped,
			})
		}
	}
}

func (c *Coordinator) logReport(rep *Report, runErr error) {
	args := []any{
		"kind", rep.Kind.String(),
		"run_id", rep.ID,
		"duration_ms", durationMS(rep.Duration()),
		"drain_wait_ms", durationMS(rep.DrainWait),
		"succeeded", rep.Succeeded(),
		"failed", rep.Failed(),
	}
	if rep.QuiescenceTimedOut {
		args = append(args, "quiescence_timed_out", true, "busy_units", rep.BusyUnits)
	}

	switch {
	case runErr != nil:
		args = append(args, "error", runErr)
		logger.Error("Exclusive run failed", args...)
	case rep.Failed() > 0:
		logger.Warn("Exclusive run completed with failures", args...)
	default:
		logger.Info("Exclusive run complete", args...)
	}
}

// persistReport stores the run row, best effort: a report store failure
// never fails the run it describes.
func (c *Coordinator) persistReport(ctx context.Context, rep *Report, runErr error) {
	if c.reports == nil {
		return
	}

	run := rep.toRun()
	if runErr != nil {
		run.Error = runErr.Error()
	}

	// The run's own deadline may already be spent, shutdown in particular;
	// persistence gets its own short budget.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := c.reports.SaveRun(pctx, run); err != nil {
		logger.Warn("run report not persisted",
			"run_id", rep.ID, "kind", run.Kind, "error", err)
	}
}
