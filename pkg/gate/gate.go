// Package gate arbitrates between many concurrent per-unit shared operations
// and rare whole-system exclusive operations (startup, shutdown, stop-and-save,
// reset-and-save, UI reads).
//
// The state machine is Idle → Draining → ExclusiveActive → Idle. Queuing an
// exclusive request suspends admission of new shared operations immediately
// (writer preference), already-admitted shared operations always run to
// completion, and at most one exclusive operation is active at any instant.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/statekeep/internal/logger"
)

// Quiescer reports unit-level activity. Exclusive operations wait on it
// after the gate's own shared counter drains, because unit activity is
// broader than gate-admitted I/O: a unit can be mid-computation without
// holding a shared slot.
type Quiescer interface {
	AwaitQuiescence(ctx context.Context, timeout time.Duration) bool
	Busy() []string
}

// Config holds gate tuning.
type Config struct {
	// QuiescenceTimeout bounds the combined drain-and-quiesce wait of one
	// exclusive operation. Default: 5s.
	QuiescenceTimeout time.Duration

	// StrictQuiescence refuses the exclusive operation when the wait times
	// out instead of proceeding with a warning. Default: false, favoring
	// availability; the timeout is still reported either way.
	StrictQuiescence bool

	// OnStateChange, when set, observes every arbitration state transition.
	// Called outside the gate lock; must not call back into the gate.
	OnStateChange func(State)
}

// RunInfo describes how an exclusive operation was admitted.
type RunInfo struct {
	Kind               Kind
	QuiescenceTimedOut bool
	BusyUnits          []string
	DrainWait          time.Duration
}

// Gate is the admission controller. The zero value is not usable; call New.
type Gate struct {
	quiescer Quiescer
	cfg      Config

	mu           sync.Mutex
	state        State
	sharedActive int
	exclQueued   int

	// admit is closed while shared admission is open and replaced with an
	// open channel the moment an exclusive queues. drained is closed while
	// sharedActive is zero.
	admit   chan struct{}
	drained chan struct{}

	// sem serializes exclusive operations.
	sem chan struct{}
}

// New creates a gate. quiescer may be nil, in which case only the gate's own
// shared counter gates exclusive admission.
func New(quiescer Quiescer, cfg Config) *Gate {
	if cfg.QuiescenceTimeout <= 0 {
		cfg.QuiescenceTimeout = 5 * time.Second
	}

	admit := make(chan struct{})
	close(admit)
	drained := make(chan struct{})
	close(drained)

	return &Gate{
		quiescer: quiescer,
		cfg:      cfg,
		state:    StateIdle,
		admit:    admit,
		drained:  drained,
		sem:      make(chan struct{}, 1),
	}
}

// State returns the current arbitration state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SharedActive returns the number of admitted shared operations still running.
func (g *Gate) SharedActive() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sharedActive
}

// RunShared runs fn under shared admission. Admission blocks while any
// exclusive operation is queued or active; once admitted, fn always runs to
// completion. The unitID is only for diagnostics; per-unit activity is the
// caller's concern.
func (g *Gate) RunShared(ctx context.Context, unitID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		g.mu.Lock()
		if g.exclQueued == 0 {
			g.sharedActive++
			if g.sharedActive == 1 {
				g.drained = make(chan struct{})
			}
			g.mu.Unlock()
			break
		}
		admit := g.admit
		g.mu.Unlock()

		select {
		case <-admit:
		case <-ctx.Done():
			logger.Debug("shared admission abandoned", "unit", unitID, "error", ctx.Err())
			return ctx.Err()
		}
	}

	defer func() {
		g.mu.Lock()
		g.sharedActive--
		if g.sharedActive == 0 {
			close(g.drained)
		}
		g.mu.Unlock()
	}()

	return fn(ctx)
}

// RunExclusive runs fn with whole-system exclusivity. It queues the request
// (suspending new shared admissions at once), waits for its turn, drains
// admitted shared operations and waits for unit quiescence under one
// deadline, then executes fn.
//
// On a quiescence timeout the default policy proceeds anyway and records the
// fact in the returned RunInfo; with StrictQuiescence the operation is
// refused with *LockTimeoutError and nothing is executed.
func (g *Gate) RunExclusive(ctx context.Context, kind Kind, fn func(ctx context.Context) error) (*RunInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.queueExclusive()

	// Wait for our turn; one exclusive at a time.
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		g.unqueueExclusive()
		return nil, ctx.Err()
	}

	g.setState(StateDraining)

	info := &RunInfo{Kind: kind}
	start := time.Now()
	quiet := g.drainAndQuiesce(ctx)
	info.DrainWait = time.Since(start)

	if !quiet {
		info.QuiescenceTimedOut = true
		if g.quiescer != nil {
			info.BusyUnits = g.quiescer.Busy()
		}

		if g.cfg.StrictQuiescence {
			g.setState(StateIdle)
			g.unqueueExclusive()
			<-g.sem
			return nil, &LockTimeoutError{
				Kind:      kind,
				Timeout:   g.cfg.QuiescenceTimeout,
				BusyUnits: info.BusyUnits,
			}
		}

		logger.Warn("quiescence not reached before deadline, proceeding",
			"kind", kind.String(),
			"busy_units", info.BusyUnits,
			"timeout", g.cfg.QuiescenceTimeout.String())
	}

	g.setState(StateExclusiveActive)
	err := fn(ctx)
	g.setState(StateIdle)

	g.unqueueExclusive()
	<-g.sem
	return info, err
}

// drainAndQuiesce waits for the admitted-shared count to reach zero and for
// the quiescer to report all units idle, both under one shared deadline.
// Returns false when the deadline or ctx expires first.
func (g *Gate) drainAndQuiesce(ctx context.Context) bool {
	budget := g.cfg.QuiescenceTimeout
	timer := time.NewTimer(budget)
	defer timer.Stop()
	start := time.Now()

	for {
		g.mu.Lock()
		if g.sharedActive == 0 {
			g.mu.Unlock()
			break
		}
		drained := g.drained
		g.mu.Unlock()

		select {
		case <-drained:
			// Re-check; admission is suspended, so the count only falls.
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}

	if g.quiescer == nil {
		return true
	}
	return g.quiescer.AwaitQuiescence(ctx, budget-time.Since(start))
}

// queueExclusive registers intent: the first queued exclusive swaps the
// admit channel so newly arriving shared operations block.
func (g *Gate) queueExclusive() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exclQueued++
	if g.exclQueued == 1 {
		g.admit = make(chan struct{})
	}
}

// unqueueExclusive withdraws intent; the last departing exclusive reopens
// shared admission.
func (g *Gate) unqueueExclusive() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exclQueued--
	if g.exclQueued == 0 {
		close(g.admit)
	}
}

func (g *Gate) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()

	if g.cfg.OnStateChange != nil {
		g.cfg.OnStateChange(s)
	}
}
