// Package activity tracks per-unit busy/idle state and provides the
// quiescence wait used by exclusive whole-system operations. The tracker
// only observes and reports; what to do when quiescence is not reached
// within the deadline is the caller's policy.
package activity

import (
	"context"
	"sort"
	"sync"
	"time"
)

type unitState struct {
	busy         bool
	lastActivity time.Time
}

// Tracker records which units are mid-operation. Transitions are idempotent:
// marking a busy unit busy again only refreshes its activity timestamp.
type Tracker struct {
	mu    sync.Mutex
	units map[string]*unitState
	busy  int

	// quiet is closed whenever the busy count is zero and replaced with a
	// fresh channel on the first busy transition. Waiters block on the
	// channel they observed; close wakes all of them at once.
	quiet chan struct{}
}

// New creates a tracker with no units. An empty tracker is quiescent.
func New() *Tracker {
	ch := make(chan struct{})
	close(ch)
	return &Tracker{
		units: make(map[string]*unitState),
		quiet: ch,
	}
}

// Register adds an idle unit. Registering an existing unit is a no-op.
func (t *Tracker) Register(unitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensure(unitID)
}

// MarkBusy flags a unit as mid-operation. Unknown units are registered on
// first use.
func (t *Tracker) MarkBusy(unitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.ensure(unitID)
	if !u.busy {
		u.busy = true
		t.busy++
		if t.busy == 1 {
			t.quiet = make(chan struct{})
		}
	}
	u.lastActivity = time.Now()
}

// MarkIdle flags a unit as done. When the last busy unit goes idle, every
// pending AwaitQuiescence waiter is woken.
func (t *Tracker) MarkIdle(unitID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.ensure(unitID)
	if u.busy {
		u.busy = false
		t.busy--
		if t.busy == 0 {
			close(t.quiet)
		}
	}
	u.lastActivity = time.Now()
}

// LastActivity returns the time of the unit's last transition.
func (t *Tracker) LastActivity(unitID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.units[unitID]
	if !ok {
		return time.Time{}, false
	}
	return u.lastActivity, true
}

// Busy returns the ids of all currently busy units, sorted.
func (t *Tracker) Busy() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ids []string
	for id, u := range t.units {
		if u.busy {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AwaitQuiescence blocks until every unit is idle, the timeout elapses, or
// ctx is cancelled. It returns true only if quiescence was observed. New
// shared admissions are already suspended by the gate while this runs, so
// the busy count can only fall.
func (t *Tracker) AwaitQuiescence(ctx context.Context, timeout time.Duration) bool {
	t.mu.Lock()
	if t.busy == 0 {
		t.mu.Unlock()
		return true
	}
	quiet := t.quiet
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-quiet:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (t *Tracker) ensure(unitID string) *unitState {
	u, ok := t.units[unitID]
	if !ok {
		u = &unitState{lastActivity: time.Now()}
		t.units[unitID] = u
	}
	return u
}
