package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubQuiescer reports a fixed busy set. When quiet is false it blocks the
// full timeout, imitating units that never go idle.
type stubQuiescer struct {
	quiet bool
	busy  []string
}

func (s *stubQuiescer) AwaitQuiescence(ctx context.Context, timeout time.Duration) bool {
	if s.quiet {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return false
}

func (s *stubQuiescer) Busy() []string { return s.busy }

func waitForState(t *testing.T, g *Gate, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for g.State() != want {
		select {
		case <-deadline:
			t.Fatalf("gate never reached state %v (now %v)", want, g.State())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestGate_SharedOpsRunInParallel(t *testing.T) {
	g := New(nil, Config{})
	ctx := context.Background()

	const n = 3
	var inside atomic.Int32
	proceed := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.RunShared(ctx, "unit", func(context.Context) error {
				inside.Add(1)
				<-proceed
				return nil
			})
			if err != nil {
				t.Errorf("RunShared failed: %v", err)
			}
		}()
	}

	deadline := time.After(2 * time.Second)
	for inside.Load() != n {
		select {
		case <-deadline:
			t.Fatalf("only %d of %d shared ops admitted concurrently", inside.Load(), n)
		case <-time.After(time.Millisecond):
		}
	}

	close(proceed)
	wg.Wait()

	if g.SharedActive() != 0 {
		t.Errorf("SharedActive = %d after completion, want 0", g.SharedActive())
	}
}

func TestGate_ExclusiveWaitsForAdmittedShared(t *testing.T) {
	g := New(&stubQuiescer{quiet: true}, Config{QuiescenceTimeout: 5 * time.Second})
	ctx := context.Background()

	release := make(chan struct{})
	sharedDone := make(chan struct{})
	go func() {
		_ = g.RunShared(ctx, "qlearning", func(context.Context) error {
			<-release
			return nil
		})
		close(sharedDone)
	}()

	deadline := time.After(2 * time.Second)
	for g.SharedActive() != 1 {
		select {
		case <-deadline:
			t.Fatal("shared op never admitted")
		case <-time.After(time.Millisecond):
		}
	}

	var exclusiveRan atomic.Bool
	exclusiveDone := make(chan struct{})
	go func() {
		defer close(exclusiveDone)
		info, err := g.RunExclusive(ctx, TrainingStopSave, func(context.Context) error {
			exclusiveRan.Store(true)
			return nil
		})
		if err != nil {
			t.Errorf("RunExclusive failed: %v", err)
			return
		}
		if info.QuiescenceTimedOut {
			t.Error("unexpected quiescence timeout")
		}
	}()

	waitForState(t, g, StateDraining)
	if exclusiveRan.Load() {
		t.Fatal("exclusive body ran while a shared op was still admitted")
	}

	close(release)
	<-sharedDone
	<-exclusiveDone

	if !exclusiveRan.Load() {
		t.Fatal("exclusive body never ran")
	}
	if g.State() != StateIdle {
		t.Errorf("state after exclusive = %v, want idle", g.State())
	}
}

func TestGate_WriterPreferenceBlocksNewShared(t *testing.T) {
	g := New(nil, Config{QuiescenceTimeout: 5 * time.Second})
	ctx := context.Background()

	release := make(chan struct{})
	go func() {
		_ = g.RunShared(ctx, "genetic", func(context.Context) error {
			<-release
			return nil
		})
	}()
	deadline := time.After(2 * time.Second)
	for g.SharedActive() != 1 {
		select {
		case <-deadline:
			t.Fatal("first shared op never admitted")
		case <-time.After(time.Millisecond):
		}
	}

	exclusiveDone := make(chan struct{})
	go func() {
		defer close(exclusiveDone)
		_, _ = g.RunExclusive(ctx, GameResetSave, func(context.Context) error { return nil })
	}()
	waitForState(t, g, StateDraining)

	// A newly arriving shared op must block for as long as the exclusive
	// is queued or active.
	lateCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	var lateRan atomic.Bool
	err := g.RunShared(lateCtx, "dqn", func(context.Context) error {
		lateRan.Store(true)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("late shared op: expected DeadlineExceeded, got %v", err)
	}
	if lateRan.Load() {
		t.Fatal("late shared body ran during exclusive arbitration")
	}

	close(release)
	<-exclusiveDone

	// Admission reopens after the exclusive finishes.
	if err := g.RunShared(ctx, "dqn", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("shared op after exclusive failed: %v", err)
	}
}

func TestGate_ExclusiveSerialized(t *testing.T) {
	g := New(nil, Config{QuiescenceTimeout: time.Second})
	ctx := context.Background()

	var cur, max atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.RunExclusive(ctx, TrainingStopSave, func(context.Context) error {
				c := cur.Add(1)
				for {
					m := max.Load()
					if c <= m || max.CompareAndSwap(m, c) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				cur.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("RunExclusive failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if m := max.Load(); m != 1 {
		t.Errorf("observed %d concurrent exclusive bodies, want 1", m)
	}
}

func TestGate_QuiescenceTimeoutProceeds(t *testing.T) {
	q := &stubQuiescer{quiet: false, busy: []string{"dqn"}}
	g := New(q, Config{QuiescenceTimeout: 30 * time.Millisecond})

	var ran atomic.Bool
	info, err := g.RunExclusive(context.Background(), Shutdown, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("RunExclusive failed: %v", err)
	}
	if !ran.Load() {
		t.Fatal("default policy must proceed after the quiescence timeout")
	}
	if !info.QuiescenceTimedOut {
		t.Error("RunInfo does not record the quiescence timeout")
	}
	if len(info.BusyUnits) != 1 || info.BusyUnits[0] != "dqn" {
		t.Errorf("BusyUnits = %v, want [dqn]", info.BusyUnits)
	}
}

func TestGate_StrictQuiescenceRefuses(t *testing.T) {
	q := &stubQuiescer{quiet: false, busy: []string{"genetic"}}
	g := New(q, Config{QuiescenceTimeout: 30 * time.Millisecond, StrictQuiescence: true})

	var ran atomic.Bool
	_, err := g.RunExclusive(context.Background(), TrainingStopSave, func(context.Context) error {
		ran.Store(true)
		return nil
	})

	var lte *LockTimeoutError
	if !errors.As(err, &lte) {
		t.Fatalf("expected *LockTimeoutError, got %v", err)
	}
	if lte.Kind != TrainingStopSave {
		t.Errorf("LockTimeoutError.Kind = %v, want TrainingStopSave", lte.Kind)
	}
	if len(lte.BusyUnits) != 1 || lte.BusyUnits[0] != "genetic" {
		t.Errorf("LockTimeoutError.BusyUnits = %v, want [genetic]", lte.BusyUnits)
	}
	if ran.Load() {
		t.Fatal("strict policy executed the exclusive body anyway")
	}
	if g.State() != StateIdle {
		t.Errorf("state after refusal = %v, want idle", g.State())
	}

	// The gate must reopen for shared traffic after a refusal.
	if err := g.RunShared(context.Background(), "genetic", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("shared op after refusal failed: %v", err)
	}
}

func TestGate_CancelWhileQueued(t *testing.T) {
	g := New(nil, Config{QuiescenceTimeout: time.Second})
	ctx := context.Background()

	hold := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = g.RunExclusive(ctx, Startup, func(context.Context) error {
			<-hold
			return nil
		})
	}()
	waitForState(t, g, StateExclusiveActive)

	cancelCtx, cancel := context.WithCancel(ctx)
	secondErr := make(chan error, 1)
	go func() {
		_, err := g.RunExclusive(cancelCtx, Shutdown, func(context.Context) error { return nil })
		secondErr <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-secondErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("queued exclusive: expected context.Canceled, got %v", err)
	}

	close(hold)
	<-firstDone

	// Bookkeeping must be intact: shared admission reopens.
	if err := g.RunShared(ctx, "unit", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("shared op after cancelled exclusive failed: %v", err)
	}
}

func TestGate_ExclusiveErrorPropagates(t *testing.T) {
	g := New(nil, Config{QuiescenceTimeout: time.Second})

	wantErr := errors.New("flush went sideways")
	info, err := g.RunExclusive(context.Background(), GameResetSave, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected body error, got %v", err)
	}
	if info == nil {
		t.Fatal("RunInfo must be returned even when the body fails")
	}
	if g.State() != StateIdle {
		t.Errorf("state after failed body = %v, want idle", g.State())
	}
}
