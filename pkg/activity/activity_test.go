package activity

import (
	"context"
	"testing"
	"time"
)

func TestTracker_EmptyIsQuiescent(t *testing.T) {
	tr := New()
	if !tr.AwaitQuiescence(context.Background(), time.Second) {
		t.Error("empty tracker should be quiescent immediately")
	}
}

func TestTracker_IdempotentTransitions(t *testing.T) {
	tr := New()
	tr.Register("qlearning")

	tr.MarkBusy("qlearning")
	tr.MarkBusy("qlearning")
	if busy := tr.Busy(); len(busy) != 1 || busy[0] != "qlearning" {
		t.Fatalf("Busy() = %v, want [qlearning]", busy)
	}

	tr.MarkIdle("qlearning")
	tr.MarkIdle("qlearning")
	if busy := tr.Busy(); len(busy) != 0 {
		t.Fatalf("Busy() = %v, want empty", busy)
	}

	if !tr.AwaitQuiescence(context.Background(), time.Second) {
		t.Error("tracker should be quiescent after double idle")
	}
}

func TestTracker_AwaitWakesOnLastIdle(t *testing.T) {
	tr := New()
	tr.MarkBusy("qlearning")
	tr.MarkBusy("genetic")

	result := make(chan bool, 1)
	go func() {
		result <- tr.AwaitQuiescence(context.Background(), 5*time.Second)
	}()

	// Still one unit busy: the waiter must not fire.
	tr.MarkIdle("qlearning")
	select {
	case <-result:
		t.Fatal("AwaitQuiescence returned while genetic was still busy")
	case <-time.After(50 * time.Millisecond):
	}

	tr.MarkIdle("genetic")
	select {
	case ok := <-result:
		if !ok {
			t.Error("AwaitQuiescence returned false after quiescence")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitQuiescence never woke")
	}
}

func TestTracker_AwaitTimeout(t *testing.T) {
	tr := New()
	tr.MarkBusy("dqn")

	start := time.Now()
	if tr.AwaitQuiescence(context.Background(), 30*time.Millisecond) {
		t.Error("AwaitQuiescence returned true while a unit was busy")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}

	if busy := tr.Busy(); len(busy) != 1 || busy[0] != "dqn" {
		t.Errorf("Busy() = %v, want [dqn]", busy)
	}
}

func TestTracker_AwaitContextCancel(t *testing.T) {
	tr := New()
	tr.MarkBusy("dqn")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if tr.AwaitQuiescence(ctx, 5*time.Second) {
		t.Error("AwaitQuiescence returned true on context cancellation")
	}
}

func TestTracker_LastActivity(t *testing.T) {
	tr := New()
	if _, ok := tr.LastActivity("unknown"); ok {
		t.Error("LastActivity reported an unregistered unit")
	}

	before := time.Now()
	tr.MarkBusy("genetic")
	at, ok := tr.LastActivity("genetic")
	if !ok {
		t.Fatal("LastActivity missing for busy unit")
	}
	if at.Before(before) {
		t.Errorf("LastActivity %v predates the transition at %v", at, before)
	}
}

func TestTracker_BusySorted(t *testing.T) {
	tr := New()
	tr.MarkBusy("zeta")
	tr.MarkBusy("alpha")
	tr.MarkBusy("mid")

	busy := tr.Busy()
	want := []string{"alpha", "mid", "zeta"}
	if len(busy) != len(want) {
		t.Fatalf("Busy() = %v, want %v", busy, want)
	}
	for i := range want {
		if busy[i] != want[i] {
			t.Fatalf("Busy() = %v, want %v", busy, want)
		}
	}
}
