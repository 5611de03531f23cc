package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/marmos91/statekeep/pkg/aio"
	"github.com/marmos91/statekeep/pkg/artifact"
)

func TestFlush_CleanArtifactIsNoOp(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	id := artifact.NewID("qlearning", "qtable")

	// Never put: flushing an unknown-but-registered artifact is a no-op.
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush of clean artifact failed: %v", err)
	}
}

func TestFlush_WritesEnvelopeAndEvicts(t *testing.T) {
	j := &recordingJournal{}
	c, root := newTestCache(t, WithJournal(j))
	ctx := context.Background()
	id := artifact.NewID("qlearning", "qtable")
	payload := bytes.Repeat([]byte("q"), 4096)

	if err := c.Put(id, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Dirty cleared, payload evicted.
	if dirty := c.Dirty(); len(dirty) != 0 {
		t.Fatalf("Dirty() = %v after flush, want empty", dirty)
	}
	if s := c.Stats(); s.Cached != 0 {
		t.Fatalf("payload not evicted after flush: %+v", s)
	}

	// The stored file is a valid envelope holding the payload.
	raw, err := os.ReadFile(id.Path(root))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	got, err := artifact.Decode(id, raw)
	if err != nil {
		t.Fatalf("stored envelope does not decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("stored payload differs: got %d bytes, want %d", len(got), len(payload))
	}

	if j.flushCount() != 1 {
		t.Errorf("journal recorded %d flushes, want 1", j.flushCount())
	}
}

func TestFlush_ShrinkingPayloadTruncates(t *testing.T) {
	c, root := newTestCache(t)
	ctx := context.Background()
	id := artifact.NewID("genetic", "population")

	long := bytes.Repeat([]byte("x"), 10_000)
	if err := c.Put(id, long); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	short := []byte("tiny")
	if err := c.Put(id, short); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	raw, err := os.ReadFile(id.Path(root))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	got, err := artifact.Decode(id, raw)
	if err != nil {
		t.Fatalf("stored envelope does not decode after shrink: %v", err)
	}
	if !bytes.Equal(got, short) {
		t.Errorf("stored payload = %q, want %q", got, short)
	}
}

func TestFlushAll_IdempotentSecondPass(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, id := range []artifact.ID{
		artifact.NewID("qlearning", "qtable"),
		artifact.NewID("genetic", "population"),
		artifact.NewID("dqn", "experiences"),
	} {
		if err := c.Put(id, []byte("payload for "+id.String())); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	first := c.FlushAll(ctx)
	if err := first.Err(); err != nil {
		t.Fatalf("first FlushAll failed: %v", err)
	}
	if len(first.Succeeded) != 3 {
		t.Fatalf("first pass flushed %d artifacts, want 3", len(first.Succeeded))
	}

	// No intervening saves: the second pass performs zero writes.
	second := c.FlushAll(ctx)
	if err := second.Err(); err != nil {
		t.Fatalf("second FlushAll failed: %v", err)
	}
	if len(second.Succeeded) != 0 || len(second.Failed) != 0 {
		t.Errorf("second pass was not idempotent: %+v", second)
	}
}

func TestFlushAll_PartialFailure(t *testing.T) {
	root := t.TempDir()
	exec := aio.NewExecutor(aio.ExecutorConfig{Workers: 2, QueueSize: 64})
	exec.Start()
	t.Cleanup(func() { exec.Stop(2 * time.Second) })

	// One artifact is registered with a codec kind this build cannot
	// encode, so its flush fails while the others succeed.
	badID := artifact.NewID("broken", "weights")
	kinds := kindResolver{badID: artifact.Kind(99)}

	c := New(Config{Root: root, Workers: 2, FlushTimeout: time.Second}, exec, kinds)
	t.Cleanup(func() { c.Close() })

	goodA := artifact.NewID("qlearning", "qtable")
	goodB := artifact.NewID("genetic", "population")
	ctx := context.Background()

	for _, id := range []artifact.ID{goodA, badID, goodB} {
		if err := c.Put(id, []byte("data")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	report := c.FlushAll(ctx)
	if len(report.Succeeded) != 2 {
		t.Errorf("Succeeded = %v, want 2 artifacts", report.Succeeded)
	}
	if len(report.Failed) != 1 || report.Failed[0] != badID {
		t.Fatalf("Failed = %v, want [%v]", report.Failed, badID)
	}

	var te *TransientError
	if !errors.As(report.Errors[badID], &te) {
		t.Errorf("failure error = %v, want *TransientError", report.Errors[badID])
	}

	var pfe *PartialFlushError
	if !errors.As(report.Err(), &pfe) {
		t.Fatalf("report.Err() = %v, want *PartialFlushError", report.Err())
	}

	// The failed artifact stays dirty for the next opportunity.
	dirty := c.Dirty()
	if len(dirty) != 1 || dirty[0] != badID {
		t.Errorf("Dirty() = %v, want [%v]", dirty, badID)
	}
}

func TestFlush_FailureKeepsPayloadForRetry(t *testing.T) {
	root := t.TempDir()
	exec := aio.NewExecutor(aio.ExecutorConfig{Workers: 2, QueueSize: 64})
	exec.Start()

	c := New(Config{Root: root, Workers: 2, FlushTimeout: time.Second}, exec, nil)
	t.Cleanup(func() { c.Close() })

	id := artifact.NewID("dqn", "experiences")
	if err := c.Put(id, []byte("replay buffer")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Force a transient failure: stop the executor so writes complete
	// with a closed-channel error.
	exec.Stop(time.Second)

	err := c.Flush(context.Background(), id)
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransientError, got %v", err)
	}
	if !errors.Is(err, aio.ErrChannelClosed) {
		t.Errorf("cause = %v, want ErrChannelClosed", err)
	}

	// Still dirty, payload still readable.
	if dirty := c.Dirty(); len(dirty) != 1 {
		t.Fatalf("artifact no longer dirty after failed flush: %v", dirty)
	}
	got, err := c.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "replay buffer" {
		t.Errorf("payload lost after failed flush: %q", got)
	}
}
