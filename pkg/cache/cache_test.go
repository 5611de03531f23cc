package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/statekeep/pkg/aio"
	"github.com/marmos91/statekeep/pkg/artifact"
)

// kindResolver is a map-backed KindResolver for tests.
type kindResolver map[artifact.ID]artifact.Kind

func (r kindResolver) Codec(unit, key string) (artifact.Kind, error) {
	if k, ok := r[artifact.NewID(unit, key)]; ok {
		return k, nil
	}
	return artifact.KindRaw, nil
}

// recordingJournal captures lifecycle events.
type recordingJournal struct {
	mu          sync.Mutex
	flushed     []FlushRecord
	quarantined []QuarantineRecord
}

func (j *recordingJournal) ArtifactFlushed(_ context.Context, rec FlushRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flushed = append(j.flushed, rec)
}

func (j *recordingJournal) ArtifactQuarantined(_ context.Context, rec QuarantineRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.quarantined = append(j.quarantined, rec)
}

func (j *recordingJournal) flushCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.flushed)
}

func (j *recordingJournal) quarantineCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.quarantined)
}

func newTestCache(t *testing.T, opts ...Option) (*Cache, string) {
	t.Helper()
	root := t.TempDir()

	exec := aio.NewExecutor(aio.ExecutorConfig{Workers: 4, QueueSize: 128})
	exec.Start()
	t.Cleanup(func() { exec.Stop(2 * time.Second) })

	c := New(Config{Root: root, Workers: 4, FlushTimeout: 5 * time.Second}, exec, nil, opts...)
	t.Cleanup(func() { c.Close() })
	return c, root
}

func TestCache_PutMarksDirty(t *testing.T) {
	c, _ := newTestCache(t)
	id := artifact.NewID("qlearning", "qtable")

	if err := c.Put(id, []byte("v1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	dirty := c.Dirty()
	if len(dirty) != 1 || dirty[0] != id {
		t.Fatalf("Dirty() = %v, want [%v]", dirty, id)
	}
}

func TestCache_PutCopiesPayload(t *testing.T) {
	c, _ := newTestCache(t)
	id := artifact.NewID("genetic", "population")

	buf := []byte("generation 1")
	if err := c.Put(id, buf); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	buf[11] = '2' // mutate the caller's buffer

	got, err := c.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "generation 1" {
		t.Errorf("cache shares the caller's buffer: got %q", got)
	}
}

func TestCache_DedupSkipsIdenticalPayload(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	id := artifact.NewID("qlearning", "qtable")
	payload := []byte("stable weights")

	if err := c.Put(id, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Identical payload on a clean entry: the put is dropped.
	if err := c.Put(id, payload); err != nil {
		t.Fatalf("dedup Put failed: %v", err)
	}
	if dirty := c.Dirty(); len(dirty) != 0 {
		t.Fatalf("identical put re-dirtied the artifact: %v", dirty)
	}

	// A changed payload must dirty it again.
	if err := c.Put(id, []byte("new weights")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if dirty := c.Dirty(); len(dirty) != 1 {
		t.Fatalf("changed put did not dirty the artifact: %v", dirty)
	}
}

func TestCache_TryQueueFlushCoalesces(t *testing.T) {
	c, _ := newTestCache(t)
	id := artifact.NewID("dqn", "experiences")

	if !c.TryQueueFlush(id) {
		t.Fatal("first TryQueueFlush returned false")
	}
	if c.TryQueueFlush(id) {
		t.Fatal("second TryQueueFlush should coalesce")
	}
	if got := c.QueuedFlushes(); got != 1 {
		t.Fatalf("QueuedFlushes = %d, want 1", got)
	}

	c.DequeueFlush(id)
	if got := c.QueuedFlushes(); got != 0 {
		t.Fatalf("QueuedFlushes after dequeue = %d, want 0", got)
	}
	if !c.TryQueueFlush(id) {
		t.Fatal("TryQueueFlush after dequeue returned false")
	}
}

func TestCache_StatsSnapshot(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Put(artifact.NewID("a", "k1"), []byte("one")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Put(artifact.NewID("b", "k2"), []byte("two")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, artifact.NewID("a", "k1")); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	s := c.Stats()
	if s.Artifacts != 2 {
		t.Errorf("Stats.Artifacts = %d, want 2", s.Artifacts)
	}
	if s.Dirty != 1 {
		t.Errorf("Stats.Dirty = %d, want 1", s.Dirty)
	}
	if s.Cached != 1 { // flushed entry evicted, dirty one cached
		t.Errorf("Stats.Cached = %d, want 1", s.Cached)
	}
	if s.OpenChannels != 1 {
		t.Errorf("Stats.OpenChannels = %d, want 1", s.OpenChannels)
	}
}

func TestCache_ClosedOperations(t *testing.T) {
	c, _ := newTestCache(t)
	id := artifact.NewID("unit", "key")

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if err := c.Put(id, []byte("late")); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Put on closed cache: expected ErrCacheClosed, got %v", err)
	}
	if _, err := c.Read(context.Background(), id); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Read on closed cache: expected ErrCacheClosed, got %v", err)
	}
	if err := c.Flush(context.Background(), id); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Flush on closed cache: expected ErrCacheClosed, got %v", err)
	}
	if c.TryQueueFlush(id) {
		t.Error("TryQueueFlush on closed cache should return false")
	}
}

func TestCache_CloseChannelsKeepsState(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	id := artifact.NewID("genetic", "population")

	if err := c.Put(id, []byte("gen-7")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := c.CloseChannels(ctx); err != nil {
		t.Fatalf("CloseChannels failed: %v", err)
	}
	if s := c.Stats(); s.OpenChannels != 0 {
		t.Fatalf("OpenChannels = %d after CloseChannels, want 0", s.OpenChannels)
	}

	// The channel reopens lazily.
	got, err := c.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read after CloseChannels failed: %v", err)
	}
	if string(got) != "gen-7" {
		t.Errorf("Read = %q, want gen-7", got)
	}
}
