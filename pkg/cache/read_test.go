package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/statekeep/pkg/artifact"
)

// countingMetrics tallies reads by hit/miss for assertions.
type countingMetrics struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (m *countingMetrics) ObserveFlush(string, int64, time.Duration) {}
func (m *countingMetrics) RecordFlushError(string)                   {}
func (m *countingMetrics) RecordQuarantine(string)                   {}
func (m *countingMetrics) RecordDedupSkip(string)                    {}
func (m *countingMetrics) RecordDirtyArtifacts(int)                  {}

func (m *countingMetrics) ObserveRead(_ string, _ int64, _ time.Duration, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *countingMetrics) counts() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

func TestRead_FreshArtifactIsAbsent(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Read(context.Background(), artifact.NewID("dqn", "experiences"))
	if err != nil {
		t.Fatalf("Read of fresh artifact failed: %v", err)
	}
	if got != nil {
		t.Errorf("fresh artifact returned %d bytes, want absence", len(got))
	}
}

func TestRead_RoundTripAfterFlush(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	id := artifact.NewID("dqn", "experiences")
	payload := bytes.Repeat([]byte("transition "), 512)

	// Absent, then save + flush + load round-trips.
	if got, err := c.Read(ctx, id); err != nil || got != nil {
		t.Fatalf("fresh read: got %v bytes, err %v", len(got), err)
	}
	if err := c.Put(id, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got, err := c.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestRead_DirtyPayloadServedFromMemory(t *testing.T) {
	c, _ := newTestCache(t)
	id := artifact.NewID("qlearning", "qtable")

	if err := c.Put(id, []byte("unflushed")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "unflushed" {
		t.Errorf("Read = %q, want the dirty payload", got)
	}
}

func TestRead_WarmsCacheAfterDiskRead(t *testing.T) {
	m := &countingMetrics{}
	c, _ := newTestCache(t, WithMetrics(m))
	ctx := context.Background()
	id := artifact.NewID("genetic", "population")

	if err := c.Put(id, []byte("genomes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Flush evicted the payload: first read misses, second hits memory.
	if _, err := c.Read(ctx, id); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, err := c.Read(ctx, id); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	hits, misses := m.counts()
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}

func TestRead_ZeroLengthFileIsAbsent(t *testing.T) {
	c, root := newTestCache(t)
	id := artifact.NewID("unit", "key")

	path := id.Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := c.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != nil {
		t.Errorf("zero-length file returned %d bytes, want absence", len(got))
	}
}

func TestRead_CorruptBytesQuarantined(t *testing.T) {
	j := &recordingJournal{}
	c, root := newTestCache(t, WithJournal(j))
	ctx := context.Background()
	id := artifact.NewID("qlearning", "qtable")

	// Plant garbage long enough to parse as a (bad) envelope.
	garbage := bytes.Repeat([]byte{0xBA, 0xD0}, 64)
	path := id.Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	// Corrupt read is absence, not an error.
	got, err := c.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read of corrupt artifact failed: %v", err)
	}
	if got != nil {
		t.Fatalf("corrupt artifact returned %d bytes, want absence", len(got))
	}

	// The original bytes are preserved under quarantine.
	if j.quarantineCount() != 1 {
		t.Fatalf("journal recorded %d quarantines, want 1", j.quarantineCount())
	}
	qdir := filepath.Join(root, "quarantine", id.Unit)
	files, err := os.ReadDir(qdir)
	if err != nil {
		t.Fatalf("quarantine dir missing: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("quarantine holds %d files, want 1", len(files))
	}
	preserved, err := os.ReadFile(filepath.Join(qdir, files[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(preserved, garbage) {
		t.Error("quarantined bytes differ from the corrupt original")
	}

	// The original is reset so fresh state can persist.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("corrupt original not truncated: %d bytes", info.Size())
	}

	// Save + flush + read works again afterwards.
	if err := c.Put(id, []byte("fresh state")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	got, err = c.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "fresh state" {
		t.Errorf("post-quarantine round trip = %q", got)
	}
}

func TestRead_ConcurrentMissesShareOneRead(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	id := artifact.NewID("dqn", "experiences")
	payload := bytes.Repeat([]byte("r"), 64*1024)

	if err := c.Put(id, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Flush(ctx, id); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	const readers = 8
	results := make(chan []byte, readers)
	errs := make(chan error, readers)

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Read(ctx, id)
			if err != nil {
				errs <- err
				return
			}
			results <- got
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent Read failed: %v", err)
	}
	for got := range results {
		if !bytes.Equal(got, payload) {
			t.Fatal("concurrent Read returned wrong payload")
		}
	}
}
