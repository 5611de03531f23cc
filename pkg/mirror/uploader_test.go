package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/statekeep/pkg/artifact"
)

// recordingStore collects uploads and optionally blocks until released.
type recordingStore struct {
	mu      sync.Mutex
	uploads map[artifact.ID][]byte
	release chan struct{}
}

func newRecordingStore() *recordingStore {
	return &recordingStore{uploads: make(map[artifact.ID][]byte)}
}

func (r *recordingStore) PutArtifact(ctx context.Context, id artifact.ID, data []byte) error {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[id] = append([]byte(nil), data...)
	return nil
}

func (r *recordingStore) get(id artifact.ID) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.uploads[id]
	return data, ok
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.uploads)
}

// writeArtifactFile places bytes where the uploader expects them.
func writeArtifactFile(t *testing.T, root string, id artifact.ID, data []byte) {
	t.Helper()
	path := id.Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestUploader_MirrorsFlushedFile(t *testing.T) {
	root := t.TempDir()
	store := newRecordingStore()
	id := artifact.NewID("qlearning", "qtable")
	payload := []byte("encoded artifact bytes")
	writeArtifactFile(t, root, id, payload)

	u := NewUploader(store, root, DefaultUploaderConfig())
	u.Start(context.Background())
	defer u.Stop(time.Second)

	if !u.Enqueue(id) {
		t.Fatal("Enqueue returned false")
	}

	waitFor(t, func() bool { _, ok := store.get(id); return ok }, "upload never arrived")

	got, _ := store.get(id)
	if string(got) != string(payload) {
		t.Errorf("uploaded bytes = %q, want %q", got, payload)
	}
}

func TestUploader_CoalescesQueuedUploads(t *testing.T) {
	root := t.TempDir()
	store := newRecordingStore()
	id := artifact.NewID("genetic", "population")
	writeArtifactFile(t, root, id, []byte("v1"))

	// Not started yet, so both enqueues land before any worker runs.
	u := NewUploader(store, root, UploaderConfig{QueueSize: 8, Workers: 1})
	if !u.Enqueue(id) || !u.Enqueue(id) {
		t.Fatal("Enqueue returned false")
	}
	if got := u.Pending(); got != 1 {
		t.Fatalf("Pending() = %d after duplicate enqueue, want 1", got)
	}

	u.Start(context.Background())
	waitFor(t, func() bool { return u.Pending() == 0 }, "queue never drained")
	u.Stop(time.Second)

	_, completed, failed := u.Stats()
	if completed != 1 || failed != 0 {
		t.Errorf("Stats() = completed %d failed %d, want 1/0", completed, failed)
	}
}

func TestUploader_StopDrainsQueue(t *testing.T) {
	root := t.TempDir()
	store := newRecordingStore()

	ids := []artifact.ID{
		artifact.NewID("qlearning", "qtable"),
		artifact.NewID("genetic", "population"),
		artifact.NewID("dqn", "weights"),
	}
	for _, id := range ids {
		writeArtifactFile(t, root, id, []byte(id.String()))
	}

	u := NewUploader(store, root, UploaderConfig{QueueSize: 8, Workers: 1})
	u.Start(context.Background())
	for _, id := range ids {
		if !u.Enqueue(id) {
			t.Fatalf("Enqueue(%s) returned false", id)
		}
	}

	u.Stop(5 * time.Second)

	if got := store.count(); got != len(ids) {
		t.Errorf("uploaded %d artifacts, want %d", got, len(ids))
	}
}

func TestUploader_MissingFileCountsAsFailed(t *testing.T) {
	root := t.TempDir()
	store := newRecordingStore()

	u := NewUploader(store, root, UploaderConfig{QueueSize: 8, Workers: 1})
	u.Start(context.Background())
	defer u.Stop(time.Second)

	u.Enqueue(artifact.NewID("ghost", "state"))

	waitFor(t, func() bool { _, _, failed := u.Stats(); return failed == 1 }, "failure never recorded")

	if store.count() != 0 {
		t.Error("missing file must not reach the store")
	}
}

func TestUploader_FullQueueRejects(t *testing.T) {
	root := t.TempDir()
	store := newRecordingStore()
	store.release = make(chan struct{})

	u := NewUploader(store, root, UploaderConfig{QueueSize: 1, Workers: 1})

	first := artifact.NewID("a", "one")
	second := artifact.NewID("a", "two")
	third := artifact.NewID("a", "three")
	for _, id := range []artifact.ID{first, second, third} {
		writeArtifactFile(t, root, id, []byte("x"))
	}

	// Queue capacity one and no workers running: first fills the slot.
	if !u.Enqueue(first) {
		t.Fatal("first Enqueue returned false")
	}
	if !u.Enqueue(first) {
		t.Fatal("duplicate Enqueue must coalesce, not fail")
	}
	if u.Enqueue(second) {
		t.Fatal("second Enqueue should report a full queue")
	}

	close(store.release)
	u.Start(context.Background())
	waitFor(t, func() bool { return u.Pending() == 0 }, "queue never drained")
	u.Stop(time.Second)

	if _, ok := store.get(third); ok {
		t.Error("third artifact was never enqueued but got uploaded")
	}
}
