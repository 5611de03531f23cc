package mirror

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/artifact"
)

// ObjectStore is the subset of the mirror store the uploader uses.
type ObjectStore interface {
	PutArtifact(ctx context.Context, id artifact.ID, data []byte) error
}

// UploaderConfig holds configuration for the background uploader.
type UploaderConfig struct {
	// QueueSize is the maximum number of pending uploads.
	// Default: 256
	QueueSize int

	// Workers is the number of concurrent upload workers.
	// Default: 2
	Workers int

	// UploadTimeout bounds each individual upload.
	// Default: 2m
	UploadTimeout time.Duration
}

// DefaultUploaderConfig returns sensible defaults.
func DefaultUploaderConfig() UploaderConfig {
	return UploaderConfig{
		QueueSize:     256,
		Workers:       2,
		UploadTimeout: 2 * time.Minute,
	}
}

// UploaderOption customizes an Uploader.
type UploaderOption func(*Uploader)

// WithUploaderMetrics wires mirror metrics. A nil value disables collection.
func WithUploaderMetrics(m MirrorMetrics) UploaderOption {
	return func(u *Uploader) { u.metrics = m }
}

// Uploader mirrors flushed artifacts in the background. Uploads are
// coalesced: at most one upload is queued per artifact, and the worker reads
// the file fresh from disk, so the newest flushed bytes win.
type Uploader struct {
	store   ObjectStore
	root    string
	timeout time.Duration
	metrics MirrorMetrics

	queue chan artifact.ID

	// Worker management
	workers   int
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
	started   bool

	// Metrics
	mu          sync.Mutex
	queued      map[artifact.ID]bool
	pending     int
	completed   int
	failed      int
	lastError   error
	lastErrorAt time.Time
}

// NewUploader creates a background uploader that mirrors artifact files
// rooted at root.
func NewUploader(store ObjectStore, root string, cfg UploaderConfig, opts ...UploaderOption) *Uploader {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 2 * time.Minute
	}

	u := &Uploader{
		store:     store,
		root:      root,
		timeout:   cfg.UploadTimeout,
		queue:     make(chan artifact.ID, cfg.QueueSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		queued:    make(map[artifact.ID]bool),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start begins processing uploads.
func (u *Uploader) Start(ctx context.Context) {
	u.mu.Lock()
	if u.started {
		u.mu.Unlock()
		return
	}
	u.started = true
	u.mu.Unlock()

	logger.Info("Starting mirror uploader", "workers", u.workers)

	for i := 0; i < u.workers; i++ {
		u.wg.Add(1)
		go u.worker(ctx)
	}

	go func() {
		u.wg.Wait()
		close(u.stoppedCh)
	}()
}

// Stop gracefully shuts down the uploader, draining queued uploads until the
// timeout expires.
func (u *Uploader) Stop(timeout time.Duration) {
	u.mu.Lock()
	if !u.started {
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()

	logger.Info("Stopping mirror uploader", "pending", u.Pending())

	close(u.stopCh)

	select {
	case <-u.stoppedCh:
		logger.Info("Mirror uploader stopped gracefully")
	case <-time.After(timeout):
		logger.Warn("Mirror uploader stop timed out", "pending", u.Pending())
	}
}

// Enqueue schedules a mirror upload for one artifact.
// Returns false if the queue is full (non-blocking). Enqueueing an artifact
// that is already queued is a no-op: the queued upload will pick up the
// newest bytes anyway.
func (u *Uploader) Enqueue(id artifact.ID) bool {
	u.mu.Lock()
	if u.queued[id] {
		u.mu.Unlock()
		return true
	}
	u.mu.Unlock()

	select {
	case u.queue <- id:
		u.mu.Lock()
		u.queued[id] = true
		u.pending++
		if u.metrics != nil {
			u.metrics.RecordQueueDepth(u.pending)
		}
		u.mu.Unlock()
		return true
	default:
		logger.Warn("Mirror upload queue full, dropping request",
			"unit", id.Unit, "key", id.Key)
		return false
	}
}

// Pending returns the number of queued uploads.
func (u *Uploader) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pending
}

// Stats returns upload statistics.
func (u *Uploader) Stats() (pending, completed, failed int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pending, u.completed, u.failed
}

// worker processes uploads from the queue.
func (u *Uploader) worker(ctx context.Context) {
	defer u.wg.Done()

	for {
		select {
		case <-u.stopCh:
			u.drainQueue(ctx)
			return

		case <-ctx.Done():
			return

		case id, ok := <-u.queue:
			if !ok {
				return
			}
			u.upload(id)
		}
	}
}

// drainQueue processes remaining uploads during shutdown.
func (u *Uploader) drainQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-u.queue:
			if !ok {
				return
			}
			u.upload(id)
		default:
			return
		}
	}
}

// upload mirrors one artifact file. The queued flag clears before the read,
// so a flush that lands mid-upload re-enqueues and is not lost.
func (u *Uploader) upload(id artifact.ID) {
	u.mu.Lock()
	delete(u.queued, id)
	u.mu.Unlock()

	uploadCtx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()

	start := time.Now()
	data, err := os.ReadFile(id.Path(u.root))
	if err == nil {
		err = u.store.PutArtifact(uploadCtx, id, data)
	}

	u.mu.Lock()
	u.pending--
	if u.metrics != nil {
		u.metrics.RecordQueueDepth(u.pending)
	}
	if err != nil {
		u.failed++
		u.lastError = err
		u.lastErrorAt = time.Now()
		if u.metrics != nil {
			u.metrics.RecordUploadError(id.Unit)
		}
		logger.Error("Mirror upload failed",
			"unit", id.Unit, "key", id.Key, "error", err)
	} else {
		u.completed++
		if u.metrics != nil {
			u.metrics.ObserveUpload(id.Unit, int64(len(data)), time.Since(start))
		}
		logger.Debug("Mirror upload completed",
			"unit", id.Unit, "key", id.Key, "bytes", len(data))
	}
	u.mu.Unlock()
}
