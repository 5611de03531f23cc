package aio

import (
	"sync"
	"time"

	"github.com/marmos91/statekeep/internal/logger"
)

// ExecutorConfig holds configuration for the shared I/O executor.
type ExecutorConfig struct {
	// QueueSize is the maximum number of queued operations.
	// Default: 1024
	QueueSize int

	// Workers is the number of concurrent I/O workers. Sized to the
	// number of registered units by the coordinator.
	// Default: 4
	Workers int
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		QueueSize: 1024,
		Workers:   4,
	}
}

// Executor runs submitted I/O operations on a fixed pool of workers over a
// bounded queue. All channels of one coordinator share a single executor so
// total I/O parallelism stays predictable regardless of artifact count.
type Executor struct {
	queue chan func()

	// Worker management
	workers   int
	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	pending int
}

// NewExecutor creates an executor. Start must be called before Submit.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &Executor{
		queue:     make(chan func(), cfg.QueueSize),
		workers:   cfg.Workers,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (e *Executor) Start() {
	e.mu.Lock()
	if e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	logger.Debug("Starting I/O executor", "workers", e.workers)

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	// Monitor goroutine to close stoppedCh when all workers exit
	go func() {
		e.wg.Wait()
		close(e.stoppedCh)
	}()
}

// Stop shuts the executor down. Queued operations are drained before the
// workers exit; Stop waits up to timeout for the drain to finish. After
// Stop, Submit returns ErrExecutorStopped.
func (e *Executor) Stop(timeout time.Duration) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	started := e.started
	e.mu.Unlock()

	if !started {
		// Never started - nothing to drain
		return
	}

	logger.Debug("Stopping I/O executor", "pending", e.Pending())

	close(e.stopCh)

	select {
	case <-e.stoppedCh:
		logger.Debug("I/O executor stopped")
	case <-time.After(timeout):
		logger.Warn("I/O executor stop timed out", "pending", e.Pending())
	}
}

// Submit queues an operation for execution. It blocks while the queue is
// full and fails only when the executor is stopped; operations are never
// silently dropped, since a lost operation would leave its completion
// channel waiting forever.
func (e *Executor) Submit(fn func()) error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return ErrExecutorStopped
	}
	e.pending++
	e.mu.Unlock()

	select {
	case e.queue <- fn:
	case <-e.stopCh:
		e.mu.Lock()
		e.pending--
		e.mu.Unlock()
		return ErrExecutorStopped
	}

	// Stop may have won the race between the check above and the enqueue,
	// with every worker already drained and gone. Drain here so the
	// operation still runs and its completion channel is served.
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		e.drainQueue()
	}
	return nil
}

// Pending returns the number of submitted operations not yet finished.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// worker executes operations from the queue.
func (e *Executor) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopCh:
			// Drain remaining items before exiting
			e.drainQueue()
			return

		case fn, ok := <-e.queue:
			if !ok {
				return
			}
			e.run(fn)
		}
	}
}

// drainQueue executes remaining queued operations during shutdown.
func (e *Executor) drainQueue() {
	for {
		select {
		case fn, ok := <-e.queue:
			if !ok {
				return
			}
			e.run(fn)
		default:
			return
		}
	}
}

func (e *Executor) run(fn func()) {
	fn()

	e.mu.Lock()
	e.pending--
	e.mu.Unlock()
}
