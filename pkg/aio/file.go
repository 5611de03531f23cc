package aio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileChannel is a file-backed Channel. Reads and writes are executed on the
// shared executor; metadata operations run inline. The file is created on
// open if it does not exist.
type FileChannel struct {
	exec *Executor
	path string

	mu     sync.RWMutex
	file   *os.File
	closed bool
}

// OpenFile opens (creating if needed) a file-backed channel at path,
// creating parent directories as required.
func OpenFile(exec *Executor, path string) (*FileChannel, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	return &FileChannel{exec: exec, path: path, file: f}, nil
}

// Path returns the backing file path.
func (c *FileChannel) Path() string {
	return c.path
}

// WriteAt submits an asynchronous write of p at offset off.
func (c *FileChannel) WriteAt(p []byte, off int64) <-chan Completion {
	done := make(chan Completion, 1)
	c.submit(done, func() Completion {
		n, err := c.file.WriteAt(p, off)
		return Completion{N: n, Err: err}
	})
	return done
}

// ReadAt submits an asynchronous read into p at offset off. A read past the
// end of the file completes with the bytes available and io.EOF, matching
// the io.ReaderAt contract.
func (c *FileChannel) ReadAt(p []byte, off int64) <-chan Completion {
	done := make(chan Completion, 1)
	c.submit(done, func() Completion {
		n, err := c.file.ReadAt(p, off)
		return Completion{N: n, Err: err}
	})
	return done
}

// submit queues op on the executor, holding the channel read-lock for the
// duration of the file access so Close cannot race an in-flight operation.
func (c *FileChannel) submit(done chan<- Completion, op func() Completion) {
	err := c.exec.Submit(func() {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			done <- Completion{Err: ErrChannelClosed}
			return
		}
		res := op()
		c.mu.RUnlock()
		done <- res
	})
	if err != nil {
		// Stopped executor looks like a closed channel to callers.
		done <- Completion{Err: ErrChannelClosed}
	}
}

// Size returns the current length of the backing file.
func (c *FileChannel) Size() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ErrChannelClosed
	}
	info, err := c.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Truncate resizes the backing file.
func (c *FileChannel) Truncate(size int64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrChannelClosed
	}
	return c.file.Truncate(size)
}

// Sync flushes the backing file to stable storage.
func (c *FileChannel) Sync() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrChannelClosed
	}
	return c.file.Sync()
}

// Close closes the backing file. It blocks until in-flight operations on
// this channel finish; later operations complete with ErrChannelClosed.
// Close is idempotent.
func (c *FileChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}
