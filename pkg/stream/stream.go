// Package stream adapts blocking io.Reader/io.Writer calls onto an
// asynchronous, offset-addressed aio.Channel. Payload codecs require a
// blocking stream contract; the bridge issues each call at its current
// offset, awaits the completion, then advances.
//
// A Bridge is NOT safe for concurrent use. The wait-then-advance sequence
// is not atomic with respect to the offset counter, so exactly one reader
// or writer may use a given bridge at a time. That precondition is owned by
// the caller (the artifact cache serializes per-artifact access); the bridge
// only counts concurrent users so violations are observable, it never
// attempts to repair them.
package stream

import (
	"io"
	"sync/atomic"

	"github.com/marmos91/statekeep/internal/logger"
	"github.com/marmos91/statekeep/pkg/aio"
)

// Bridge presents a blocking stream over an asynchronous channel.
type Bridge struct {
	ch    aio.Channel
	label string

	offset atomic.Int64

	// Concurrent-user accounting. users should never exceed 1; maxUsers
	// keeps the high-water mark so tests can assert the invariant held.
	users    atomic.Int32
	maxUsers atomic.Int32
}

// New creates a bridge over ch starting at offset zero. The label names the
// artifact in violation logs.
func New(ch aio.Channel, label string) *Bridge {
	return &Bridge{ch: ch, label: label}
}

// Write issues an asynchronous write at the current offset, waits for its
// completion, and advances the offset by the bytes written.
func (b *Bridge) Write(p []byte) (int, error) {
	b.enter()
	defer b.exit()

	if len(p) == 0 {
		return 0, nil
	}

	res := <-b.ch.WriteAt(p, b.offset.Load())
	b.offset.Add(int64(res.N))
	if res.Err != nil {
		return res.N, res.Err
	}
	if res.N < len(p) {
		return res.N, io.ErrShortWrite
	}
	return res.N, nil
}

// Read issues an asynchronous read at the current offset, waits for its
// completion, and advances the offset by the bytes read. It fills p
// entirely unless end-of-artifact intervenes; a read at the end returns
// io.EOF.
func (b *Bridge) Read(p []byte) (int, error) {
	b.enter()
	defer b.exit()

	if len(p) == 0 {
		return 0, nil
	}

	res := <-b.ch.ReadAt(p, b.offset.Load())
	b.offset.Add(int64(res.N))
	return res.N, res.Err
}

// Offset returns the current stream position.
func (b *Bridge) Offset() int64 {
	return b.offset.Load()
}

// MaxUsers returns the highest number of concurrent users observed. Anything
// above 1 means the single-user precondition was violated.
func (b *Bridge) MaxUsers() int32 {
	return b.maxUsers.Load()
}

func (b *Bridge) enter() {
	cur := b.users.Add(1)
	for {
		max := b.maxUsers.Load()
		if cur <= max || b.maxUsers.CompareAndSwap(max, cur) {
			break
		}
	}
	if cur > 1 {
		logger.Warn("stream bridge used concurrently",
			"artifact", b.label,
			"users", cur)
	}
}

func (b *Bridge) exit() {
	b.users.Add(-1)
}
