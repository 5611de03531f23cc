// Package aio provides asynchronous, offset-addressed I/O channels backed by
// a bounded executor. Callers submit writes and reads at explicit offsets and
// receive the result on a completion channel, decoupling payload codecs from
// storage latency.
package aio

import "errors"

// ErrChannelClosed indicates an operation against a channel that has been
// closed, or whose executor has stopped accepting work.
var ErrChannelClosed = errors.New("aio: channel closed")

// ErrExecutorStopped is returned by Submit after Stop, or before Start.
var ErrExecutorStopped = errors.New("aio: executor stopped")

// Completion carries the outcome of one asynchronous operation: the number
// of bytes transferred and the error, if any. Exactly one Completion is
// delivered per submitted operation.
type Completion struct {
	N   int
	Err error
}

// Channel is an asynchronous, offset-addressed I/O endpoint. WriteAt and
// ReadAt return immediately; the returned channel delivers exactly one
// Completion when the operation finishes. Size, Truncate, Sync and Close
// are synchronous.
//
// Operations on distinct offsets may execute in any order; callers needing
// ordering await each completion before issuing the next operation.
type Channel interface {
	WriteAt(p []byte, off int64) <-chan Completion
	ReadAt(p []byte, off int64) <-chan Completion
	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}
