package coordinator

import "errors"

// ErrClosed is returned for operations on a coordinator after RunShutdown.
// A closed coordinator never reopens; the host builds a new one.
var ErrClosed = errors.New("coordinator is closed")
