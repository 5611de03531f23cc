package logger

import (
	"log/slog"
	"time"
)

// Standard field keys. Using constants keeps log output greppable across
// the coordinator, the stores and the API layer.
const (
	// Correlation
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"
	KeyRunID   = "run_id"

	// Domain
	KeyOperation = "operation"
	KeyUnit      = "unit"
	KeyKey       = "key"
	KeyKind      = "kind"
	KeyState     = "state"
	KeyPolicy    = "policy"

	// Performance
	KeyDurationMs = "duration_ms"
	KeyBytes      = "bytes"
	KeyCount      = "count"
	KeyOffset     = "offset"

	// Outcome
	KeyError     = "error"
	KeySucceeded = "succeeded"
	KeyFailed    = "failed"

	// Infra
	KeyPath      = "path"
	KeyComponent = "component"
	KeyAddr      = "addr"
)

// Typed attribute constructors for the hot paths.

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Unit(id string) slog.Attr {
	return slog.String(KeyUnit, id)
}

func Key(key string) slog.Attr {
	return slog.String(KeyKey, key)
}

func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func DurationMs(start time.Time) slog.Attr {
	ms := float64(time.Since(start).Microseconds()) / 1000.0
	return slog.Float64(KeyDurationMs, ms)
}

func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
