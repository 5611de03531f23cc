package artifact

import (
	"errors"
	"fmt"
)

// ErrNoData indicates an artifact with no prior state: the backing file is
// absent or empty. Callers surface this as "nothing to load", not as a
// failure.
var ErrNoData = errors.New("artifact has no stored data")

// ErrUnknownKind indicates a codec kind this build does not implement.
var ErrUnknownKind = errors.New("unknown codec kind")

// CorruptError reports stored bytes that fail envelope validation or codec
// decoding. Callers treat the artifact as absent; the original bytes are
// preserved through the quarantine path rather than deleted in place.
type CorruptError struct {
	ID     ID
	Reason string
	Size   int64
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("artifact %s corrupt (%d bytes): %s", e.ID, e.Size, e.Reason)
}

// IsCorrupt reports whether err wraps a CorruptError.
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}
