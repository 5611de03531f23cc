package gate

import (
	"fmt"
	"strings"
	"time"
)

// LockTimeoutError reports an exclusive operation refused because quiescence
// was not reached within the deadline. Only returned under StrictQuiescence;
// the default policy proceeds and records the timeout instead.
type LockTimeoutError struct {
	Kind      Kind
	Timeout   time.Duration
	BusyUnits []string
}

func (e *LockTimeoutError) Error() string {
	if len(e.BusyUnits) == 0 {
		return fmt.Sprintf("%s refused: quiescence not reached within %s", e.Kind, e.Timeout)
	}
	return fmt.Sprintf("%s refused: quiescence not reached within %s (busy: %s)",
		e.Kind, e.Timeout, strings.Join(e.BusyUnits, ", "))
}
