package coordinator

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/statekeep/pkg/artifact"
	"github.com/marmos91/statekeep/pkg/cache"
	"github.com/marmos91/statekeep/pkg/gate"
	"github.com/marmos91/statekeep/pkg/report"
)

// ArtifactOutcome is the result of one artifact within an exclusive run.
// Outcome is one of the report.Outcome* values.
type ArtifactOutcome struct {
	ID      artifact.ID
	Outcome string
	Bytes   int64
	Err     error
}

// Report is the structured outcome of one exclusive run. Exclusive
// operations never raise on partial per-artifact failure: successful
// artifacts stay flushed or loaded, failed ones are named here, and the
// host decides what to do about them.
type Report struct {
	ID                 string
	Kind               gate.Kind
	StartedAt          time.Time
	FinishedAt         time.Time
	DrainWait          time.Duration
	QuiescenceTimedOut bool
	BusyUnits          []string
	Artifacts          []ArtifactOutcome
}

func newReport(kind gate.Kind) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now(),
	}
}

// Duration returns the wall time of the run, drain wait included.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed returns the number of artifacts whose outcome is a failure.
func (r *Report) Failed() int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Outcome == report.OutcomeFailed {
			n++
		}
	}
	return n
}

// Succeeded returns the number of artifacts that completed without failure.
// Skipped, absent and corrupt-quarantined artifacts count as succeeded: the
// run handled them as specified.
func (r *Report) Succeeded() int {
	return len(r.Artifacts) - r.Failed()
}

// Err returns nil when no artifact failed, otherwise a *PartialFlushError
// naming the stragglers.
func (r *Report) Err() error {
	var failed []artifact.ID
	errs := make(map[artifact.ID]error)
	for _, a := range r.Artifacts {
		if a.Outcome == report.OutcomeFailed {
			failed = append(failed, a.ID)
			errs[a.ID] = a.Err
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &cache.PartialFlushError{Failed: failed, Errors: errs}
}

// sortArtifacts orders outcomes by unit then key so reports are
// deterministic regardless of flush parallelism.
func (r *Report) sortArtifacts() {
	sort.Slice(r.Artifacts, func(i, j int) bool {
		a, b := r.Artifacts[i].ID, r.Artifacts[j].ID
		if a.Unit != b.Unit {
			return a.Unit < b.Unit
		}
		return a.Key < b.Key
	})
}

// toRun converts the report to its persisted row form.
func (r *Report) toRun() *report.Run {
	run := &report.Run{
		ID:                 r.ID,
		Kind:               r.Kind.String(),
		StartedAt:          r.StartedAt,
		FinishedAt:         r.FinishedAt,
		DurationMS:         durationMS(r.Duration()),
		DrainWaitMS:        durationMS(r.DrainWait),
		QuiescenceTimedOut: r.QuiescenceTimedOut,
		BusyUnits:          strings.Join(r.BusyUnits, ","),
		Succeeded:          r.Succeeded(),
		Failed:             r.Failed(),
	}
	if err := r.Err(); err != nil {
		run.Error = err.Error()
	}

	for _, a := range r.Artifacts {
		res := report.ArtifactResult{
			RunID:   r.ID,
			Unit:    a.ID.Unit,
			Key:     a.ID.Key,
			Outcome: a.Outcome,
			Bytes:   a.Bytes,
		}
		if a.Err != nil {
			res.Error = a.Err.Error()
		}
		run.Artifacts = append(run.Artifacts, res)
	}
	return run
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
