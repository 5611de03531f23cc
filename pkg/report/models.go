// Package report persists one row per exclusive run (startup, shutdown,
// training-stop save, game-reset save, UI read) with its per-artifact
// outcomes, so operators can audit what was written and when.
package report

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id has no persisted report.
var ErrRunNotFound = errors.New("run not found")

// Artifact outcomes recorded per run.
const (
	OutcomeFlushed = "flushed"
	OutcomeSkipped = "skipped" // clean artifact, nothing to write
	OutcomeFailed  = "failed"
	OutcomeLoaded  = "loaded"
	OutcomeAbsent  = "absent"
	OutcomeCorrupt = "corrupt" // quarantined and treated as absent
)

// Run is one persisted exclusive-operation report.
type Run struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	Kind               string    `gorm:"index;not null;size:50" json:"kind"`
	StartedAt          time.Time `gorm:"index;not null" json:"started_at"`
	FinishedAt         time.Time `gorm:"not null" json:"finished_at"`
	DurationMS         float64   `json:"duration_ms"`
	DrainWaitMS        float64   `json:"drain_wait_ms"`
	QuiescenceTimedOut bool      `gorm:"default:false" json:"quiescence_timed_out"`
	BusyUnits          string    `gorm:"type:text" json:"busy_units,omitempty"`
	Succeeded          int       `json:"succeeded"`
	Failed             int       `json:"failed"`
	Error              string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`

	Artifacts []ArtifactResult `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"artifacts,omitempty"`
}

// TableName returns the table name for Run.
func (Run) TableName() string {
	return "runs"
}

// ArtifactResult is the outcome of one artifact within a run.
type ArtifactResult struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID   string `gorm:"index;not null;size:36" json:"-"`
	Unit    string `gorm:"not null;size:255" json:"unit"`
	Key     string `gorm:"not null;size:255" json:"key"`
	Outcome string `gorm:"not null;size:50" json:"outcome"`
	Bytes   int64  `json:"bytes"`
	Error   string `gorm:"type:text" json:"error,omitempty"`
}

// TableName returns the table name for ArtifactResult.
func (ArtifactResult) TableName() string {
	return "run_artifacts"
}

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Run{},
		&ArtifactResult{},
	}
}
