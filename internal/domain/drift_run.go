package domain

import (
	"time"

	"github.com/google/uuid"
)

// DriftRunStatus captures lifecycle state for a drift comparison job.
type DriftRunStatus string

const (
	DriftRunStatusPending   DriftRunStatus = "pending"
	DriftRunStatusRunning   DriftRunStatus = "running"
	DriftRunStatusCompleted DriftRunStatus = "completed"
	DriftRunStatusFailed    DriftRunStatus = "failed"
)

// Terminal reports whether the status allows no further transitions. A
// terminal run must never be reprocessed in place; retries require a new run.
func (s DriftRunStatus) Terminal() bool {
	return s == DriftRunStatusCompleted || s == DriftRunStatusFailed
}

// CanTransitionTo reports whether the state machine permits the transition.
// pending may fail directly (header validation happens before any computation),
// but only a running run may complete.
func (s DriftRunStatus) CanTransitionTo(next DriftRunStatus) bool {
	switch s {
	case DriftRunStatusPending:
		return next == DriftRunStatusRunning || next == DriftRunStatusFailed
	case DriftRunStatusRunning:
		return next == DriftRunStatusCompleted || next == DriftRunStatusFailed
	default:
		return false
	}
}

// DriftRun is one baseline-vs-current comparison job and its persisted results.
// Created pending; status transitions are the only mutations.
type DriftRun struct {
	ID                uuid.UUID       `json:"id"`
	ProjectID         uuid.UUID       `json:"project_id"`
	BaselineDatasetID uuid.UUID       `json:"baseline_dataset_id"`
	CurrentDatasetID  uuid.UUID       `json:"current_dataset_id"`
	Status            DriftRunStatus  `json:"status"`
	DSI               float64         `json:"dsi"`
	DriftRatio        float64         `json:"drift_ratio"`
	Summary           string          `json:"summary"`
	Metrics           []FeatureMetric `json:"metrics,omitempty"`
	ErrorMessage      *string         `json:"error_message,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// NewDriftRun creates a pending run with both dataset references recorded.
func NewDriftRun(projectID, baselineDatasetID, currentDatasetID uuid.UUID) DriftRun {
	return DriftRun{
		ID:                uuid.New(),
		ProjectID:         projectID,
		BaselineDatasetID: baselineDatasetID,
		CurrentDatasetID:  currentDatasetID,
		Status:            DriftRunStatusPending,
		CreatedAt:         time.Now(),
	}
}
