package repository

import (
	"context"
	"time"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
)

// ProjectRepository defines the interface for project operations
type ProjectRepository interface {
	Create(ctx context.Context, project domain.Project) (domain.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
}

// ThresholdConfigRepository stores per-project alert thresholds. The drift
// core only ever reads them.
type ThresholdConfigRepository interface {
	Get(ctx context.Context, projectID uuid.UUID) (domain.ThresholdConfig, bool, error)
	Upsert(ctx context.Context, config domain.ThresholdConfig) (domain.ThresholdConfig, error)
}

// DatasetRepository defines the interface for dataset operations. Datasets
// are immutable after Create.
type DatasetRepository interface {
	Create(ctx context.Context, dataset domain.Dataset, rows []map[string]string) (domain.Dataset, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Dataset, error)
	GetRows(ctx context.Context, id uuid.UUID) ([]map[string]string, error)
	List(ctx context.Context, projectID uuid.UUID) ([]domain.Dataset, error)
}

// DriftRunRepository owns run lifecycle persistence. Status transitions use
// guarded updates so terminal runs are never reprocessed in place.
type DriftRunRepository interface {
	Create(ctx context.Context, run domain.DriftRun) (domain.DriftRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.DriftRun, error)
	List(ctx context.Context, projectID *uuid.UUID, statuses []domain.DriftRunStatus, limit, offset int) ([]domain.DriftRun, error)
	ListPending(ctx context.Context, limit int) ([]domain.DriftRun, error)
	ListMetrics(ctx context.Context, runID uuid.UUID) ([]domain.FeatureMetric, error)

	// MarkRunning transitions pending -> running; returns
	// ErrRunStatusConflict when the run is no longer pending.
	MarkRunning(ctx context.Context, id uuid.UUID) error
	// MarkFailed transitions pending or running -> failed with the message.
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	// Complete persists the aggregates and all metrics atomically and
	// transitions running -> completed. All-or-nothing per run.
	Complete(ctx context.Context, run domain.DriftRun, metrics []domain.FeatureMetric) error
	// FailStale re-marks running runs untouched for longer than the cutoff as
	// failed, returning how many were reaped.
	FailStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// AlertRepository stores emitted alerts. Alerts are write-once.
type AlertRepository interface {
	Create(ctx context.Context, alert domain.Alert) (domain.Alert, error)
	List(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]domain.Alert, error)
}

// IngestionLogRepository stores upload errors for observability.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, projectID uuid.UUID, datasetName string, limit, offset int) ([]domain.IngestionLogEntry, error)
}
