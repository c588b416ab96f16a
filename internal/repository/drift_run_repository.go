package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/driftwatch/driftwatch/internal/db"
	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrRunStatusConflict indicates that a run cannot transition to the
// requested state, usually because another worker got there first or the run
// is already terminal.
var ErrRunStatusConflict = errors.New("drift run status conflict")

// errorMessageLimit bounds persisted error messages.
const errorMessageLimit = 2000

type driftRunRepository struct {
	conn *db.Connection
}

// NewDriftRunRepository wires a repository backed by the shared connection.
// It takes the connection rather than the bare pool because Complete persists
// the run aggregates and every metric in one transaction.
func NewDriftRunRepository(conn *db.Connection) DriftRunRepository {
	return &driftRunRepository{conn: conn}
}

func (r *driftRunRepository) Create(ctx context.Context, run domain.DriftRun) (domain.DriftRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	row := r.conn.Pool.QueryRow(
		ctx,
		`INSERT INTO drift_runs (id, project_id, baseline_dataset_id, current_dataset_id, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, project_id, baseline_dataset_id, current_dataset_id, status, dsi, drift_ratio,
		           summary, error_message, created_at, started_at, completed_at`,
		run.ID,
		run.ProjectID,
		run.BaselineDatasetID,
		run.CurrentDatasetID,
		string(domain.DriftRunStatusPending),
	)

	created, err := scanDriftRun(row)
	if err != nil {
		return domain.DriftRun{}, fmt.Errorf("failed to create drift run: %w", err)
	}
	return created, nil
}

func (r *driftRunRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.DriftRun, error) {
	row := r.conn.Pool.QueryRow(
		ctx,
		`SELECT id, project_id, baseline_dataset_id, current_dataset_id, status, dsi, drift_ratio,
		        summary, error_message, created_at, started_at, completed_at
		 FROM drift_runs WHERE id = $1`,
		id,
	)

	run, err := scanDriftRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DriftRun{}, fmt.Errorf("drift run %s: %w", id, ErrNotFound)
		}
		return domain.DriftRun{}, fmt.Errorf("failed to get drift run: %w", err)
	}
	return run, nil
}

func (r *driftRunRepository) List(ctx context.Context, projectID *uuid.UUID, statuses []domain.DriftRunStatus, limit, offset int) ([]domain.DriftRun, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, project_id, baseline_dataset_id, current_dataset_id, status, dsi, drift_ratio,
	                 summary, error_message, created_at, started_at, completed_at
	          FROM drift_runs WHERE 1=1`
	args := []any{}
	if projectID != nil {
		args = append(args, *projectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		args = append(args, values)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list drift runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.DriftRun{}
	for rows.Next() {
		run, scanErr := scanDriftRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan drift run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate drift runs: %w", rowsErr)
	}
	return runs, nil
}

func (r *driftRunRepository) ListPending(ctx context.Context, limit int) ([]domain.DriftRun, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.List(ctx, nil, []domain.DriftRunStatus{domain.DriftRunStatusPending}, limit, 0)
}

func (r *driftRunRepository) ListMetrics(ctx context.Context, runID uuid.UUID) ([]domain.FeatureMetric, error) {
	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT drift_run_id, feature_name, feature_type, psi, kl_divergence, drift_flag
		 FROM feature_metrics WHERE drift_run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature metrics: %w", err)
	}
	defer rows.Close()

	metrics := []domain.FeatureMetric{}
	for rows.Next() {
		var (
			metric      domain.FeatureMetric
			featureType string
			psi         pgtype.Float8
			kl          pgtype.Float8
		)
		if scanErr := rows.Scan(&metric.DriftRunID, &metric.FeatureName, &featureType, &psi, &kl, &metric.DriftFlag); scanErr != nil {
			return nil, fmt.Errorf("failed to scan feature metric: %w", scanErr)
		}
		metric.FeatureType = domain.FeatureType(featureType)
		if psi.Valid {
			value := psi.Float64
			metric.PSI = &value
		}
		if kl.Valid {
			value := kl.Float64
			metric.KLDivergence = &value
		}
		metrics = append(metrics, metric)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate feature metrics: %w", rowsErr)
	}
	return metrics, nil
}

func (r *driftRunRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE drift_runs SET status = 'running', started_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark drift run running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunStatusConflict
	}
	return nil
}

func (r *driftRunRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE drift_runs SET status = 'failed', error_message = $2, completed_at = now()
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		id,
		truncateMessage(errorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to mark drift run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunStatusConflict
	}
	return nil
}

func (r *driftRunRepository) Complete(ctx context.Context, run domain.DriftRun, metrics []domain.FeatureMetric) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(
			ctx,
			`UPDATE drift_runs
			 SET status = 'completed', dsi = $2, drift_ratio = $3, summary = $4, completed_at = now()
			 WHERE id = $1 AND status = 'running'`,
			run.ID,
			run.DSI,
			run.DriftRatio,
			run.Summary,
		)
		if err != nil {
			return fmt.Errorf("failed to mark drift run completed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRunStatusConflict
		}

		for position, metric := range metrics {
			psi := pgtype.Float8{}
			if metric.PSI != nil {
				psi = pgtype.Float8{Float64: *metric.PSI, Valid: true}
			}
			kl := pgtype.Float8{}
			if metric.KLDivergence != nil {
				kl = pgtype.Float8{Float64: *metric.KLDivergence, Valid: true}
			}

			if _, err := tx.Exec(
				ctx,
				`INSERT INTO feature_metrics (drift_run_id, position, feature_name, feature_type, psi, kl_divergence, drift_flag)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				run.ID,
				position,
				metric.FeatureName,
				string(metric.FeatureType),
				psi,
				kl,
				metric.DriftFlag,
			); err != nil {
				return fmt.Errorf("failed to insert feature metric %s: %w", metric.FeatureName, err)
			}
		}
		return nil
	})
}

func (r *driftRunRepository) FailStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE drift_runs
		 SET status = 'failed', error_message = 'run exceeded processing deadline', completed_at = now()
		 WHERE status = 'running' AND started_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale drift runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanDriftRun(row pgx.Row) (domain.DriftRun, error) {
	var (
		run          domain.DriftRun
		status       string
		summary      pgtype.Text
		errorMessage pgtype.Text
		startedAt    pgtype.Timestamptz
		completedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&run.ID,
		&run.ProjectID,
		&run.BaselineDatasetID,
		&run.CurrentDatasetID,
		&status,
		&run.DSI,
		&run.DriftRatio,
		&summary,
		&errorMessage,
		&run.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return domain.DriftRun{}, err
	}

	run.Status = domain.DriftRunStatus(status)
	if summary.Valid {
		run.Summary = summary.String
	}
	if errorMessage.Valid {
		message := errorMessage.String
		run.ErrorMessage = &message
	}
	if startedAt.Valid {
		started := startedAt.Time
		run.StartedAt = &started
	}
	if completedAt.Valid {
		completed := completedAt.Time
		run.CompletedAt = &completed
	}
	return run, nil
}

func truncateMessage(message string) string {
	message = strings.TrimSpace(message)
	if len(message) > errorMessageLimit {
		return message[:errorMessageLimit]
	}
	return message
}
