package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type thresholdConfigRepository struct {
	pool *pgxpool.Pool
}

// NewThresholdConfigRepository wires a repository backed by pgxpool.
func NewThresholdConfigRepository(pool *pgxpool.Pool) ThresholdConfigRepository {
	return &thresholdConfigRepository{pool: pool}
}

func (r *thresholdConfigRepository) Get(ctx context.Context, projectID uuid.UUID) (domain.ThresholdConfig, bool, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT project_id, dsi_threshold, drift_ratio_threshold, notify_target, updated_at
		 FROM threshold_configs WHERE project_id = $1`,
		projectID,
	)

	var (
		config       domain.ThresholdConfig
		notifyTarget pgtype.Text
	)
	if err := row.Scan(&config.ProjectID, &config.DSIThreshold, &config.DriftRatioThreshold, &notifyTarget, &config.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ThresholdConfig{}, false, nil
		}
		return domain.ThresholdConfig{}, false, fmt.Errorf("failed to get threshold config: %w", err)
	}
	if notifyTarget.Valid {
		config.NotifyTarget = notifyTarget.String
	}
	return config, true, nil
}

func (r *thresholdConfigRepository) Upsert(ctx context.Context, config domain.ThresholdConfig) (domain.ThresholdConfig, error) {
	notifyTarget := pgtype.Text{}
	if config.NotifyTarget != "" {
		notifyTarget = pgtype.Text{String: config.NotifyTarget, Valid: true}
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO threshold_configs (project_id, dsi_threshold, drift_ratio_threshold, notify_target)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id) DO UPDATE
		 SET dsi_threshold = EXCLUDED.dsi_threshold,
		     drift_ratio_threshold = EXCLUDED.drift_ratio_threshold,
		     notify_target = EXCLUDED.notify_target,
		     updated_at = now()
		 RETURNING project_id, dsi_threshold, drift_ratio_threshold, notify_target, updated_at`,
		config.ProjectID,
		config.DSIThreshold,
		config.DriftRatioThreshold,
		notifyTarget,
	)

	var (
		updated domain.ThresholdConfig
		target  pgtype.Text
	)
	if err := row.Scan(&updated.ProjectID, &updated.DSIThreshold, &updated.DriftRatioThreshold, &target, &updated.UpdatedAt); err != nil {
		return domain.ThresholdConfig{}, fmt.Errorf("failed to upsert threshold config: %w", err)
	}
	if target.Valid {
		updated.NotifyTarget = target.String
	}
	return updated, nil
}
