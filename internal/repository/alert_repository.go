package repository

import (
	"context"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository wires a repository backed by pgxpool.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

func (r *alertRepository) Create(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	payloadJSON, err := alert.PayloadToJSON()
	if err != nil {
		return domain.Alert{}, fmt.Errorf("marshal alert payload: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO alerts (id, project_id, type, severity, title, message, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, project_id, type, severity, title, message, payload, created_at`,
		alert.ID,
		alert.ProjectID,
		alert.Type,
		string(alert.Severity),
		alert.Title,
		alert.Message,
		payloadJSON,
	)

	var (
		created  domain.Alert
		severity string
		payload  []byte
	)
	if err := row.Scan(&created.ID, &created.ProjectID, &created.Type, &severity, &created.Title, &created.Message, &payload, &created.CreatedAt); err != nil {
		return domain.Alert{}, fmt.Errorf("failed to create alert: %w", err)
	}
	created.Severity = domain.AlertSeverity(severity)
	if err := domain.AlertPayloadFromJSON(payload, &created); err != nil {
		return domain.Alert{}, fmt.Errorf("decode alert payload: %w", err)
	}
	return created, nil
}

func (r *alertRepository) List(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, project_id, type, severity, title, message, payload, created_at
		 FROM alerts WHERE project_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		projectID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []domain.Alert{}
	for rows.Next() {
		var (
			alert    domain.Alert
			severity string
			payload  []byte
		)
		if scanErr := rows.Scan(&alert.ID, &alert.ProjectID, &alert.Type, &severity, &alert.Title, &alert.Message, &payload, &alert.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", scanErr)
		}
		alert.Severity = domain.AlertSeverity(severity)
		if err := domain.AlertPayloadFromJSON(payload, &alert); err != nil {
			return nil, fmt.Errorf("decode alert payload: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", rowsErr)
	}
	return alerts, nil
}
