package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type datasetRepository struct {
	pool *pgxpool.Pool
}

// NewDatasetRepository wires a repository backed by pgxpool.
func NewDatasetRepository(pool *pgxpool.Pool) DatasetRepository {
	return &datasetRepository{pool: pool}
}

func (r *datasetRepository) Create(ctx context.Context, dataset domain.Dataset, rows []map[string]string) (domain.Dataset, error) {
	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}

	columnsJSON, err := dataset.ColumnsToJSON()
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("marshal dataset columns: %w", err)
	}
	if rows == nil {
		rows = []map[string]string{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("marshal dataset rows: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO datasets (id, project_id, name, kind, row_count, columns, rows)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, project_id, name, kind, row_count, columns, created_at`,
		dataset.ID,
		dataset.ProjectID,
		dataset.Name,
		string(dataset.Kind),
		dataset.RowCount,
		columnsJSON,
		rowsJSON,
	)

	created, err := scanDataset(row)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("failed to create dataset: %w", err)
	}
	return created, nil
}

func (r *datasetRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Dataset, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, project_id, name, kind, row_count, columns, created_at
		 FROM datasets WHERE id = $1`,
		id,
	)

	dataset, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dataset{}, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
		}
		return domain.Dataset{}, fmt.Errorf("failed to get dataset: %w", err)
	}
	return dataset, nil
}

func (r *datasetRepository) GetRows(ctx context.Context, id uuid.UUID) ([]map[string]string, error) {
	var rowsJSON []byte
	if err := r.pool.QueryRow(ctx, `SELECT rows FROM datasets WHERE id = $1`, id).Scan(&rowsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get dataset rows: %w", err)
	}

	rows := []map[string]string{}
	if len(rowsJSON) > 0 {
		if err := json.Unmarshal(rowsJSON, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode dataset rows: %w", err)
		}
	}
	return rows, nil
}

func (r *datasetRepository) List(ctx context.Context, projectID uuid.UUID) ([]domain.Dataset, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, project_id, name, kind, row_count, columns, created_at
		 FROM datasets WHERE project_id = $1 ORDER BY created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := []domain.Dataset{}
	for rows.Next() {
		dataset, scanErr := scanDataset(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", scanErr)
		}
		datasets = append(datasets, dataset)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate datasets: %w", rowsErr)
	}
	return datasets, nil
}

func scanDataset(row pgx.Row) (domain.Dataset, error) {
	var (
		dataset     domain.Dataset
		kind        string
		columnsJSON []byte
	)
	if err := row.Scan(
		&dataset.ID,
		&dataset.ProjectID,
		&dataset.Name,
		&kind,
		&dataset.RowCount,
		&columnsJSON,
		&dataset.CreatedAt,
	); err != nil {
		return domain.Dataset{}, err
	}

	dataset.Kind = domain.DatasetKind(kind)
	columns, err := domain.DatasetColumnsFromJSON(columnsJSON)
	if err != nil {
		return domain.Dataset{}, fmt.Errorf("decode dataset columns: %w", err)
	}
	dataset.Columns = columns
	return dataset, nil
}
