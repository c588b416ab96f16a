package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftwatch/driftwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository wires a repository backed by pgxpool.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

func (r *projectRepository) Create(ctx context.Context, project domain.Project) (domain.Project, error) {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO projects (id, name, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, description, created_at, updated_at`,
		project.ID,
		project.Name,
		project.Description,
	)

	var created domain.Project
	if err := row.Scan(&created.ID, &created.Name, &created.Description, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return domain.Project{}, fmt.Errorf("failed to create project: %w", err)
	}
	return created, nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Project, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = $1`,
		id,
	)

	var project domain.Project
	if err := row.Scan(&project.ID, &project.Name, &project.Description, &project.CreatedAt, &project.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return domain.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (r *projectRepository) List(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []domain.Project{}
	for rows.Next() {
		var project domain.Project
		if scanErr := rows.Scan(&project.ID, &project.Name, &project.Description, &project.CreatedAt, &project.UpdatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan project: %w", scanErr)
		}
		projects = append(projects, project)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", rowsErr)
	}
	return projects, nil
}
