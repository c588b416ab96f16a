package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a monitored AI project that owns datasets, drift runs and alerts.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProject creates a new project with immutable pattern
func NewProject(name, description string) Project {
	now := time.Now()
	return Project{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// WithDescription returns a new project with updated description
func (p Project) WithDescription(description string) Project {
	return Project{
		ID:          p.ID,
		Name:        p.Name,
		Description: description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   time.Now(),
	}
}

// WithName returns a new project with updated name
func (p Project) WithName(name string) Project {
	return Project{
		ID:          p.ID,
		Name:        name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   time.Now(),
	}
}
