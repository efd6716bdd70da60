package ports

import (
	"context"

	"github.com/aretw0/aoide/pkg/domain"
)

// ProjectStore defines the interface for persisting IDE projects.
// Persisting process references is the caller's job; the coordinator never does it.
type ProjectStore interface {
	// Save persists the project under its ID.
	Save(ctx context.Context, project *domain.Project) error

	// Load retrieves a project by ID.
	// Returns domain.ErrProjectNotFound if the project does not exist.
	Load(ctx context.Context, projectID string) (*domain.Project, error)

	// Delete removes the project. Deleting a missing project is not an error.
	Delete(ctx context.Context, projectID string) error

	// List returns the IDs of all stored projects.
	List(ctx context.Context) ([]string, error)
}
