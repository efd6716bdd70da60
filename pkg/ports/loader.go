package ports

import (
	"context"

	"github.com/aretw0/aoide/pkg/domain"
)

// NotebookLoader retrieves the cells of a notebook.
// This allows the storage layer (Loam, Memory) to be decoupled from the runner.
type NotebookLoader interface {
	// Cell retrieves one cell by ID.
	// Returns domain.ErrCellNotFound if the notebook has no such cell.
	Cell(ctx context.Context, id string) (domain.Cell, error)

	// Cells returns every cell sorted by Order, then ID.
	Cells(ctx context.Context) ([]domain.Cell, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel that receives the ID of each changed cell.
	Watch(ctx context.Context) (<-chan string, error)
}
