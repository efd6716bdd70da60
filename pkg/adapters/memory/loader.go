package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/aoide/pkg/domain"
)

// Loader implements ports.NotebookLoader over cells held in memory.
type Loader struct {
	cells map[string]domain.Cell
}

// NewLoader creates a Loader from code keyed by cell ID. Cells run in ID
// order.
func NewLoader(code map[string]string) *Loader {
	cells := make(map[string]domain.Cell, len(code))
	for id, c := range code {
		cells[id] = domain.Cell{ID: id, Code: c}
	}
	return &Loader{cells: cells}
}

// NewFromCells creates a Loader from domain cells.
func NewFromCells(cells ...domain.Cell) (*Loader, error) {
	m := make(map[string]domain.Cell, len(cells))
	for _, c := range cells {
		if c.ID == "" {
			return nil, fmt.Errorf("cell missing ID")
		}
		if _, dup := m[c.ID]; dup {
			return nil, fmt.Errorf("duplicate cell ID: %s", c.ID)
		}
		m[c.ID] = c
	}
	return &Loader{cells: m}, nil
}

// Cell retrieves one cell by ID.
func (l *Loader) Cell(_ context.Context, id string) (domain.Cell, error) {
	c, ok := l.cells[id]
	if !ok {
		return domain.Cell{}, fmt.Errorf("%w: %s", domain.ErrCellNotFound, id)
	}
	return c, nil
}

// Cells returns all cells in run order.
func (l *Loader) Cells(_ context.Context) ([]domain.Cell, error) {
	out := make([]domain.Cell, 0, len(l.cells))
	for _, c := range l.cells {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Cell) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
