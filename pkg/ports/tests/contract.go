// Package tests holds reusable contract suites for port implementations.
package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

// NotebookLoaderContractTest verifies that an adapter complies with
// ports.NotebookLoader. want lists the cells the loader was seeded with, in
// run order.
func NotebookLoaderContractTest(t *testing.T, loader ports.NotebookLoader, want []domain.Cell) {
	t.Helper()
	ctx := context.Background()

	t.Run("Cell_Success", func(t *testing.T) {
		for _, expected := range want {
			cell, err := loader.Cell(ctx, expected.ID)
			if err != nil {
				t.Fatalf("unexpected error getting cell %s: %v", expected.ID, err)
			}
			if cell.Code != expected.Code {
				t.Errorf("code mismatch for %s. got %q, want %q", expected.ID, cell.Code, expected.Code)
			}
			if cell.Order != expected.Order {
				t.Errorf("order mismatch for %s. got %d, want %d", expected.ID, cell.Order, expected.Order)
			}
		}
	})

	t.Run("Cell_NotFound", func(t *testing.T) {
		_, err := loader.Cell(ctx, "non-existent-cell")
		if !errors.Is(err, domain.ErrCellNotFound) {
			t.Errorf("expected ErrCellNotFound, got %v", err)
		}
	})

	t.Run("Cells_Ordered", func(t *testing.T) {
		cells, err := loader.Cells(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing cells: %v", err)
		}
		if len(cells) != len(want) {
			t.Fatalf("expected %d cells, got %d", len(want), len(cells))
		}
		for i := range want {
			if cells[i].ID != want[i].ID {
				t.Errorf("cell %d: got %s, want %s", i, cells[i].ID, want[i].ID)
			}
		}
	})
}
