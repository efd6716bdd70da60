package loam

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/loam"

	"github.com/aretw0/aoide/pkg/domain"
)

// Loader adapts a Loam repository of markdown cells to ports.NotebookLoader.
// The frontmatter carries CellMetadata; the body is the Lua code.
type Loader struct {
	Repo *loam.TypedRepository[CellMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[CellMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps frontmatter numbers as json.Number across formats.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[CellMetadata](repo)), nil
}

// Cell retrieves one cell. Loam resolves "intro" to intro.md.
func (l *Loader) Cell(ctx context.Context, id string) (domain.Cell, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return domain.Cell{}, fmt.Errorf("%w: %s: %v", domain.ErrCellNotFound, id, err)
	}
	return toCell(doc.ID, doc.Data, doc.Content)
}

// Cells lists every cell in run order.
func (l *Loader) Cells(ctx context.Context) ([]domain.Cell, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	cells := make([]domain.Cell, 0, len(docs))

	for _, doc := range docs {
		cell, err := toCell(doc.ID, doc.Data, doc.Content)
		if err != nil {
			return nil, err
		}

		// doc.ID is the path relative to the repository root.
		if existingPath, ok := seen[cell.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", cell.ID, existingPath, doc.ID)
		}
		seen[cell.ID] = doc.ID
		cells = append(cells, cell)
	}

	slices.SortStableFunc(cells, func(a, b domain.Cell) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return cells, nil
}

func toCell(docID string, meta CellMetadata, content string) (domain.Cell, error) {
	// Use the ID from metadata if available, otherwise filename ID
	rawID := meta.ID
	if rawID == "" {
		rawID = docID
	}

	cell := domain.Cell{
		ID:    trimExtension(rawID),
		Title: meta.Title,
		Order: meta.Order,
		Code:  strings.TrimSpace(content),
		Skip:  meta.Skip,
	}

	if meta.Timeout != "" {
		d, err := time.ParseDuration(meta.Timeout)
		if err != nil {
			return domain.Cell{}, fmt.Errorf("cell %s: invalid timeout %q: %w", cell.ID, meta.Timeout, err)
		}
		cell.Timeout = d
	}

	names := make([]string, 0, len(meta.Tags))
	for name := range meta.Tags {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		cell.Tags = append(cell.Tags, domain.Tag{Name: name, Value: meta.Tags[name]})
	}
	if err := cell.Tags.Validate(); err != nil {
		return domain.Cell{}, fmt.Errorf("cell %s: %w", cell.ID, err)
	}
	return cell, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
