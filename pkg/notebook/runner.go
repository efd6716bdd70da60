package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

// ErrCellFailed is returned when a process reports an error for a cell.
var ErrCellFailed = errors.New("cell failed")

// Sender delivers a write to a process. *process.Coordinator satisfies it.
type Sender interface {
	Send(ctx context.Context, req domain.WriteRequest) (map[string]any, error)
}

// Result is the outcome of one cell.
type Result struct {
	Cell     domain.Cell    `json:"cell"`
	Output   string         `json:"output,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
	Err      error          `json:"-"`
	Skipped  bool           `json:"skipped,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Runner evaluates notebooks.
type Runner struct {
	loader      ports.NotebookLoader
	sender      Sender
	handler     Handler
	logger      *slog.Logger
	stopOnError bool
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures how results are reported.
func WithHandler(h Handler) Option {
	return func(r *Runner) {
		r.handler = h
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithContinueOnError keeps evaluating after a failed cell.
func WithContinueOnError(cont bool) Option {
	return func(r *Runner) {
		r.stopOnError = !cont
	}
}

// NewRunner creates a Runner. Results are discarded unless a Handler is set.
func NewRunner(loader ports.NotebookLoader, sender Sender, opts ...Option) *Runner {
	r := &Runner{
		loader:      loader,
		sender:      sender,
		handler:     discard{},
		logger:      logging.NewNop(),
		stopOnError: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates every cell against process. It stops at the first failure
// unless WithContinueOnError is set, and always returns the results gathered
// so far.
func (r *Runner) Run(ctx context.Context, process domain.ProcessRef) ([]Result, error) {
	cells, err := r.loader.Cells(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notebook: %w", err)
	}
	return r.run(ctx, process, cells)
}

// RunCell evaluates a single cell by ID.
func (r *Runner) RunCell(ctx context.Context, process domain.ProcessRef, id string) (Result, error) {
	cell, err := r.loader.Cell(ctx, id)
	if err != nil {
		return Result{}, err
	}
	results, err := r.run(ctx, process, []domain.Cell{cell})
	if len(results) == 0 {
		return Result{}, err
	}
	return results[0], err
}

func (r *Runner) run(ctx context.Context, process domain.ProcessRef, cells []domain.Cell) ([]Result, error) {
	results := make([]Result, 0, len(cells))
	var errs []error

	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := r.eval(ctx, process, cell)
		results = append(results, res)
		if err := r.handler.Cell(res); err != nil {
			return results, fmt.Errorf("output error: %w", err)
		}

		if res.Err != nil {
			errs = append(errs, res.Err)
			if r.stopOnError {
				break
			}
		}
	}

	if err := r.handler.Done(results); err != nil {
		return results, fmt.Errorf("output error: %w", err)
	}
	return results, errors.Join(errs...)
}

func (r *Runner) eval(ctx context.Context, process domain.ProcessRef, cell domain.Cell) Result {
	res := Result{Cell: cell}
	if cell.Skip {
		res.Skipped = true
		r.logger.Debug("cell skipped", "cell", cell.ID)
		return res
	}

	if cell.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cell.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := r.sender.Send(ctx, cell.Request(process))
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("cell %s: %w", cell.ID, err)
		r.logger.Warn("cell eval failed", "cell", cell.ID, "err", err)
		return res
	}

	res.Raw = raw
	res.Output = domain.OutputText(raw)
	if msg := domain.ResultError(raw); msg != "" {
		res.Err = fmt.Errorf("%w: %s: %s", ErrCellFailed, cell.ID, msg)
	}
	r.logger.Debug("cell evaluated", "cell", cell.ID, "duration", res.Duration)
	return res
}
