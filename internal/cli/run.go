// Package cli drives notebook runs for the aoide command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/aoide"
	"github.com/aretw0/aoide/internal/presentation/tui"
	loamadapter "github.com/aretw0/aoide/pkg/adapters/loam"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/notebook"
	"github.com/aretw0/aoide/pkg/ports"
)

// RunOptions configures a notebook run.
type RunOptions struct {
	// Dir holds the notebook cells.
	Dir string
	// Process targets an existing process; empty spawns one with Spawn.
	Process domain.ProcessRef
	Spawn   domain.SpawnRequest
	// Cell runs a single cell instead of the whole notebook.
	Cell     string
	JSON     bool
	Continue bool
	Watch    bool
	// Pretty renders outputs with glamour.
	Pretty bool

	// Out receives cell results; Err receives progress messages.
	Out io.Writer
	Err io.Writer
}

func (o *RunOptions) defaults() {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
}

// Execute runs the notebook in opts.Dir against a process, once or on every
// change when opts.Watch is set.
func Execute(ctx context.Context, client *aoide.Client, opts RunOptions) error {
	opts.defaults()
	if opts.Watch && opts.Cell != "" {
		return errors.New("--watch and --cell cannot be used together")
	}

	loader, err := loamadapter.Open(opts.Dir)
	if err != nil {
		return err
	}

	process, err := ensureProcess(ctx, client, opts)
	if err != nil {
		return handleExecutionError(err)
	}

	if opts.Watch {
		return RunWatch(ctx, client, loader, process, opts)
	}
	return handleExecutionError(runOnce(ctx, client, loader, process, opts))
}

func ensureProcess(ctx context.Context, client *aoide.Client, opts RunOptions) (domain.ProcessRef, error) {
	if opts.Process != "" {
		return opts.Process, nil
	}
	res, err := client.Coordinator.Spawn(ctx, opts.Spawn)
	if err != nil {
		return "", fmt.Errorf("spawn notebook process: %w", err)
	}
	printSystemMessage(opts.Err, "Spawned process '%s' (%s).", res.Process, res.Readiness)
	return res.Process, nil
}

func newRunner(client *aoide.Client, loader ports.NotebookLoader, opts RunOptions) *notebook.Runner {
	var handler notebook.Handler
	if opts.JSON {
		handler = notebook.NewJSONHandler(opts.Out)
	} else {
		var renderer notebook.ContentRenderer
		if opts.Pretty {
			renderer = tui.NewCodeRenderer("")
		}
		handler = notebook.NewTextHandler(opts.Out, renderer)
	}
	return notebook.NewRunner(loader, client.Coordinator,
		notebook.WithHandler(handler),
		notebook.WithLogger(client.Logger),
		notebook.WithContinueOnError(opts.Continue),
	)
}

func runOnce(ctx context.Context, client *aoide.Client, loader ports.NotebookLoader, process domain.ProcessRef, opts RunOptions) error {
	r := newRunner(client, loader, opts)
	if opts.Cell != "" {
		_, err := r.RunCell(ctx, process, opts.Cell)
		return err
	}
	_, err := r.Run(ctx, process)
	return err
}
