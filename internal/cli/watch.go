package cli

import (
	"context"
	"time"

	"github.com/aretw0/aoide"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

// settleDelay lets editors finish writing before a rerun.
const settleDelay = 100 * time.Millisecond

// WatchableLoader is a loader that reports changed cell IDs.
type WatchableLoader interface {
	ports.NotebookLoader
	ports.Watchable
}

// RunWatch reruns the notebook against the same process on every change
// until ctx ends. Cell failures are reported and do not stop the loop.
func RunWatch(ctx context.Context, client *aoide.Client, loader WatchableLoader, process domain.ProcessRef, opts RunOptions) error {
	opts.defaults()
	changes, err := loader.Watch(ctx)
	if err != nil {
		return err
	}

	for {
		err := runOnce(ctx, client, loader, process, opts)
		if isInterrupted(err) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			client.Logger.Warn("notebook run failed", "process", string(process), "err", err)
		}
		printSystemMessage(opts.Err, "Waiting for changes...")

		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-changes:
			if !ok {
				return nil
			}
			printSystemMessage(opts.Err, "Change detected in '%s'.", id)
		}
		if !drain(ctx, changes, settleDelay) {
			return nil
		}
	}
}

// drain swallows the burst of events one save produces. It returns false
// when ctx ended or the channel closed.
func drain(ctx context.Context, changes <-chan string, quiet time.Duration) bool {
	t := time.NewTimer(quiet)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-changes:
			if !ok {
				return false
			}
			if !t.Stop() {
				<-t.C
			}
			t.Reset(quiet)
		case <-t.C:
			return true
		}
	}
}
