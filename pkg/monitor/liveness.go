// Package monitor polls a spawned process until it reports being live.
//
// A monitor issues one check per interval. The first check whose record
// satisfies domain.LivenessRecord.IsReady moves it to Ready and fires
// OnResult exactly once. Cancelling before that moves it to Cancelled and
// nothing is reported. There is no internal upper bound on the number of
// checks: callers stop the monitor by cancelling it or its context.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
)

// State is the monitor lifecycle position.
type State int

const (
	Polling State = iota
	Ready
	Cancelled
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Ready:
		return "ready"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// DefaultInterval is the poll period used when Options.Interval is zero.
const DefaultInterval = time.Second

// CheckFunc fetches the liveness record of ref.
type CheckFunc func(ctx context.Context, ref domain.ProcessRef) (domain.LivenessRecord, error)

// Options configures a monitor.
type Options struct {
	Interval time.Duration
	Check    CheckFunc
	// OnResult is called once, from the monitor goroutine, with the first ready record.
	OnResult func(record domain.LivenessRecord)
	Logger   *slog.Logger
}

// ErrNoCheck is returned by Start when Options.Check is nil.
var ErrNoCheck = errors.New("monitor: check function is required")

// Handle controls a running monitor.
type Handle struct {
	ref    domain.ProcessRef
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  State
	ticks  int
	record domain.LivenessRecord
}

// Start begins polling ref. The first check runs one interval after Start.
// Cancelling ctx has the same effect as calling Cancel.
func Start(ctx context.Context, ref domain.ProcessRef, opts Options) (*Handle, error) {
	if opts.Check == nil {
		return nil, ErrNoCheck
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ref:    ref,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.run(ctx, opts)
	return h, nil
}

// Cancel stops polling. It is idempotent and a no-op once Ready.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.state == Polling {
		h.state = Cancelled
	}
	h.mu.Unlock()
	h.cancel()
}

// Done is closed when the monitor reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// State returns the current lifecycle position.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Ticks returns how many checks were issued.
func (h *Handle) Ticks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ticks
}

// Record returns the ready record, or nil when not Ready.
func (h *Handle) Record() domain.LivenessRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.record
}

// Wait blocks until the monitor ends or ctx is done and returns the final state.
func (h *Handle) Wait(ctx context.Context) (State, error) {
	select {
	case <-h.done:
		return h.State(), nil
	case <-ctx.Done():
		return h.State(), ctx.Err()
	}
}

func (h *Handle) run(ctx context.Context, opts Options) {
	defer close(h.done)
	defer h.cancel()

	logger := opts.Logger.With("process", string(h.ref))
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.finish(Cancelled, nil)
			logger.Debug("liveness monitor stopped", "ticks", h.Ticks())
			return
		case <-ticker.C:
		}
		// select picks at random when the tick and the cancellation race.
		if ctx.Err() != nil {
			h.finish(Cancelled, nil)
			return
		}

		h.mu.Lock()
		if h.state != Polling {
			h.mu.Unlock()
			return
		}
		h.ticks++
		tick := h.ticks
		h.mu.Unlock()

		record, err := opts.Check(ctx, h.ref)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Warn("liveness check failed", "tick", tick, "err", err)
			continue
		}
		if !record.IsReady() {
			logger.Debug("process not ready", "tick", tick)
			continue
		}
		if ctx.Err() != nil {
			h.finish(Cancelled, nil)
			return
		}

		if !h.finish(Ready, record) {
			return
		}
		logger.Debug("process ready", "tick", tick)
		if opts.OnResult != nil {
			opts.OnResult(record)
		}
		return
	}
}

// finish moves a Polling monitor to s and reports whether this call did it.
func (h *Handle) finish(s State, record domain.LivenessRecord) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Polling {
		return false
	}
	h.state = s
	h.record = record
	return true
}
