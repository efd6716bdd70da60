// Package eventlog records what the IDE does as structured, leveled events.
//
// Every event goes to a slog.Logger and is forwarded to any subscribed
// ports.EventSink (the SSE stream of the web shell, the SQLite history).
// Recording never fails. Sinks run synchronously on the caller's goroutine,
// in subscription order, so a sink that does slow work delays the operation
// being recorded.
package eventlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
	"github.com/google/uuid"
)

// Recorder fans log events out to a logger and a set of sinks.
type Recorder struct {
	logger *slog.Logger

	mu    sync.RWMutex
	sinks []ports.EventSink
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets the logger events are written to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithSink subscribes a sink at construction time.
func WithSink(sink ports.EventSink) Option {
	return func(r *Recorder) {
		r.sinks = append(r.sinks, sink)
	}
}

// New creates a Recorder. Without a logger it only feeds its sinks.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe adds a sink.
func (r *Recorder) Subscribe(sink ports.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// Record stamps and emits an event. It returns once every sink has seen it.
func (r *Recorder) Record(ctx context.Context, event domain.LogEvent) {
	if r == nil {
		return
	}
	if event.ID == "" {
		event.ID = newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	attrs := []any{"kind", string(event.Kind)}
	if event.Process != "" {
		attrs = append(attrs, "process", string(event.Process))
	}
	if event.Payload != nil {
		attrs = append(attrs, "payload", event.Payload)
	}
	if event.Duration > 0 {
		attrs = append(attrs, "duration", event.Duration)
	}
	r.logger.Log(ctx, levelOf(event.Kind), event.Label, attrs...)

	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()
	for _, s := range sinks {
		s.Record(ctx, event)
	}
}

// Info records an informational event.
func (r *Recorder) Info(ctx context.Context, label string, process domain.ProcessRef, payload any) {
	r.Record(ctx, domain.LogEvent{Kind: domain.EventInfo, Label: label, Process: process, Payload: payload})
}

// Success records a completed operation together with its duration.
func (r *Recorder) Success(ctx context.Context, label string, process domain.ProcessRef, payload any, d time.Duration) {
	r.Record(ctx, domain.LogEvent{Kind: domain.EventSuccess, Label: label, Process: process, Payload: payload, Duration: d})
}

// Warn records a swallowed failure.
func (r *Recorder) Warn(ctx context.Context, label string, process domain.ProcessRef, payload any) {
	r.Record(ctx, domain.LogEvent{Kind: domain.EventWarn, Label: label, Process: process, Payload: payload})
}

// Error records a failure that reached the caller.
func (r *Recorder) Error(ctx context.Context, label string, process domain.ProcessRef, err error, d time.Duration) {
	var payload any
	if err != nil {
		payload = err.Error()
	}
	r.Record(ctx, domain.LogEvent{Kind: domain.EventError, Label: label, Process: process, Payload: payload, Duration: d})
}

// Timer starts measuring an operation; call the returned func to get its duration.
func Timer() func() time.Duration {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}

func levelOf(kind domain.EventKind) slog.Level {
	switch kind {
	case domain.EventWarn:
		return slog.LevelWarn
	case domain.EventError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
