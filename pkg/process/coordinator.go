// Package process drives the lifecycle of processes on the compute network:
// spawning them, confirming they are live, and relaying messages to them.
package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/eventlog"
	"github.com/aretw0/aoide/pkg/monitor"
	"github.com/aretw0/aoide/pkg/ports"
	"github.com/google/uuid"
)

// Mode selects when Spawn returns.
type Mode string

const (
	// ModeAwait returns once the process is live and initialized, or once the
	// readiness ceiling expires.
	ModeAwait Mode = "await"
	// ModeFireAndForget returns right after submission and confirms readiness
	// in the background.
	ModeFireAndForget Mode = "fire-and-forget"
)

// ParseMode parses a readiness mode name. Empty means ModeAwait.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAwait:
		return ModeAwait, nil
	case ModeFireAndForget, "fire_and_forget", "async":
		return ModeFireAndForget, nil
	default:
		return "", fmt.Errorf("unknown readiness mode %q", s)
	}
}

// Default timings of the spawn flow.
const (
	DefaultPollInterval  = time.Second
	DefaultReadyTimeout  = 5 * time.Second
	DefaultRegisterDelay = 100 * time.Millisecond
)

// Event labels recorded by the coordinator.
const (
	LabelSpawn    = "spawn"
	LabelReady    = "ready"
	LabelInit     = "init"
	LabelWrite    = "write"
	LabelEvaluate = "evaluate"
	LabelState    = "state"
)

// Coordinator composes the transport and the liveness monitor.
type Coordinator struct {
	transport ports.Transport
	recorder  *eventlog.Recorder
	logger    *slog.Logger

	mode          Mode
	pollInterval  time.Duration
	readyTimeout  time.Duration
	registerDelay time.Duration
	appVersion    string
	seed          func() (string, error)
	livenessPath  func(domain.ProcessRef) string

	background sync.WaitGroup
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithRecorder sets where lifecycle events are recorded.
func WithRecorder(r *eventlog.Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithLogger sets the logger handed to liveness monitors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMode selects the readiness mode.
func WithMode(m Mode) Option {
	return func(c *Coordinator) {
		c.mode = m
	}
}

// WithPollInterval sets the liveness poll period.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.pollInterval = d
	}
}

// WithReadyTimeout sets the readiness ceiling.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.readyTimeout = d
	}
}

// WithRegisterDelay sets the pause between submission and the first poll period.
func WithRegisterDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		c.registerDelay = d
	}
}

// WithAppVersion sets the App-Version tag attached to every spawn.
func WithAppVersion(v string) Option {
	return func(c *Coordinator) {
		c.appVersion = v
	}
}

// WithSeed replaces the random-seed generator.
func WithSeed(fn func() (string, error)) Option {
	return func(c *Coordinator) {
		c.seed = fn
	}
}

// WithLivenessPath replaces the path polled for a process liveness record.
func WithLivenessPath(fn func(domain.ProcessRef) string) Option {
	return func(c *Coordinator) {
		c.livenessPath = fn
	}
}

// LivenessPath is the default liveness read: the latest computed state.
func LivenessPath(ref domain.ProcessRef) string {
	return "/" + string(ref) + "~process@1.0/now"
}

// New creates a Coordinator over transport.
func New(transport ports.Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport:     transport,
		logger:        logging.NewNop(),
		mode:          ModeAwait,
		pollInterval:  DefaultPollInterval,
		readyTimeout:  DefaultReadyTimeout,
		registerDelay: DefaultRegisterDelay,
		appVersion:    "dev",
		seed:          newSeed,
		livenessPath:  LivenessPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Spawn creates a process and, depending on the mode, waits for it to be live.
// Once the node has accepted the spawn the error is always nil; a caller that
// gives up early gets the reference with Readiness pending or unconfirmed.
func (c *Coordinator) Spawn(ctx context.Context, req domain.SpawnRequest) (domain.SpawnResult, error) {
	elapsed := eventlog.Timer()
	fail := func(err error) (domain.SpawnResult, error) {
		c.recorder.Error(ctx, LabelSpawn, "", err, elapsed())
		return domain.SpawnResult{}, err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}

	operator, err := c.transport.ResolveOperator(ctx)
	if err != nil {
		return fail(err)
	}
	scheduler, err := c.transport.ResolveOperator(ctx)
	if err != nil {
		return fail(err)
	}
	seed, err := c.seed()
	if err != nil {
		return fail(fmt.Errorf("random seed: %w", err))
	}

	fields := req.Fields(domain.SpawnMeta{
		Authority:  operator + "," + domain.DefaultAuthority,
		Scheduler:  scheduler,
		RandomSeed: seed,
		CommonTags: c.commonTags(),
	})

	raw, err := c.transport.Submit(ctx, "", fields)
	if err != nil {
		return fail(err)
	}
	ref, ok := raw.ProcessRef()
	if !ok {
		return fail(&domain.SpawnError{Body: raw.Body, Err: domain.ErrNoProcessRef})
	}
	c.recorder.Success(ctx, LabelSpawn, ref, map[string]any{"module": fields[domain.KeyModule]}, elapsed())

	// From here on the process exists, so the caller always gets the reference.
	pending := domain.SpawnResult{Process: ref, Readiness: domain.ReadinessPending}
	if err := sleep(ctx, c.registerDelay); err != nil {
		pending.InitError = err.Error()
		c.recorder.Warn(ctx, LabelReady, ref, "abandoned before registration: "+err.Error())
		return pending, nil
	}

	if c.mode == ModeFireAndForget {
		bg := context.WithoutCancel(ctx)
		c.background.Add(1)
		go func() {
			defer c.background.Done()
			c.confirm(bg, ref)
		}()
		return pending, nil
	}

	return c.confirm(ctx, ref), nil
}

// Wait blocks until background readiness confirmations started in
// ModeFireAndForget have finished.
func (c *Coordinator) Wait() {
	c.background.Wait()
}

// confirm races the liveness monitor against the readiness ceiling and runs
// the init probe once the process is live. Probe failures are only recorded.
func (c *Coordinator) confirm(ctx context.Context, ref domain.ProcessRef) domain.SpawnResult {
	elapsed := eventlog.Timer()
	res := domain.SpawnResult{Process: ref, Readiness: domain.ReadinessUnconfirmed}

	ceiling, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	h, err := monitor.Start(ceiling, ref, monitor.Options{
		Interval: c.pollInterval,
		Check:    c.check,
		Logger:   c.logger,
		OnResult: func(record domain.LivenessRecord) {
			res.Readiness = domain.ReadinessReady
			c.recorder.Success(ctx, LabelReady, ref, nil, elapsed())

			probe := eventlog.Timer()
			if _, err := c.Evaluate(ctx, ref, domain.VersionProbeCode); err != nil {
				res.InitError = err.Error()
				c.recorder.Warn(ctx, LabelInit, ref, err.Error())
				return
			}
			res.Initialized = true
			c.recorder.Success(ctx, LabelInit, ref, nil, probe())
		},
	})
	if err != nil {
		res.InitError = err.Error()
		return res
	}
	<-h.Done()

	if res.Readiness != domain.ReadinessReady {
		c.recorder.Warn(ctx, LabelReady, ref, fmt.Sprintf("not confirmed after %s", c.readyTimeout))
	}
	return res
}

func (c *Coordinator) check(ctx context.Context, ref domain.ProcessRef) (domain.LivenessRecord, error) {
	state, err := c.transport.FetchState(ctx, c.livenessPath(ref))
	if err != nil {
		return nil, err
	}
	return domain.LivenessRecord(state), nil
}

// Write sends a message to ref and decodes the answer as a JSON object.
func (c *Coordinator) Write(ctx context.Context, ref domain.ProcessRef, tags domain.Tags, data string) (map[string]any, error) {
	return c.send(ctx, LabelWrite, domain.WriteRequest{Process: ref, Tags: tags, Data: data})
}

// Evaluate runs code inside ref.
func (c *Coordinator) Evaluate(ctx context.Context, ref domain.ProcessRef, code string) (map[string]any, error) {
	return c.send(ctx, LabelEvaluate, domain.EvalRequest(ref, code))
}

// Send submits an explicit write request.
func (c *Coordinator) Send(ctx context.Context, req domain.WriteRequest) (map[string]any, error) {
	return c.send(ctx, LabelWrite, req)
}

func (c *Coordinator) send(ctx context.Context, label string, req domain.WriteRequest) (map[string]any, error) {
	elapsed := eventlog.Timer()
	if err := req.Validate(); err != nil {
		c.recorder.Error(ctx, label, req.Process, err, elapsed())
		return nil, err
	}

	raw, err := c.transport.Submit(ctx, req.Process, req.Fields())
	if err != nil {
		c.recorder.Error(ctx, label, req.Process, err, elapsed())
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw.Body), &out); err != nil || out == nil {
		if err == nil {
			err = errors.New("result is not a JSON object")
		}
		werr := &domain.WriteError{Process: req.Process, Body: raw.Body, Err: err}
		c.recorder.Error(ctx, label, req.Process, werr, elapsed())
		return nil, werr
	}

	c.recorder.Success(ctx, label, req.Process, out, elapsed())
	return out, nil
}

// State reads path under ref, e.g. "now" or "compute/at-slot".
func (c *Coordinator) State(ctx context.Context, ref domain.ProcessRef, path string) (map[string]any, error) {
	elapsed := eventlog.Timer()
	if strings.TrimSpace(string(ref)) == "" {
		err := fmt.Errorf("%w: process reference required", domain.ErrInvalidRequest)
		c.recorder.Error(ctx, LabelState, ref, err, elapsed())
		return nil, err
	}

	full := "/" + string(ref)
	if p := strings.TrimPrefix(path, "/"); p != "" {
		full += "/" + p
	}
	state, err := c.transport.FetchState(ctx, full)
	if err != nil {
		c.recorder.Error(ctx, LabelState, ref, err, elapsed())
		return nil, err
	}
	c.recorder.Success(ctx, LabelState, ref, map[string]any{"path": full}, elapsed())
	return state, nil
}

func (c *Coordinator) commonTags() domain.Tags {
	return domain.Tags{
		{Name: domain.TagAppName, Value: domain.AppName},
		{Name: domain.TagAppVersion, Value: c.appVersion},
	}
}

func newSeed() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
