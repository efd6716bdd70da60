package aoide

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/aoide/internal/config"
	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/adapters/hyperbeam"
	"github.com/aretw0/aoide/pkg/eventlog"
	"github.com/aretw0/aoide/pkg/ports"
	"github.com/aretw0/aoide/pkg/process"
	"github.com/aretw0/aoide/pkg/wallet"
	"github.com/aretw0/aoide/pkg/workspace"
)

// Client wires the configured collaborators together.
type Client struct {
	Config      config.Config
	Logger      *slog.Logger
	Wallet      *wallet.Wallet
	Transport   *hyperbeam.Client
	Coordinator *process.Coordinator
	Recorder    *eventlog.Recorder
	Projects    *workspace.Manager
	Registry    *prometheus.Registry

	sinks   []ports.EventSink
	store   ports.ProjectStore
	closers []io.Closer
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.Logger = logger
	}
}

// WithSink subscribes an extra event sink, e.g. an SSE stream.
func WithSink(sink ports.EventSink) Option {
	return func(c *Client) {
		c.sinks = append(c.sinks, sink)
	}
}

// WithStore uses store instead of the backend named in the config.
func WithStore(store ports.ProjectStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// New builds a Client from cfg.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	c := &Client{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.Logger == nil {
		logger, closer, err := newLogger(cfg)
		if err != nil {
			return nil, err
		}
		c.Logger = logger
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	if cfg.Wallet != "" {
		w, err := wallet.Load(cfg.Wallet)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("load wallet: %w", err)
		}
		c.Wallet = w
	}

	transportOpts := []hyperbeam.Option{
		hyperbeam.WithLogger(c.Logger),
		hyperbeam.WithMetrics(hyperbeam.NewMetrics(c.Registry)),
		hyperbeam.WithTimeout(cfg.RequestTimeout),
		hyperbeam.WithProxy(cfg.Proxy),
	}
	if c.Wallet != nil {
		transportOpts = append(transportOpts, hyperbeam.WithSigner(c.Wallet))
	}
	transport, err := hyperbeam.New(cfg.EndpointURL, transportOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Transport = transport

	mode, err := process.ParseMode(cfg.Readiness)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Recorder = eventlog.New(eventlog.WithLogger(c.Logger))
	for _, sink := range c.sinks {
		c.Recorder.Subscribe(sink)
	}

	c.Coordinator = process.New(transport,
		process.WithRecorder(c.Recorder),
		process.WithLogger(c.Logger),
		process.WithMode(mode),
		process.WithPollInterval(cfg.PollInterval),
		process.WithReadyTimeout(cfg.ReadyTimeout),
		process.WithRegisterDelay(cfg.RegisterDelay),
		process.WithAppVersion(Version),
	)

	if c.store == nil {
		opened, err := OpenStore(cfg, c.Logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.store = opened.Store
		c.closers = append(c.closers, opened.Closers...)
		if opened.Sink != nil {
			c.Recorder.Subscribe(opened.Sink)
		}
		c.Projects = workspace.NewManager(opened.Store,
			workspace.WithLocker(opened.Locker),
			workspace.WithLogger(c.Logger),
		)
	} else {
		c.Projects = workspace.NewManager(c.store, workspace.WithLogger(c.Logger))
	}

	return c, nil
}

// Status reports what the status bar shows. An operator resolution failure
// is reported, not returned.
type Status struct {
	Wallet        string `json:"wallet,omitempty"`
	Endpoint      string `json:"endpoint"`
	Gateway       string `json:"gateway,omitempty"`
	Operator      string `json:"operator,omitempty"`
	OperatorError string `json:"operator_error,omitempty"`
	Version       string `json:"version"`
}

// Status resolves the operator and gathers the rest from the config.
func (c *Client) Status(ctx context.Context) Status {
	st := Status{
		Endpoint: c.Transport.Endpoint(),
		Gateway:  c.Config.GatewayURL,
		Version:  Version,
	}
	if c.Wallet != nil {
		st.Wallet = c.Wallet.Address()
	}
	op, err := c.Transport.ResolveOperator(ctx)
	if err != nil {
		st.OperatorError = err.Error()
	} else {
		st.Operator = op
	}
	return st
}

// Close waits for background spawn work and releases stores and log files.
func (c *Client) Close() error {
	if c.Coordinator != nil {
		c.Coordinator.Wait()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func newLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.LogFile == "" {
		return logging.New(level), nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logging.NewFanout(level, f), f, nil
}
