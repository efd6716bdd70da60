// Package hyperbeam implements ports.Transport against a single HyperBEAM
// compute node over HTTP.
package hyperbeam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

const (
	opFetchState      = "fetch_state"
	opSubmit          = "submit"
	opResolveOperator = "resolve_operator"

	// OperatorPath answers the node operator address as plain text.
	OperatorPath = "/~meta@1.0/info/address"
	pushSuffix   = "/push"

	headerAcceptBundle = "accept-bundle"
	maxErrorSnippet    = 256
)

// DefaultEndpoint is the local HyperBEAM node port.
const DefaultEndpoint = "http://localhost:8734"

// Client talks to one compute node.
type Client struct {
	endpoint string
	http     *http.Client
	signer   ports.Signer
	logger   *slog.Logger
	metrics  *Metrics
	proxy    string
	timeout  time.Duration
}

var _ ports.Transport = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (tests, custom transports).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithSigner authorizes submit calls.
func WithSigner(s ports.Signer) Option {
	return func(cl *Client) {
		cl.signer = s
	}
}

// WithLogger configures debug logging of round trips.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithMetrics records round trips on m.
func WithMetrics(m *Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// WithProxy routes requests through an http(s) or socks5 proxy. It replaces
// the transport of a client given with WithHTTPClient.
func WithProxy(addr string) Option {
	return func(cl *Client) {
		cl.proxy = addr
	}
}

// WithTimeout bounds every request, also on a client given with
// WithHTTPClient. Zero keeps the client's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// New creates a Client for the node at endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// A supplied client is copied so timeout and proxy never leak into it.
	if c.http == nil {
		c.http = &http.Client{}
	} else {
		shared := *c.http
		c.http = &shared
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	if c.proxy != "" {
		transport, err := proxyTransport(c.proxy)
		if err != nil {
			return nil, err
		}
		c.http.Transport = transport
	}
	return c, nil
}

// Endpoint returns the node base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// FetchState reads path and strips transport noise from the answer.
func (c *Client) FetchState(ctx context.Context, path string) (map[string]any, error) {
	url := c.url(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: opFetchState, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerAcceptBundle, "true")

	status, body, _, err := c.do(req, opFetchState)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &domain.TransportError{Op: opFetchState, URL: url, Status: status, Err: fmt.Errorf("decode state: %w", err)}
	}
	if raw == nil {
		return nil, &domain.TransportError{Op: opFetchState, URL: url, Status: status, Err: errors.New("state is not a JSON object")}
	}
	return Sanitize(raw), nil
}

// Submit pushes fields to the node. An empty process posts to the spawn endpoint.
func (c *Client) Submit(ctx context.Context, process domain.ProcessRef, fields map[string]string) (domain.RawResult, error) {
	path := pushSuffix
	if process != "" {
		path = "/" + string(process) + pushSuffix
	}
	url := c.url(path)

	payload, err := json.Marshal(fields)
	if err != nil {
		return domain.RawResult{}, &domain.TransportError{Op: opSubmit, URL: url, Err: fmt.Errorf("encode fields: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return domain.RawResult{}, &domain.TransportError{Op: opSubmit, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		if err := c.signer.SignRequest(ctx, req, payload); err != nil {
			return domain.RawResult{}, &domain.TransportError{Op: opSubmit, URL: url, Err: fmt.Errorf("sign request: %w", err)}
		}
	}

	status, body, header, err := c.do(req, opSubmit)
	if err != nil {
		return domain.RawResult{}, err
	}

	result := domain.RawResult{
		Status: status,
		Body:   string(body),
		Header: header,
	}
	var fieldsOut map[string]any
	if json.Unmarshal(body, &fieldsOut) == nil {
		result.Fields = fieldsOut
	}
	return result, nil
}

// ResolveOperator reads the operator address. It is not cached.
func (c *Client) ResolveOperator(ctx context.Context) (string, error) {
	url := c.url(OperatorPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &domain.TransportError{Op: opResolveOperator, URL: url, Err: err}
	}

	status, body, _, err := c.do(req, opResolveOperator)
	if err != nil {
		return "", err
	}
	addr := strings.TrimSpace(string(body))
	if addr == "" {
		return "", &domain.TransportError{Op: opResolveOperator, URL: url, Status: status, Err: errors.New("empty operator address")}
	}
	return addr, nil
}

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.endpoint + path
}

// do runs the request and turns network failures and non-2xx answers into
// TransportErrors.
func (c *Client) do(req *http.Request, op string) (int, []byte, http.Header, error) {
	start := time.Now()
	url := req.URL.String()

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(op, 0, err, time.Since(start))
		c.logger.Debug("node request failed", "op", op, "url", url, "err", err)
		return 0, nil, nil, &domain.TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.observe(op, resp.StatusCode, err, time.Since(start))
		return resp.StatusCode, nil, nil, &domain.TransportError{Op: op, URL: url, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("unexpected status %s: %s", resp.Status, snippet(body))
		c.metrics.observe(op, resp.StatusCode, err, time.Since(start))
		c.logger.Debug("node request rejected", "op", op, "url", url, "status", resp.StatusCode)
		return resp.StatusCode, nil, nil, &domain.TransportError{Op: op, URL: url, Status: resp.StatusCode, Err: err}
	}

	c.metrics.observe(op, resp.StatusCode, nil, time.Since(start))
	c.logger.Debug("node request", "op", op, "url", url, "status", resp.StatusCode, "bytes", len(body))
	return resp.StatusCode, body, resp.Header, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	return s
}
