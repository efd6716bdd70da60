// Package mcp exposes the process API as Model Context Protocol tools, so an
// assistant can spawn processes and evaluate code in them.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
)

// StatusURI is the resource that reports the node and wallet in use.
const StatusURI = "aoide://status"

// Processes is the process API exposed as tools. *process.Coordinator
// satisfies it.
type Processes interface {
	Spawn(ctx context.Context, req domain.SpawnRequest) (domain.SpawnResult, error)
	Send(ctx context.Context, req domain.WriteRequest) (map[string]any, error)
	Evaluate(ctx context.Context, ref domain.ProcessRef, code string) (map[string]any, error)
	State(ctx context.Context, ref domain.ProcessRef, path string) (map[string]any, error)
}

// SpawnArgs are the arguments of spawn_process.
type SpawnArgs struct {
	Module string            `json:"module,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Data   string            `json:"data,omitempty"`
}

// EvalArgs are the arguments of eval.
type EvalArgs struct {
	Process string `json:"process"`
	Code    string `json:"code"`
}

// WriteArgs are the arguments of write_message.
type WriteArgs struct {
	Process string            `json:"process"`
	Tags    map[string]string `json:"tags,omitempty"`
	Data    string            `json:"data,omitempty"`
}

// StateArgs are the arguments of read_state.
type StateArgs struct {
	Process string `json:"process"`
	Path    string `json:"path,omitempty"`
}

// Answer is the structured result of eval and write_message.
type Answer struct {
	Output string         `json:"output,omitempty" jsonschema_description:"Printable output of the process"`
	Error  string         `json:"error,omitempty" jsonschema_description:"Error reported by the process"`
	Raw    map[string]any `json:"raw" jsonschema_description:"Decoded answer of the node"`
}

// Server exposes a Processes implementation over MCP.
type Server struct {
	processes Processes
	status    func(ctx context.Context) any
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithStatus publishes the value returned by fn as the aoide://status resource.
func WithStatus(fn func(ctx context.Context) any) Option {
	return func(s *Server) { s.status = fn }
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance.
func NewServer(processes Processes, version string, opts ...Option) *Server {
	s := &Server{
		processes: processes,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("aoide-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	if s.status != nil {
		s.registerResources()
	}
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("spawn_process",
		mcp.WithDescription("Spawn a new process on the node and wait until it answers."),
		mcp.WithString("module", mcp.Description("Module reference (optional, defaults to the Lua module)")),
		mcp.WithObject("tags", mcp.Description("Extra tags as a name/value object (optional)")),
		mcp.WithString("data", mcp.Description("Initial payload (optional)")),
		mcp.WithOutputSchema[domain.SpawnResult](),
	), mcp.NewStructuredToolHandler(s.handleSpawn))

	s.mcpServer.AddTool(mcp.NewTool("eval",
		mcp.WithDescription("Evaluate Lua code inside a process."),
		mcp.WithString("process", mcp.Required(), mcp.Description("Process reference")),
		mcp.WithString("code", mcp.Required(), mcp.Description("Lua source")),
		mcp.WithOutputSchema[Answer](),
	), mcp.NewStructuredToolHandler(s.handleEval))

	s.mcpServer.AddTool(mcp.NewTool("write_message",
		mcp.WithDescription("Send a tagged message to a process."),
		mcp.WithString("process", mcp.Required(), mcp.Description("Process reference")),
		mcp.WithObject("tags", mcp.Description("Message tags as a name/value object, e.g. {\"Action\":\"Balance\"}")),
		mcp.WithString("data", mcp.Description("Message payload (optional)")),
		mcp.WithOutputSchema[Answer](),
	), mcp.NewStructuredToolHandler(s.handleWrite))

	s.mcpServer.AddTool(mcp.NewTool("read_state",
		mcp.WithDescription("Read a state path of a process, e.g. now or compute/balances."),
		mcp.WithString("process", mcp.Required(), mcp.Description("Process reference")),
		mcp.WithString("path", mcp.Description("State path (defaults to now)")),
	), s.handleState)
}

func (s *Server) handleSpawn(ctx context.Context, _ mcp.CallToolRequest, args SpawnArgs) (domain.SpawnResult, error) {
	res, err := s.processes.Spawn(ctx, domain.SpawnRequest{
		Module: args.Module,
		Tags:   tagsOf(args.Tags),
		Data:   args.Data,
	})
	if err != nil {
		return domain.SpawnResult{}, fmt.Errorf("spawn failed: %w", err)
	}
	return res, nil
}

func (s *Server) handleEval(ctx context.Context, _ mcp.CallToolRequest, args EvalArgs) (Answer, error) {
	if args.Process == "" || args.Code == "" {
		return Answer{}, fmt.Errorf("%w: process and code are required", domain.ErrInvalidRequest)
	}
	raw, err := s.processes.Evaluate(ctx, domain.ProcessRef(args.Process), args.Code)
	if err != nil {
		return Answer{}, fmt.Errorf("eval failed: %w", err)
	}
	return answerOf(raw), nil
}

func (s *Server) handleWrite(ctx context.Context, _ mcp.CallToolRequest, args WriteArgs) (Answer, error) {
	raw, err := s.processes.Send(ctx, domain.WriteRequest{
		Process: domain.ProcessRef(args.Process),
		Tags:    tagsOf(args.Tags),
		Data:    args.Data,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("write failed: %w", err)
	}
	return answerOf(raw), nil
}

func (s *Server) handleState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args StateArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Path == "" {
		args.Path = "now"
	}

	state, err := s.processes.State(ctx, domain.ProcessRef(args.Process), args.Path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read state failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(state)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StatusURI, "Node and wallet status",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.status(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to encode status: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StatusURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

// tagsOf converts a name/value object into tags sorted by name.
func tagsOf(m map[string]string) domain.Tags {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)

	tags := make(domain.Tags, 0, len(names))
	for _, name := range names {
		tags = append(tags, domain.Tag{Name: name, Value: m[name]})
	}
	return tags
}

func answerOf(raw map[string]any) Answer {
	return Answer{
		Output: domain.OutputText(raw),
		Error:  domain.ResultError(raw),
		Raw:    raw,
	}
}
