// Package http serves the aoide backend to the web shell: process calls,
// projects, editor groups, a status bar feed and a server-sent event stream.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/editor"
	"github.com/aretw0/aoide/pkg/workspace"
)

// Processes is the process API the backend relays. *process.Coordinator
// satisfies it.
type Processes interface {
	Spawn(ctx context.Context, req domain.SpawnRequest) (domain.SpawnResult, error)
	Send(ctx context.Context, req domain.WriteRequest) (map[string]any, error)
	Evaluate(ctx context.Context, ref domain.ProcessRef, code string) (map[string]any, error)
	State(ctx context.Context, ref domain.ProcessRef, path string) (map[string]any, error)
}

// Status feeds the status bar.
type Status struct {
	Wallet        string `json:"wallet,omitempty"`
	Endpoint      string `json:"endpoint"`
	Gateway       string `json:"gateway,omitempty"`
	Operator      string `json:"operator,omitempty"`
	OperatorError string `json:"operator_error,omitempty"`
	Version       string `json:"version"`
}

// StatusFunc computes the current Status.
type StatusFunc func(ctx context.Context) Status

// Server holds the collaborators of the HTTP handlers.
type Server struct {
	Processes Processes
	Projects  *workspace.Manager
	Editors   *editor.Registry
	Streams   *StreamManager
	Status    StatusFunc
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithProjects enables the /projects routes.
func WithProjects(m *workspace.Manager) Option {
	return func(s *Server) { s.Projects = m }
}

// WithEditors serves the given registry instead of a private one.
func WithEditors(r *editor.Registry) Option {
	return func(s *Server) { s.Editors = r }
}

// WithStreams shares a StreamManager, typically one subscribed to a Recorder.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithStatus sets the status bar source.
func WithStatus(fn StatusFunc) Option {
	return func(s *Server) { s.Status = fn }
}

// WithGatherer exposes the given registry at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.Gatherer = g }
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.Logger = logger }
}

// NewServer creates a Server relaying to processes.
func NewServer(processes Processes, opts ...Option) *Server {
	s := &Server{
		Processes: processes,
		Editors:   editor.NewRegistry(),
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}
	if s.Status == nil {
		s.Status = func(context.Context) Status { return Status{Version: "dev"} }
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/status", s.getStatus)
	r.Get("/openapi.yaml", s.getSpec)
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/events", s.subscribeEvents)

	r.Route("/processes", func(r chi.Router) {
		r.Post("/", s.spawn)
		r.Post("/{ref}/eval", s.eval)
		r.Post("/{ref}/messages", s.write)
		r.Get("/{ref}/state/*", s.state)
	})

	if s.Projects != nil {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.listProjects)
			r.Get("/{id}", s.getProject)
			r.Put("/{id}", s.saveProject)
			r.Delete("/{id}", s.deleteProject)
			r.Post("/{id}/deploy", s.deployProject)
		})
	}

	r.Route("/editor/groups", func(r chi.Router) {
		r.Get("/", s.listGroups)
		r.Delete("/{group}", s.disposeGroup)
		r.Post("/{group}/instances", s.registerEditor)
		r.Delete("/{group}/instances/{instance}", s.unregisterEditor)
		r.Put("/{group}/active", s.setActiveEditor)
		r.Put("/{group}/vim", s.setVimMode)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <title>aoide API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui' });
    };
</script>
</body>
</html>
`

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Status(r.Context()))
}

func (s *Server) getSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(rawSpec)
}

type spawnBody struct {
	domain.SpawnRequest
	Project string `json:"project,omitempty"`
}

func (s *Server) spawn(w http.ResponseWriter, r *http.Request) {
	var body spawnBody
	if !s.decode(w, r, &body) {
		return
	}

	if body.Project != "" && s.Projects != nil {
		project, err := s.Projects.EnsureProcess(r.Context(), body.Project, s.Processes, body.SpawnRequest)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, domain.SpawnResult{
			Process:   project.Process,
			Readiness: project.Readiness,
		})
		return
	}

	res, err := s.Processes.Spawn(r.Context(), body.SpawnRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) eval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		s.writeError(w, fmt.Errorf("%w: code required", domain.ErrInvalidRequest))
		return
	}

	res, err := s.Processes.Evaluate(r.Context(), processRef(r), body.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tags domain.Tags `json:"tags"`
		Data string      `json:"data"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	res, err := s.Processes.Send(r.Context(), domain.WriteRequest{
		Process: processRef(r),
		Tags:    body.Tags,
		Data:    body.Data,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	res, err := s.Processes.State(r.Context(), processRef(r), chi.URLParam(r, "*"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func processRef(r *http.Request) domain.ProcessRef {
	return domain.ProcessRef(chi.URLParam(r, "ref"))
}

// subscribeEvents streams log events. ?process= narrows the stream to one
// process.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	process := r.URL.Query().Get("process")
	ch, cancel := s.Streams.Subscribe(process)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Debug("SSE: client subscribed", "process", process)

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE: client disconnected", "process", process)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Projects.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.Projects.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, project)
}

func (s *Server) saveProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   *string `json:"name"`
		Source *string `json:"source"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")

	var project *domain.Project
	err := s.Projects.WithLock(r.Context(), id, func(ctx context.Context) error {
		var err error
		project, err = s.Projects.Store().Load(ctx, id)
		if errors.Is(err, domain.ErrProjectNotFound) {
			project, err = domain.NewProject(id, id), nil
		}
		if err != nil {
			return err
		}
		if body.Name != nil {
			project.Name = *body.Name
		}
		if body.Source != nil {
			project.Source = *body.Source
		}
		project.UpdatedAt = time.Now().UTC()
		return s.Projects.Store().Save(ctx, project)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deployProject attaches a process to the project when it has none, then
// evaluates the saved source in it.
func (s *Server) deployProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Projects.Load(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	project, err := s.Projects.EnsureProcess(r.Context(), id, s.Processes, domain.SpawnRequest{})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := struct {
		Project *domain.Project `json:"project"`
		Result  map[string]any  `json:"result,omitempty"`
	}{Project: project}

	if strings.TrimSpace(project.Source) != "" {
		resp.Result, err = s.Processes.Evaluate(r.Context(), project.Process, project.Source)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Editors.Groups())
}

func (s *Server) disposeGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.Editors.Dispose(chi.URLParam(r, "group")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type instanceBody struct {
	ID string `json:"id"`
}

func (s *Server) registerEditor(w http.ResponseWriter, r *http.Request) {
	var body instanceBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.ID == "" {
		s.writeError(w, fmt.Errorf("%w: instance id required", domain.ErrInvalidRequest))
		return
	}
	group := chi.URLParam(r, "group")
	if err := s.Editors.Register(group, editor.NewPane(body.ID)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeGroup(w, http.StatusCreated, group)
}

func (s *Server) unregisterEditor(w http.ResponseWriter, r *http.Request) {
	if err := s.Editors.Unregister(chi.URLParam(r, "group"), chi.URLParam(r, "instance")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setActiveEditor(w http.ResponseWriter, r *http.Request) {
	var body instanceBody
	if !s.decode(w, r, &body) {
		return
	}
	group := chi.URLParam(r, "group")
	if err := s.Editors.SetActive(group, body.ID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeGroup(w, http.StatusOK, group)
}

func (s *Server) setVimMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On *bool `json:"on"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.On == nil {
		s.writeError(w, fmt.Errorf("%w: on required", domain.ErrInvalidRequest))
		return
	}
	group := chi.URLParam(r, "group")
	if err := s.Editors.SetVimMode(group, *body.On); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeGroup(w, http.StatusOK, group)
}

func (s *Server) writeGroup(w http.ResponseWriter, status int, id string) {
	for _, g := range s.Editors.Groups() {
		if g.ID == id {
			s.writeJSON(w, status, g)
			return
		}
	}
	s.writeError(w, fmt.Errorf("%w: %s", editor.ErrGroupNotFound, id))
}
