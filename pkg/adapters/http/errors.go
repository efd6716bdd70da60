package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/editor"
)

type errorBody struct {
	Error string `json:"error"`
	Body  string `json:"body,omitempty"`
}

// statusOf maps an error to an HTTP status and the raw node answer, if any.
func statusOf(err error) (int, string) {
	var (
		transportErr *domain.TransportError
		spawnErr     *domain.SpawnError
		writeErr     *domain.WriteError
	)
	switch {
	case errors.As(err, &spawnErr):
		return http.StatusBadGateway, spawnErr.Body
	case errors.As(err, &writeErr):
		return http.StatusBadGateway, writeErr.Body
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, ""
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, ""
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, editor.ErrGroupNotFound),
		errors.Is(err, editor.ErrInstanceNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, editor.ErrInstanceExists):
		return http.StatusConflict, ""
	}
	return http.StatusInternalServerError, ""
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, body := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "status", status, "err", err)
	} else {
		s.Logger.Debug("request rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Body: body})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
