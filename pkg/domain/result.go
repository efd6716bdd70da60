package domain

import (
	"net/http"
	"strings"
)

// ProcessRef is the opaque identifier the network issues on spawn.
type ProcessRef string

func (p ProcessRef) String() string { return string(p) }

// RawResult is the decoded answer of a push call.
type RawResult struct {
	Status int
	// Fields holds the JSON object of the body, when the body is one.
	Fields map[string]any
	// Body is the raw response text.
	Body   string
	Header http.Header
}

// ProcessRef extracts the process reference from a spawn answer.
// The body field wins over the response header.
func (r RawResult) ProcessRef() (ProcessRef, bool) {
	if v, ok := r.Fields[KeyProcess].(string); ok && strings.TrimSpace(v) != "" {
		return ProcessRef(v), true
	}
	if r.Header != nil {
		if v := r.Header.Get(KeyProcess); strings.TrimSpace(v) != "" {
			return ProcessRef(v), true
		}
	}
	return "", false
}

// Readiness describes what is known about a process after spawn.
type Readiness string

const (
	// ReadinessPending: spawn returned before liveness was observed.
	ReadinessPending Readiness = "pending"
	// ReadinessReady: the liveness monitor observed the process.
	ReadinessReady Readiness = "ready"
	// ReadinessUnconfirmed: the readiness ceiling expired first.
	ReadinessUnconfirmed Readiness = "unconfirmed"
)

// SpawnResult is returned by a spawn.
type SpawnResult struct {
	Process   ProcessRef `json:"process"`
	Readiness Readiness  `json:"readiness"`
	// Initialized reports whether the post-spawn probe answered.
	Initialized bool   `json:"initialized"`
	InitError   string `json:"init_error,omitempty"`
}
