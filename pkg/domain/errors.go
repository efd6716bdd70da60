package domain

import (
	"errors"
	"fmt"
)

// ErrNoProcessRef is returned when a spawn answer carries no process reference.
var ErrNoProcessRef = errors.New("no process reference in spawn result")

// ErrInvalidRequest is returned when a request fails boundary validation.
var ErrInvalidRequest = errors.New("invalid request")

// ErrProjectNotFound is returned when a project ID cannot be found in the store.
var ErrProjectNotFound = errors.New("project not found")

// TransportError reports a network or decode failure talking to the node.
type TransportError struct {
	Op     string // fetch_state, submit, resolve_operator
	URL    string
	Status int // HTTP status, 0 when no response was read
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport %s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SpawnError reports a spawn whose submit succeeded but produced no process.
type SpawnError struct {
	Body string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn failed: %v", e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WriteError reports a write whose answer could not be decoded.
type WriteError struct {
	Process ProcessRef
	Body    string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to %s: unreadable result: %v", e.Process, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrCellNotFound is returned when a notebook has no cell with the given ID.
var ErrCellNotFound = errors.New("cell not found")
