package domain

import (
	"time"
)

// EventKind defines the category of a log event.
type EventKind string

const (
	EventInfo    EventKind = "info"
	EventSuccess EventKind = "success"
	EventWarn    EventKind = "warn"
	EventError   EventKind = "error"
)

// LogEvent is a write-once record of something the IDE did.
// It is fire-and-forget: nothing reads it back programmatically.
type LogEvent struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Kind      EventKind     `json:"kind"`
	Label     string        `json:"label"`
	Process   ProcessRef    `json:"process,omitempty"`
	Payload   any           `json:"payload,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}
