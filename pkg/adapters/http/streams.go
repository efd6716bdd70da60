package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
)

// allProcesses is the subscription key that receives every event.
const allProcesses = ""

// StreamManager fans log events out to SSE subscribers. It implements
// ports.EventSink so a Recorder can feed it directly.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // process -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates a StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for the events of process, or of every
// process when process is empty. The returned func unsubscribes.
func (sm *StreamManager) Subscribe(process string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[process]; !ok {
		sm.subscribers[process] = make(map[chan<- string]struct{})
	}
	sm.subscribers[process][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[process]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, process)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of process and to the
// subscribers of every process.
func (sm *StreamManager) Broadcast(process string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sm.send(process, msg)
	if process != allProcesses {
		sm.send(allProcesses, msg)
	}
}

func (sm *StreamManager) send(key, msg string) {
	for ch := range sm.subscribers[key] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "process", key)
		}
	}
}

// Record implements ports.EventSink.
func (sm *StreamManager) Record(_ context.Context, event domain.LogEvent) {
	b, err := json.Marshal(event)
	if err != nil {
		sm.logger.Warn("SSE: event not encodable", "label", event.Label, "err", err)
		return
	}
	sm.Broadcast(string(event.Process), string(b))
}
