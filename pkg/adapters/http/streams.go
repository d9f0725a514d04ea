package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/pkg/domain"
)

// StreamManager fans lifecycle events out to SSE subscribers of a session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan string]struct{} // SessionID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for sessionID. The returned func
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of sessionID, dropping it for full buffers.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// streamEvent is the payload of one SSE message.
type streamEvent struct {
	Type           domain.EventType     `json:"type"`
	Stage          domain.Stage         `json:"stage,omitempty"`
	EntityType     domain.EntityType    `json:"entity_type,omitempty"`
	RevisionNumber int                  `json:"revision_number"`
	DurationMS     int64                `json:"duration_ms,omitempty"`
	Error          string               `json:"error,omitempty"`
	Warning        *domain.ParseWarning `json:"warning,omitempty"`
}

func (sm *StreamManager) publish(sessionID string, ev streamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		sm.logger.Error("SSE: failed to encode event", "error", err)
		return
	}
	sm.Broadcast(sessionID, string(data))
}

// Hooks returns lifecycle hooks that publish every event to the session's subscribers.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	stage := func(e *domain.StageEvent) streamEvent {
		ev := streamEvent{
			Type:           e.Type,
			Stage:          e.Stage,
			EntityType:     e.EntityType,
			RevisionNumber: e.RevisionNumber,
			DurationMS:     e.Duration.Milliseconds(),
		}
		if e.Err != nil {
			ev.Error = e.Err.Error()
		}
		return ev
	}

	return domain.LifecycleHooks{
		OnStageEnter: func(_ context.Context, e *domain.StageEvent) {
			sm.publish(e.SessionID, stage(e))
		},
		OnStageLeave: func(_ context.Context, e *domain.StageEvent) {
			sm.publish(e.SessionID, stage(e))
		},
		OnParseWarning: func(_ context.Context, e *domain.ParseWarningEvent) {
			w := e.Warning
			sm.publish(e.SessionID, streamEvent{Type: e.Type, EntityType: e.EntityType, Warning: &w})
		},
		OnSessionDone: func(_ context.Context, s *domain.WorkflowState) {
			sm.publish(s.SessionID, streamEvent{
				Type:           domain.EventSessionDone,
				Stage:          s.Stage,
				EntityType:     s.EntityType,
				RevisionNumber: s.RevisionNumber,
			})
		},
	}
}

// SubscribeEvents handles GET /sessions/{id}/events as a server-sent event stream.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := chi.URLParam(r, "id")
	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
