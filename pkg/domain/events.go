package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStageEnter   EventType = "stage_enter"
	EventStageLeave   EventType = "stage_leave"
	EventParseWarning EventType = "parse_warning"
	EventSessionDone  EventType = "session_done"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StageEvent represents entry into or exit from a workflow stage.
type StageEvent struct {
	EventBase
	Stage          Stage         `json:"stage"`
	EntityType     EntityType    `json:"entity_type,omitempty"`
	RevisionNumber int           `json:"revision_number"`
	Duration       time.Duration `json:"duration,omitempty"` // leave only
	Err            error         `json:"-"`                  // leave only
}

// ParseWarningEvent carries a dropped retrieval document.
type ParseWarningEvent struct {
	EventBase
	EntityType EntityType   `json:"entity_type"`
	Warning    ParseWarning `json:"warning"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStageEnter   func(context.Context, *StageEvent)
	OnStageLeave   func(context.Context, *StageEvent)
	OnParseWarning func(context.Context, *ParseWarningEvent)
	OnSessionDone  func(context.Context, *WorkflowState)
}
