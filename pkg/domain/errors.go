package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrRetrievalUnavailable signals that no example corpus exists yet for a type.
// It is not a failure: the workflow proceeds without examples.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// ErrNonConforming marks backend output that does not satisfy the requested schema.
// It is wrapped inside a GenerationError.
var ErrNonConforming = errors.New("output does not conform to schema")

// UnknownTypeError is returned when a tag outside the EntityType enumeration is used.
type UnknownTypeError struct {
	Type EntityType
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown entity type %q", string(e.Type))
}

// ClassificationError aborts a session whose description could not be mapped to an EntityType.
type ClassificationError struct {
	Value string // raw value returned by the backend, if any
	Err   error
}

func (e *ClassificationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("classification failed: backend returned %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// GenerationError is returned when the backend errors or its output violates the schema.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed at %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ParseWarning reports a retrieved document that was dropped for missing required fields.
// It never aborts a session.
type ParseWarning struct {
	Chunk   int      `json:"chunk"`
	Missing []string `json:"missing"`
}

func (w ParseWarning) Error() string {
	return fmt.Sprintf("document %d skipped: missing required fields %s", w.Chunk, strings.Join(w.Missing, ", "))
}
