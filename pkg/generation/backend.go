package generation

import (
	"context"

	"github.com/aretw0/statforge/pkg/domain"
)

// Request is a single completion call.
type Request struct {
	Prompt domain.Prompt

	// SchemaName and Schema are set for structured output and empty for free text.
	SchemaName string
	Schema     map[string]any
}

// Structured reports whether the request asks for schema-constrained JSON.
func (r Request) Structured() bool {
	return r.Schema != nil
}

// Backend is a model provider client.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) (string, error)

func (f BackendFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
