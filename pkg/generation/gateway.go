package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/ports"
	"github.com/aretw0/statforge/pkg/schema"
)

var _ ports.GenerationGateway = (*Gateway)(nil)

// ErrEmptyOutput is returned when the backend produced no content.
var ErrEmptyOutput = errors.New("backend returned empty output")

// Gateway implements ports.GenerationGateway on top of a Backend.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger configures the logger used for raw output tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway wraps a backend.
func NewGateway(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateRecord asks the backend for JSON conforming to s and decodes it into a record.
// Any backend failure or non-conforming output is returned as *domain.GenerationError.
func (g *Gateway) GenerateRecord(ctx context.Context, prompt domain.Prompt, s schema.RecordSchema) (domain.Record, error) {
	raw, err := g.backend.Complete(ctx, Request{
		Prompt:     prompt,
		SchemaName: s.Name,
		Schema:     schema.JSONSchema(s),
	})
	if err != nil {
		return domain.Record{}, &domain.GenerationError{Err: err}
	}
	g.logger.Debug("Structured output received", "schema", s.Name, "bytes", len(raw))

	doc := ExtractJSON(raw)
	if doc == "" {
		return domain.Record{}, &domain.GenerationError{Err: ErrEmptyOutput}
	}

	if err := validateDocument(doc, s); err != nil {
		return domain.Record{}, &domain.GenerationError{Err: err}
	}

	rec := Decode(doc, s)
	if err := schema.Validate(s, rec); err != nil {
		return domain.Record{}, &domain.GenerationError{Err: fmt.Errorf("%w: %w", domain.ErrNonConforming, err)}
	}
	return rec, nil
}

// GenerateText asks the backend for free text.
func (g *Gateway) GenerateText(ctx context.Context, prompt domain.Prompt) (string, error) {
	out, err := g.backend.Complete(ctx, Request{Prompt: prompt})
	if err != nil {
		return "", &domain.GenerationError{Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &domain.GenerationError{Err: ErrEmptyOutput}
	}
	return out, nil
}

func validateDocument(doc string, s schema.RecordSchema) error {
	schemaLoader := gojsonschema.NewGoLoader(schema.LenientJSONSchema(s))
	dataLoader := gojsonschema.NewStringLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%w: not valid JSON: %w", domain.ErrNonConforming, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("%w: %s: %s", domain.ErrNonConforming, s.Name, strings.Join(errs, "; "))
	}
	return nil
}
