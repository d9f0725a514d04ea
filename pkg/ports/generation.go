package ports

import (
	"context"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/schema"
)

// GenerationGateway produces model output for a prompt.
type GenerationGateway interface {
	// GenerateRecord returns a record conforming to s.
	// It must return a *domain.GenerationError if the output cannot be coerced into a conforming record.
	GenerateRecord(ctx context.Context, prompt domain.Prompt, s schema.RecordSchema) (domain.Record, error)

	// GenerateText returns free text, used for critiques.
	GenerateText(ctx context.Context, prompt domain.Prompt) (string, error)
}
