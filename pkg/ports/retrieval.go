package ports

import (
	"context"

	"github.com/aretw0/statforge/pkg/domain"
)

// RetrievalGateway finds stored stat blocks similar to a query.
type RetrievalGateway interface {
	// Search returns up to k raw documents of type t ranked by similarity to query.
	// It returns domain.ErrRetrievalUnavailable when no corpus exists for t.
	Search(ctx context.Context, t domain.EntityType, query string, k int) ([]string, error)
}

// Corpus stores finished stat blocks grouped by entity type.
type Corpus interface {
	// Append adds a finished record to the corpus of its type.
	Append(ctx context.Context, record domain.Record) error

	// Documents returns every stored record of type t rendered as flat text documents.
	// It returns an empty slice if nothing was stored for t.
	Documents(ctx context.Context, t domain.EntityType) ([]string, error)
}

// CorpusIndexer makes newly appended documents searchable.
type CorpusIndexer interface {
	Index(ctx context.Context, t domain.EntityType, docs ...string) error
}
