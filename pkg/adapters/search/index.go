package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/ports"
)

var (
	_ ports.RetrievalGateway = (*Index)(nil)
	_ ports.CorpusIndexer    = (*Index)(nil)
)

const batchSize = 100

type document struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Index is a bleve backed RetrievalGateway and CorpusIndexer.
// Safe for concurrent use.
type Index struct {
	index  bleve.Index
	logger *slog.Logger
}

// Option configures the Index.
type Option func(*Index)

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		i.logger = logger
	}
}

func newMapping() mapping.IndexMapping {
	typeField := bleve.NewKeywordFieldMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("type", typeField)
	doc.AddFieldMappingsAt("content", contentField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// NewMemIndex creates a volatile index.
func NewMemIndex(opts ...Option) (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("error creating memory index: %w", err)
	}
	return wrap(idx, opts), nil
}

// Open opens the index at path, creating it if missing and recreating it if corrupt.
func Open(path string, opts ...Option) (*Index, error) {
	i := wrap(nil, opts)

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		i.logger.Info("Creating search index", "path", path)
		idx, err = bleve.New(path, newMapping())
		if err != nil {
			return nil, fmt.Errorf("error creating new index: %w", err)
		}
	} else if err != nil {
		i.logger.Warn("Recreating unreadable search index", "path", path, "err", err)
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("error deleting corrupted index: %w", err)
		}
		idx, err = bleve.New(path, newMapping())
		if err != nil {
			return nil, fmt.Errorf("error creating new index after deletion: %w", err)
		}
	}

	i.index = idx
	return i, nil
}

func wrap(idx bleve.Index, opts []Option) *Index {
	i := &Index{index: idx, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Index adds documents of type t in batches.
func (i *Index) Index(ctx context.Context, t domain.EntityType, docs ...string) error {
	batch := i.index.NewBatch()
	for _, content := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(uuid.NewString(), document{Type: t.Slug(), Content: content}); err != nil {
			return fmt.Errorf("error adding document to batch: %w", err)
		}
		if batch.Size() >= batchSize {
			if err := i.index.Batch(batch); err != nil {
				return fmt.Errorf("error indexing batch: %w", err)
			}
			batch = i.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := i.index.Batch(batch); err != nil {
			return fmt.Errorf("error indexing batch: %w", err)
		}
	}
	i.logger.Debug("Indexed corpus documents", "type", t, "count", len(docs))
	return nil
}

// Sync brings the index up to date with the corpus. A type whose corpus holds more
// documents than the index is dropped and indexed again from scratch.
func (i *Index) Sync(ctx context.Context, corpus ports.Corpus, types ...domain.EntityType) error {
	for _, t := range types {
		docs, err := corpus.Documents(ctx, t)
		if err != nil {
			return fmt.Errorf("error reading corpus for %s: %w", t, err)
		}
		indexed, err := i.Count(ctx, t)
		if err != nil {
			return err
		}
		if uint64(len(docs)) <= indexed {
			continue
		}

		if err := i.drop(ctx, t, indexed); err != nil {
			return err
		}
		if err := i.Index(ctx, t, docs...); err != nil {
			return err
		}
		i.logger.Info("Reindexed corpus", "type", t, "indexed", indexed, "corpus", len(docs))
	}
	return nil
}

// drop deletes the n documents indexed for t.
func (i *Index) drop(ctx context.Context, t domain.EntityType, n uint64) error {
	if n == 0 {
		return nil
	}
	req := bleve.NewSearchRequestOptions(typeQuery(t), int(n), 0, false)
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("error listing documents of %s: %w", t, err)
	}

	batch := i.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("error dropping documents of %s: %w", t, err)
	}
	return nil
}

// Count returns the number of documents indexed for t.
func (i *Index) Count(ctx context.Context, t domain.EntityType) (uint64, error) {
	req := bleve.NewSearchRequestOptions(typeQuery(t), 0, 0, false)
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("error counting documents: %w", err)
	}
	return res.Total, nil
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
