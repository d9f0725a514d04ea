package memory

import (
	"context"
	"sync"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/schema"
)

// Corpus implements ports.Corpus in memory.
// Safe for concurrent use.
type Corpus struct {
	registry *schema.Registry
	records  map[domain.EntityType][]domain.Record
	mu       sync.RWMutex
}

// NewCorpus creates an empty corpus. A nil registry means schema.Default.
func NewCorpus(registry *schema.Registry) *Corpus {
	if registry == nil {
		registry = schema.Default
	}
	return &Corpus{
		registry: registry,
		records:  make(map[domain.EntityType][]domain.Record),
	}
}

// Append stores a copy of the record under its type.
func (c *Corpus) Append(ctx context.Context, record domain.Record) error {
	if _, err := c.registry.SchemaFor(record.Type); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[record.Type] = append(c.records[record.Type], record.Clone())
	return nil
}

// Documents renders the stored records of t in insertion order.
func (c *Corpus) Documents(ctx context.Context, t domain.EntityType) ([]string, error) {
	s, err := c.registry.SchemaFor(t)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := make([]string, 0, len(c.records[t]))
	for _, r := range c.records[t] {
		docs = append(docs, parser.Format(r, s))
	}
	return docs, nil
}
