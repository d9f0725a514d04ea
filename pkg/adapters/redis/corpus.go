package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/schema"
)

// Corpus implements ports.Corpus with one Redis list per entity type.
type Corpus struct {
	client   *backend.Client
	prefix   string
	registry *schema.Registry
}

// NewCorpus creates a corpus under <prefix>corpus:<slug>. A nil registry means schema.Default.
func NewCorpus(client *backend.Client, prefix string, registry *schema.Registry) *Corpus {
	if registry == nil {
		registry = schema.Default
	}
	return &Corpus{client: client, prefix: prefix, registry: registry}
}

func (c *Corpus) key(t domain.EntityType) string {
	return c.prefix + "corpus:" + t.Slug()
}

// Append pushes the record onto the list of its type.
func (c *Corpus) Append(ctx context.Context, record domain.Record) error {
	if _, err := c.registry.SchemaFor(record.Type); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := c.client.RPush(ctx, c.key(record.Type), data).Err(); err != nil {
		return fmt.Errorf("failed to append to corpus: %w", err)
	}
	return nil
}

// Documents renders every stored record of t in insertion order.
func (c *Corpus) Documents(ctx context.Context, t domain.EntityType) ([]string, error) {
	s, err := c.registry.SchemaFor(t)
	if err != nil {
		return nil, err
	}

	items, err := c.client.LRange(ctx, c.key(t), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	docs := make([]string, 0, len(items))
	for _, item := range items {
		var r domain.Record
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal corpus record: %w", err)
		}
		docs = append(docs, parser.Format(r, s))
	}
	return docs, nil
}
