package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/aretw0/statforge/pkg/domain"
)

func typeQuery(t domain.EntityType) query.Query {
	q := bleve.NewTermQuery(t.Slug())
	q.SetField("type")
	return q
}

// Search returns up to k documents of type t ranked by relevance to text.
// When no document shares a term with text, the first k documents of the type are
// returned so the prompt still carries examples.
// It returns domain.ErrRetrievalUnavailable if nothing is indexed for t.
func (i *Index) Search(ctx context.Context, t domain.EntityType, text string, k int) ([]string, error) {
	if k <= 0 {
		return []string{}, nil
	}

	total, err := i.Count(ctx, t)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, domain.ErrRetrievalUnavailable
	}

	var hits []string
	if text != "" {
		match := bleve.NewMatchQuery(text)
		match.SetField("content")
		hits, err = i.search(ctx, bleve.NewConjunctionQuery(typeQuery(t), match), k)
		if err != nil {
			return nil, err
		}
	}
	if len(hits) == 0 {
		hits, err = i.search(ctx, typeQuery(t), k)
		if err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func (i *Index) search(ctx context.Context, q query.Query, k int) ([]string, error) {
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"content"}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("error performing search: %w", err)
	}

	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if content, ok := hit.Fields["content"].(string); ok {
			out = append(out, content)
		}
	}
	return out, nil
}
