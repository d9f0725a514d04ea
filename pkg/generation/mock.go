package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockBackend is a deterministic offline backend. Structured requests get a
// minimal document satisfying the requested JSON Schema; free text requests
// get a fixed critique. It records every request it receives.
type MockBackend struct {
	// Critique overrides the free text answer.
	Critique string

	mu       sync.Mutex
	requests []Request
}

// Complete implements Backend.
func (m *MockBackend) Complete(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if !req.Structured() {
		if m.Critique != "" {
			return m.Critique, nil
		}
		return "The stat block is consistent with the description. Consider tightening the flavour text.", nil
	}

	doc := make(map[string]any)
	props, _ := req.Schema["properties"].(map[string]any)
	for name, p := range props {
		prop, _ := p.(map[string]any)
		doc[name] = mockValue(name, prop)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("mock: %w", err)
	}
	return string(out), nil
}

// Requests returns a copy of the requests received so far.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func mockValue(name string, prop map[string]any) any {
	if enum, ok := prop["enum"].([]any); ok {
		for _, v := range enum {
			if v != nil {
				return v
			}
		}
	}

	switch primaryType(prop["type"]) {
	case "integer":
		return 1
	case "array":
		items, _ := prop["items"].(map[string]any)
		return []any{mockValue(name, items)}
	default:
		return "Mock " + strings.ReplaceAll(name, "_", " ")
	}
}

// primaryType picks the non-null member of a JSON Schema type union.
func primaryType(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		types := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "null" {
				types = append(types, s)
			}
		}
		sort.Strings(types)
		if len(types) > 0 {
			return types[0]
		}
	}
	return ""
}
