package schema

import "github.com/aretw0/statforge/pkg/domain"

// Registry maps every EntityType to its record schema.
// It is built once and never mutated, so it is safe for concurrent use.
type Registry struct {
	schemas map[domain.EntityType]RecordSchema
}

// NewRegistry creates a registry from a complete type-to-schema table.
func NewRegistry(schemas map[domain.EntityType]RecordSchema) *Registry {
	table := make(map[domain.EntityType]RecordSchema, len(schemas))
	for t, s := range schemas {
		table[t] = s
	}
	return &Registry{schemas: table}
}

// Default is the registry of the built-in stat block shapes.
var Default = NewRegistry(map[domain.EntityType]RecordSchema{
	domain.MagicItem:   Item,
	domain.RegularItem: Item,
	domain.Spell:       SpellBlock,
	domain.Creature:    Any,
	domain.Other:       Any,
})

// SchemaFor returns the schema of t, or *domain.UnknownTypeError for a tag outside the enumeration.
func (r *Registry) SchemaFor(t domain.EntityType) (RecordSchema, error) {
	s, ok := r.schemas[t]
	if !ok {
		return RecordSchema{}, &domain.UnknownTypeError{Type: t}
	}
	return s, nil
}

// Types returns the registered entity types in enumeration order.
func (r *Registry) Types() []domain.EntityType {
	var out []domain.EntityType
	for _, t := range domain.EntityTypes() {
		if _, ok := r.schemas[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// SchemaFor looks t up in the Default registry.
func SchemaFor(t domain.EntityType) (RecordSchema, error) {
	return Default.SchemaFor(t)
}
