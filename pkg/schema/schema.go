package schema

import (
	"fmt"

	"github.com/aretw0/statforge/pkg/domain"
)

// FieldSpec describes one field of a record schema.
type FieldSpec struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
}

// Required declares a field that must be non-null in every record.
func Required(name string, kind Kind, description string) FieldSpec {
	return FieldSpec{Name: name, Kind: kind, Required: true, Description: description}
}

// Optional declares a nullable field.
func Optional(name string, kind Kind, description string) FieldSpec {
	return FieldSpec{Name: name, Kind: kind, Description: description}
}

// RecordSchema is an ordered set of fields describing one record shape.
// It is immutable once built.
type RecordSchema struct {
	// Name identifies the shape (e.g. "item"); several entity types may share one schema.
	Name   string
	fields []FieldSpec
	index  map[string]int
}

// NewRecordSchema builds a schema from fields in declaration order.
// It panics on duplicate or empty field names, since schemas are static definitions.
func NewRecordSchema(name string, fields ...FieldSpec) RecordSchema {
	s := RecordSchema{
		Name:   name,
		fields: make([]FieldSpec, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" || f.Kind == nil {
			panic(fmt.Sprintf("schema %s: field needs a name and a kind", name))
		}
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("schema %s: duplicate field %q", name, f.Name))
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s
}

// Fields returns the field specs in declaration order.
func (s RecordSchema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a field by name.
func (s RecordSchema) Field(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Has reports whether name is part of the field set.
func (s RecordSchema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns the field names in declaration order.
func (s RecordSchema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// RequiredNames returns the names of required fields in declaration order.
func (s RecordSchema) RequiredNames() []string {
	var names []string
	for _, f := range s.fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// NewRecord returns a record with every field of the schema set to null.
func (s RecordSchema) NewRecord(t domain.EntityType) domain.Record {
	r := domain.NewRecord(t)
	for _, f := range s.fields {
		r.Fields[f.Name] = nil
	}
	return r
}
