package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Record is an instance of a RecordSchema: a mapping of field name to value.
// Values are string (plain or enum), int, []string, or nil for an absent optional field.
// Type is the discriminant that selects the schema the record was built against;
// it is empty for auxiliary records such as the classification answer.
type Record struct {
	Type   EntityType     `json:"type,omitempty"`
	Fields map[string]any `json:"fields"`
}

// NewRecord returns an empty record tagged with t.
func NewRecord(t EntityType) Record {
	return Record{Type: t, Fields: make(map[string]any)}
}

// Get returns the raw value of a field and whether the field is present.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// IsNull reports whether the field is absent or null.
func (r Record) IsNull(name string) bool {
	v, ok := r.Fields[name]
	return !ok || v == nil
}

// String returns a string-valued field.
func (r Record) String(name string) (string, bool) {
	s, ok := r.Fields[name].(string)
	return s, ok
}

// Int returns an integer-valued field.
func (r Record) Int(name string) (int, bool) {
	i, ok := r.Fields[name].(int)
	return i, ok
}

// Strings returns a list-valued field.
func (r Record) Strings(name string) ([]string, bool) {
	l, ok := r.Fields[name].([]string)
	return l, ok
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{Type: r.Type, Fields: make(map[string]any, len(r.Fields))}
	for k, v := range r.Fields {
		if l, ok := v.([]string); ok {
			v = append([]string(nil), l...)
		}
		out.Fields[k] = v
	}
	return out
}

// UnmarshalJSON restores the value kinds a record is allowed to hold.
// JSON numbers come back as float64 and lists as []any; both are normalized.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   EntityType     `json:"type"`
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := make(map[string]any, len(raw.Fields))
	for k, v := range raw.Fields {
		nv, err := normalizeValue(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = nv
	}

	r.Type = raw.Type
	r.Fields = fields
	return nil
}

func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string:
		return val, nil
	case float64:
		if val != math.Trunc(val) {
			return nil, fmt.Errorf("expected integer, got %v", val)
		}
		return int(val), nil
	case []any:
		list := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, item)
			}
			list = append(list, s)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
