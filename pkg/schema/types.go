package schema

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Kind defines how a field value is coerced from flat text and validated.
type Kind interface {
	// Name returns the human-readable name of the kind (e.g., "string", "[enum]").
	Name() string
	// Coerce converts a trimmed, non-empty text value. ok is false when the value maps to null.
	Coerce(raw string) (value any, ok bool)
	// Validate checks that a non-null value conforms to this kind.
	Validate(value any) error
	// JSONSchema returns the JSON Schema fragment describing a non-null value.
	JSONSchema() map[string]any
}

// Enumerated is implemented by kinds constrained to a fixed set of values.
type Enumerated interface {
	Allowed() []string
}

// --- Built-in Kind Implementations ---

// StringKind keeps text as-is.
type StringKind struct{}

func (k *StringKind) Name() string { return "string" }

func (k *StringKind) Coerce(raw string) (any, bool) { return raw, true }

func (k *StringKind) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

func (k *StringKind) JSONSchema() map[string]any {
	return map[string]any{"type": "string"}
}

// IntegerKind extracts the first run of digits ("60 feet" -> 60).
type IntegerKind struct{}

var digitRun = regexp.MustCompile(`[0-9]+`)

func (k *IntegerKind) Name() string { return "integer" }

func (k *IntegerKind) Coerce(raw string) (any, bool) {
	run := digitRun.FindString(raw)
	if run == "" {
		return nil, false
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return nil, false
	}
	return n, true
}

func (k *IntegerKind) Validate(value any) error {
	if _, ok := value.(int); !ok {
		return fmt.Errorf("expected integer, got %T", value)
	}
	return nil
}

func (k *IntegerKind) JSONSchema() map[string]any {
	return map[string]any{"type": "integer"}
}

// EnumKind accepts a single member of a closed set.
type EnumKind struct {
	values []string
}

func (k *EnumKind) Name() string { return "enum" }

func (k *EnumKind) Allowed() []string { return slices.Clone(k.values) }

func (k *EnumKind) Coerce(raw string) (any, bool) {
	if slices.Contains(k.values, raw) {
		return raw, true
	}
	return nil, false
}

func (k *EnumKind) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	if !slices.Contains(k.values, s) {
		return fmt.Errorf("%q is not one of %s", s, strings.Join(k.values, ", "))
	}
	return nil
}

func (k *EnumKind) JSONSchema() map[string]any {
	return map[string]any{"type": "string", "enum": toAny(k.values)}
}

// ListOfEnumKind accepts a comma separated list, keeping only members of the set.
type ListOfEnumKind struct {
	values []string
}

func (k *ListOfEnumKind) Name() string { return "[enum]" }

func (k *ListOfEnumKind) Allowed() []string { return slices.Clone(k.values) }

func (k *ListOfEnumKind) Coerce(raw string) (any, bool) {
	out := []string{}
	for _, tok := range splitList(raw) {
		if slices.Contains(k.values, tok) {
			out = append(out, tok)
		}
	}
	return out, true
}

func (k *ListOfEnumKind) Validate(value any) error {
	list, ok := value.([]string)
	if !ok {
		return fmt.Errorf("expected list of strings, got %T", value)
	}
	for i, s := range list {
		if !slices.Contains(k.values, s) {
			return fmt.Errorf("element %d: %q is not one of %s", i, s, strings.Join(k.values, ", "))
		}
	}
	return nil
}

func (k *ListOfEnumKind) JSONSchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string", "enum": toAny(k.values)},
	}
}

// ListOfStringKind accepts a comma separated list of free text tokens.
type ListOfStringKind struct{}

func (k *ListOfStringKind) Name() string { return "[string]" }

func (k *ListOfStringKind) Coerce(raw string) (any, bool) {
	return splitList(raw), true
}

func (k *ListOfStringKind) Validate(value any) error {
	if _, ok := value.([]string); !ok {
		return fmt.Errorf("expected list of strings, got %T", value)
	}
	return nil
}

func (k *ListOfStringKind) JSONSchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// --- Factory Functions ---

// String creates a free text kind.
func String() Kind { return &StringKind{} }

// Integer creates an integer kind.
func Integer() Kind { return &IntegerKind{} }

// Enum creates a kind constrained to the given values.
func Enum(values ...string) Kind { return &EnumKind{values: values} }

// ListOfEnum creates a list kind whose elements are constrained to the given values.
func ListOfEnum(values ...string) Kind { return &ListOfEnumKind{values: values} }

// ListOfString creates a list kind of free text tokens.
func ListOfString() Kind { return &ListOfStringKind{} }

func splitList(raw string) []string {
	out := []string{}
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
