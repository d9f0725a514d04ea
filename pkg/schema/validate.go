package schema

import (
	"sort"

	"github.com/aretw0/statforge/pkg/domain"
)

// Validate checks that a record conforms to the schema: its field set equals the
// schema's field set, every required field is non-null, and every non-null value
// matches its kind. Returns an *AggregateError with all failures found.
func Validate(s RecordSchema, r domain.Record) error {
	var errs []error

	for _, f := range s.fields {
		value, exists := r.Fields[f.Name]
		if !exists {
			errs = append(errs, &ValidationError{Field: f.Name, Reason: "missing from record"})
			continue
		}
		if value == nil {
			if f.Required {
				errs = append(errs, &ValidationError{Field: f.Name, Reason: "required"})
			}
			continue
		}
		if err := f.Kind.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Field: f.Name, Reason: err.Error(), Value: value})
		}
	}

	// Report unknown keys in a stable order.
	var extra []string
	for name := range r.Fields {
		if !s.Has(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		errs = append(errs, &ValidationError{Field: name, Reason: "not defined in schema", Value: r.Fields[name]})
	}

	if len(errs) > 0 {
		return &AggregateError{Schema: s.Name, Errors: errs}
	}
	return nil
}

// MissingRequired returns the required fields that are absent or null, in declaration order.
func MissingRequired(s RecordSchema, r domain.Record) []string {
	var missing []string
	for _, name := range s.RequiredNames() {
		if r.IsNull(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
