package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports one field of a record that does not fit its schema.
type ValidationError struct {
	Field  string
	Reason string
	// Value is the offending value, nil when the field is absent.
	Value any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %T)", e.Field, e.Reason, e.Value)
}

// AggregateError collects every field failure of one record.
type AggregateError struct {
	Schema string
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("record does not match schema %s: %s", e.Schema, strings.Join(msgs, "; "))
}

// Unwrap exposes the field failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// ValidationErrors returns the field failures carried by err, or nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
