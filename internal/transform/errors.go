package transform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned by every projection when given no records
var ErrEmptyInput = errors.New("input records are empty")

// RowError describes one invalid field of one record
type RowError struct {
	PlantID string
	Field   string
	Value   string
	Reason  string
}

func (r RowError) String() string {
	return fmt.Sprintf("plant %s: %s %q %s", r.PlantID, r.Field, r.Value, r.Reason)
}

// ValidationError rejects a whole projection. Err is set when the
// failure came from a hard cast rather than a validation rule.
type ValidationError struct {
	Projection string
	Rows       []RowError
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s validation failed: %v", e.Projection, e.Err)
	}
	parts := make([]string, 0, len(e.Rows))
	for _, r := range e.Rows {
		parts = append(parts, r.String())
	}
	return fmt.Sprintf("%s validation failed: %d invalid rows (%s)", e.Projection, len(e.Rows), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
