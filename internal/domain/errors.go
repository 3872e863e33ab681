package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyResult marks a valid selection that matched no incidents. It is
// informational: reports are still produced, with zero rows.
var ErrEmptyResult = errors.New("selection matched no incidents")

// InvalidSelectionError is returned when a filter selection is incomplete
// or inconsistent. Aggregation must not run for it.
type InvalidSelectionError struct {
	Dimension Dimension
	Reason    string
}

func (e *InvalidSelectionError) Error() string {
	return fmt.Sprintf("invalid selection: %s: %s", e.Dimension, e.Reason)
}

// ModelIncompatibleInputError is returned when a prediction request cannot
// be encoded the way the classifier artifact expects.
type ModelIncompatibleInputError struct {
	Feature string
	Value   string
	Reason  string
}

func (e *ModelIncompatibleInputError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("model incompatible input: %s=%q: %s", e.Feature, e.Value, e.Reason)
	}
	return fmt.Sprintf("model incompatible input: %s: %s", e.Feature, e.Reason)
}

// DatasetContractViolation is returned by loaders when the source table
// does not satisfy the incident schema.
type DatasetContractViolation struct {
	Row    int
	Column string
	Reason string
}

func (e *DatasetContractViolation) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("dataset contract violation at row %d, column %s: %s", e.Row, e.Column, e.Reason)
	}
	return fmt.Sprintf("dataset contract violation, column %s: %s", e.Column, e.Reason)
}
