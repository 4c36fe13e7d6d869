package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when a fit is requested without any interaction records.
	ErrEmptyDataset = errors.New("empty dataset: no interaction records to fit on")

	// ErrModelNotFitted is returned by the registry when no model has been fitted yet.
	ErrModelNotFitted = errors.New("model has not been fitted")
)

// SchemaError reports an interaction table or record missing a required field.
type SchemaError struct {
	Field string
	// Row is the zero-based record index, or -1 when the whole table lacks the field.
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "required field is missing"
	}
	if e.Row < 0 {
		return fmt.Sprintf("schema error: column %q: %s", e.Field, reason)
	}
	return fmt.Sprintf("schema error: row %d, field %q: %s", e.Row, e.Field, reason)
}

// PrecondRankError reports a latent dimensionality that does not fit the matrix shape.
type PrecondRankError struct {
	Components int
	Machines   int
	Actions    int
}

func (e *PrecondRankError) Error() string {
	return fmt.Sprintf("invalid rank: components must satisfy 1 <= k < min(machines, actions), got k=%d for a %dx%d matrix",
		e.Components, e.Machines, e.Actions)
}

// UnknownMachineError is returned when ranking is requested for a machine the model never observed.
type UnknownMachineError struct {
	MachineID string
}

func (e *UnknownMachineError) Error() string {
	return fmt.Sprintf("unknown machine %q: not present in the fitted model", e.MachineID)
}
