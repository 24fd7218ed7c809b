package model

import (
	"errors"
	"fmt"
)

// Sentinel errors of the matching core. Callers match them with errors.Is.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInfeasibleAssignment = errors.New("infeasible assignment: fewer drivers than routes")
	ErrDegenerateInput      = errors.New("degenerate input: no drivers or no routes")
	ErrMissingJoin          = errors.New("solved pair does not join to an input record")
)

// InputError describes one malformed field of a raw record.
type InputError struct {
	Entity string // "driver" or "route"
	Index  int    // position in the input slice, -1 for file-level problems
	ID     string
	Field  string
	Reason string
}

// Error implements error.
func (e *InputError) Error() string {
	id := e.ID
	switch {
	case id == "" && e.Index < 0:
		return fmt.Sprintf("%s: %s %s: %s", ErrInvalidInput, e.Entity, e.Field, e.Reason)
	case id == "":
		id = fmt.Sprintf("#%d", e.Index)
	}
	return fmt.Sprintf("%s: %s %s field %s: %s", ErrInvalidInput, e.Entity, id, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}
