package onboarding

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStep is returned when the requested step is not part of the flow.
	ErrUnknownStep = errors.New("unknown step")
	// ErrNotFound is returned when no record exists for (subject, step).
	ErrNotFound = errors.New("step record not found")
	// ErrNotSkippable is returned when Skip is called on a non-skippable step.
	ErrNotSkippable = errors.New("step cannot be skipped")
)

// StepOrderError reports a submit for a step whose prerequisites are not
// completed yet. Missing names the first incomplete prerequisite the client
// should be redirected to.
type StepOrderError struct {
	Step    string
	Missing string
}

func (e *StepOrderError) Error() string {
	return fmt.Sprintf("step %s requires %s to be completed first", e.Step, e.Missing)
}

// ValidationError carries field-level messages for a rejected step payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}
