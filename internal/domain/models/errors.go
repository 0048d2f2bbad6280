package models

import (
	"errors"
	"fmt"
)

// FieldError is a field-qualified validation failure. Returned as values,
// aggregated into lists, never panicked.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every field failure from one parse pass so
// callers can display all of them at once.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s (and %d more)", e[0].Error(), len(e)-1)
}

// PolicyError reports a cap policy that resolved to a negative or
// non-finite value. The engine recovers by clamping but the policy itself
// is defective and is logged as such.
type PolicyError struct {
	CompanyID string
	Raw       float64
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("cap policy produced invalid value %v for company %s", e.Raw, e.CompanyID)
}

// ConservationError means allocated + remaining != available after a run.
// Fatal: the run is aborted and figures are never rounded into balance.
type ConservationError struct {
	AvailableCents int64
	AllocatedCents int64
	RemainingCents int64
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("reserve conservation violated: allocated %d + remaining %d != available %d",
		e.AllocatedCents, e.RemainingCents, e.AvailableCents)
}

// ErrTimeout is returned when an engine invocation exceeds its duration
// budget. Recoverable by the caller (smaller portfolio, fewer passes).
var ErrTimeout = errors.New("allocation exceeded duration budget")

// ErrMatrixInvalid is the base error for graduation matrix construction
// failures.
var ErrMatrixInvalid = errors.New("invalid graduation matrix")
