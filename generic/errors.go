/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Not-found - Request, workflow, variant or balance missing (hard failure)
  2. Invalid-state - Step index out of bounds, illegal status transition
  3. External-data - Roster feed unavailable (degraded, never fatal)
  4. Store errors - Database-level failures

USAGE:
  if generic.IsNotFound(err) {
      // 404
  }
  var stateErr *generic.InvalidStateError
  if errors.As(err, &stateErr) {
      log.WithField("request_id", stateErr.RequestID).Error(stateErr)
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrRequestNotFound      = errors.New("request not found")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrVariantNotFound      = errors.New("leave variant not found")
	ErrBalanceNotFound      = errors.New("leave balance not found")
	ErrEmployeeNotFound     = errors.New("employee not found")
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrInvalidState is returned when stored state makes an operation
	// impossible (e.g. currentStep beyond the workflow's steps).
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition is returned when a status change is not allowed
	// from the request's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidInput is returned for malformed caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateBalance is returned when a balance row already exists for
	// the (user, variant, year, org) key on insert.
	ErrDuplicateBalance = errors.New("duplicate leave balance")

	// ErrRosterUnavailable is returned by roster sources when the employee
	// directory cannot be read. Callers degrade instead of failing.
	ErrRosterUnavailable = errors.New("employee roster unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError describes corrupted or inconsistent stored state.
type InvalidStateError struct {
	RequestID   string
	CurrentStep int
	StepCount   int
	Reason      string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for request %s: %s (current step %d, %d steps)",
		e.RequestID, e.Reason, e.CurrentStep, e.StepCount)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// TransitionError describes a disallowed status change.
type TransitionError struct {
	RequestID string
	From      string
	Action    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s", e.Action, e.RequestID, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrVariantNotFound) ||
		errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrOrganizationNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDuplicateBalance)
}

// IsConflict returns true if the request cannot move from its current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidState)
}
