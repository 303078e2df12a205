// Package services provides the application layer between the HTTP
// handlers and the engines.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrNodesRequired        = errors.New("workflow must have at least one node")
	ErrTableNameRequired    = errors.New("decision table name is required")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")
	ErrTableNil             = errors.New("decision table cannot be nil")

	// Business logic conflicts (409 Conflict).
	ErrCannotModifyPublished  = errors.New("cannot modify published workflow")
	ErrCannotDeletePublished  = errors.New("cannot delete published workflow")
	ErrExecutionNotResumable  = errors.New("execution is not waiting for input")
	ErrExecutionNotPausable   = errors.New("execution is not waiting")
	ErrTaskNotOpen            = errors.New("task is not open")
	ErrTaskClaimedByOther     = errors.New("task is claimed by another user")
	ErrTaskTransitionRejected = errors.New("invalid task transition")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrTableNameRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrTableNil)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, ErrCannotDeletePublished) ||
		errors.Is(err, ErrExecutionNotResumable) ||
		errors.Is(err, ErrExecutionNotPausable) ||
		errors.Is(err, ErrTaskNotOpen) ||
		errors.Is(err, ErrTaskClaimedByOther) ||
		errors.Is(err, ErrTaskTransitionRejected)
}
