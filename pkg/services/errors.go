// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest          = errors.New("invalid request")
	ErrNameRequired            = errors.New("name is required")
	ErrContentRequired         = errors.New("content is required")
	ErrInvalidTriggerCondition = errors.New("invalid trigger condition")
	ErrInvalidUnit             = errors.New("invalid time unit")
	ErrNegativeDelay           = errors.New("delay value cannot be negative")
	ErrInvalidMessageType      = errors.New("invalid message type")
	ErrMessageTypeMismatch     = errors.New("message template type does not match step message type")
	ErrInvalidStepNumber       = errors.New("step number must be positive")
	ErrInvalidEnrollmentStatus = errors.New("invalid enrollment status")
	ErrCustomerRequired        = errors.New("customer ID is required")
	ErrEventRequired           = errors.New("event name is required")

	// Business Logic Conflicts (409 Conflict).
	ErrExecutionNotPending = errors.New("step execution is not pending")
	ErrDuplicateRequest    = errors.New("request with this idempotency key was already processed")
	ErrMessageInUse        = errors.New("message template is used by funnel steps")
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

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrContentRequired) ||
		errors.Is(err, ErrInvalidTriggerCondition) ||
		errors.Is(err, ErrInvalidUnit) ||
		errors.Is(err, ErrNegativeDelay) ||
		errors.Is(err, ErrInvalidMessageType) ||
		errors.Is(err, ErrMessageTypeMismatch) ||
		errors.Is(err, ErrInvalidStepNumber) ||
		errors.Is(err, ErrInvalidEnrollmentStatus) ||
		errors.Is(err, ErrCustomerRequired) ||
		errors.Is(err, ErrEventRequired)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrExecutionNotPending) ||
		errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrMessageInUse)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
