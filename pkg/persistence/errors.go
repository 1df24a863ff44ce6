package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	ErrCategoryNotFound   = errors.New("category not found")
	ErrFunnelNotFound     = errors.New("funnel not found")
	ErrStepNotFound       = errors.New("funnel step not found")
	ErrMessageNotFound    = errors.New("message template not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrExecutionNotFound  = errors.New("step execution not found")

	ErrMessageInUse        = errors.New("message template is used by funnel steps")
	ErrExecutionNotPending = errors.New("step execution is no longer pending")
)

// EntityError wraps a storage failure with the operation and row it concerns.
type EntityError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	Entity string
	ID     string
	Err    error
}

func (e *EntityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewEntityError(op, entity, id string, err error) *EntityError {
	return &EntityError{
		Op:     op,
		Entity: entity,
		ID:     id,
		Err:    err,
	}
}

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrFunnelNotFound) ||
		errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrEnrollmentNotFound) ||
		errors.Is(err, ErrExecutionNotFound)
}

func IsFunnelNotFound(err error) bool {
	return errors.Is(err, ErrFunnelNotFound)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

func IsMessageInUse(err error) bool {
	return errors.Is(err, ErrMessageInUse)
}

func IsExecutionNotPending(err error) bool {
	return errors.Is(err, ErrExecutionNotPending)
}
