package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentPaused    EnrollmentStatus = "paused"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentActive, EnrollmentCompleted, EnrollmentPaused, EnrollmentCancelled:
		return true
	default:
		return false
	}
}

// Enrollment binds one customer to one funnel at one instant.
type Enrollment struct {
	ID         string           `json:"id"`
	CustomerID string           `json:"customer_id"`
	RentalID   *string          `json:"rental_id"`
	FunnelID   string           `json:"funnel_id"`
	EnrolledAt time.Time        `json:"enrolled_at"`
	Status     EnrollmentStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionSent    ExecutionStatus = "sent"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionSkipped ExecutionStatus = "skipped"
)

func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionPending, ExecutionSent, ExecutionFailed, ExecutionSkipped:
		return true
	default:
		return false
	}
}

// Done reports whether the execution counts towards enrollment progress.
func (s ExecutionStatus) Done() bool {
	return s == ExecutionSent || s == ExecutionSkipped
}

// StepExecution is the materialized instance of one step for one enrollment.
type StepExecution struct {
	ID           string          `json:"id"`
	EnrollmentID string          `json:"enrollment_id"`
	FunnelStepID string          `json:"funnel_step_id"`
	ScheduledAt  time.Time       `json:"scheduled_date"`
	ExecutedAt   *time.Time      `json:"executed_date"`
	Status       ExecutionStatus `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}
