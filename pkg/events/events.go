// Package events defines the enrollment and execution notifications published for external dispatchers.
package events

import (
	"time"

	"github.com/dukex/funnels/pkg/models"
)

type EventType string

const Topic = "funnels.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	EnrollmentCreatedEvent       EventType = "enrollment.created"
	EnrollmentStatusChangedEvent EventType = "enrollment.status_changed"

	ExecutionSentEvent      EventType = "execution.sent"
	ExecutionSkippedEvent   EventType = "execution.skipped"
	ExecutionCancelledEvent EventType = "execution.cancelled"
)

// Types lists every event type the bus knows how to decode.
var Types = []EventType{
	EnrollmentCreatedEvent,
	EnrollmentStatusChangedEvent,
	ExecutionSentEvent,
	ExecutionSkippedEvent,
	ExecutionCancelledEvent,
}

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	EnrollmentID string         `json:"enrollment_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(id string, eventType EventType, enrollmentID string) BaseEvent {
	return BaseEvent{
		ID:           id,
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		EnrollmentID: enrollmentID,
	}
}

type EnrollmentCreated struct {
	BaseEvent

	FunnelID       string    `json:"funnel_id"`
	CustomerID     string    `json:"customer_id"`
	RentalID       *string   `json:"rental_id,omitempty"`
	EnrolledAt     time.Time `json:"enrolled_at"`
	ExecutionCount int       `json:"execution_count"`
}

func (e EnrollmentCreated) GetType() EventType {
	return EnrollmentCreatedEvent
}

type EnrollmentStatusChanged struct {
	BaseEvent

	Previous models.EnrollmentStatus `json:"previous"`
	Status   models.EnrollmentStatus `json:"status"`
}

func (e EnrollmentStatusChanged) GetType() EventType {
	return EnrollmentStatusChangedEvent
}

type ExecutionSent struct {
	BaseEvent

	ExecutionID  string    `json:"execution_id"`
	FunnelStepID string    `json:"funnel_step_id"`
	ExecutedAt   time.Time `json:"executed_at"`
}

func (e ExecutionSent) GetType() EventType {
	return ExecutionSentEvent
}

type ExecutionSkipped struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	FunnelStepID string `json:"funnel_step_id"`
}

func (e ExecutionSkipped) GetType() EventType {
	return ExecutionSkippedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	FunnelStepID string `json:"funnel_step_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}
