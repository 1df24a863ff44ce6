// Package web provides HTTP request and response types for the funnel API.
package web

import "time"

// CreateCategoryRequest represents the request body for creating a category.
type CreateCategoryRequest struct {
	Name        string `json:"name"        validate:"required"`
	Description string `json:"description"`
	Color       string `json:"color"       validate:"omitempty,hexcolor"`
}

// UpdateCategoryRequest represents a partial category update.
type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"       validate:"omitempty,hexcolor"`
}

// CreateFunnelRequest represents the request body for creating a funnel.
// IsActive defaults to true.
type CreateFunnelRequest struct {
	Name              string  `json:"name"                validate:"required"`
	Description       string  `json:"description"`
	CategoryID        *string `json:"category_id"`
	TriggerCondition  string  `json:"trigger_condition"   validate:"omitempty,oneof=rental_created rental_active rental_start_date before_return after_return custom"`
	TriggerDelayValue int     `json:"trigger_delay_value"`
	TriggerDelayUnit  string  `json:"trigger_delay_unit"  validate:"omitempty,oneof=minutes hours days"`
	IsActive          *bool   `json:"is_active"`
}

// UpdateFunnelRequest represents a partial funnel update. A null category_id
// moves the funnel out of its category.
type UpdateFunnelRequest struct {
	Name              *string `json:"name,omitempty"                validate:"omitempty,min=1"`
	Description       *string `json:"description,omitempty"`
	CategoryID        *string `json:"category_id,omitempty"`
	TriggerCondition  *string `json:"trigger_condition,omitempty"   validate:"omitempty,oneof=rental_created rental_active rental_start_date before_return after_return custom"`
	TriggerDelayValue *int    `json:"trigger_delay_value,omitempty"`
	TriggerDelayUnit  *string `json:"trigger_delay_unit,omitempty"  validate:"omitempty,oneof=minutes hours days"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// CreateStepRequest represents one funnel step. A zero step_number takes the next free number.
type CreateStepRequest struct {
	FunnelID    string `json:"funnel_id"    validate:"required"`
	StepNumber  int    `json:"step_number"  validate:"min=0"`
	MessageID   string `json:"message_id"   validate:"required"`
	MessageType string `json:"message_type" validate:"omitempty,oneof=sms email"`
	DelayValue  int    `json:"delay_value"  validate:"min=0"`
	DelayUnit   string `json:"delay_unit"   validate:"omitempty,oneof=minutes hours days"`
}

// UpdateStepRequest represents a partial step update.
type UpdateStepRequest struct {
	StepNumber  *int    `json:"step_number,omitempty"  validate:"omitempty,min=1"`
	MessageID   *string `json:"message_id,omitempty"   validate:"omitempty,min=1"`
	MessageType *string `json:"message_type,omitempty" validate:"omitempty,oneof=sms email"`
	DelayValue  *int    `json:"delay_value,omitempty"  validate:"omitempty,min=0"`
	DelayUnit   *string `json:"delay_unit,omitempty"   validate:"omitempty,oneof=minutes hours days"`
}

// CreateMessageRequest represents a new message template. IsActive defaults to true.
type CreateMessageRequest struct {
	Name            string  `json:"name"             validate:"required"`
	MessageType     string  `json:"message_type"     validate:"required,oneof=sms email"`
	MessageCategory string  `json:"message_category"`
	Subject         *string `json:"subject"`
	Content         string  `json:"content"          validate:"required"`
	IsActive        *bool   `json:"is_active"`
}

// UpdateMessageRequest represents a partial template update.
type UpdateMessageRequest struct {
	Name            *string `json:"name,omitempty"             validate:"omitempty,min=1"`
	MessageType     *string `json:"message_type,omitempty"     validate:"omitempty,oneof=sms email"`
	MessageCategory *string `json:"message_category,omitempty"`
	Subject         *string `json:"subject,omitempty"`
	Content         *string `json:"content,omitempty"          validate:"omitempty,min=1"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

// EnrollRequest represents a manual enrollment.
type EnrollRequest struct {
	CustomerID string     `json:"customer_id" validate:"required"`
	FunnelID   string     `json:"funnel_id"   validate:"required"`
	RentalID   *string    `json:"rental_id"`
	EnrolledAt *time.Time `json:"enrolled_at"`
}

// UpdateEnrollmentRequest changes an enrollment's status.
type UpdateEnrollmentRequest struct {
	Status string `json:"status" validate:"required,oneof=active completed paused cancelled"`
}

// EventRequest reports a business event that enrolls the customer into matching funnels.
type EventRequest struct {
	Event      string     `json:"event"       validate:"required"`
	CustomerID string     `json:"customer_id" validate:"required"`
	RentalID   *string    `json:"rental_id"`
	OccurredAt *time.Time `json:"occurred_at"`
}
