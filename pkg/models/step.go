package models

import (
	"time"

	"github.com/dukex/funnels/pkg/timing"
)

type MessageType string

const (
	MessageTypeSMS   MessageType = "sms"
	MessageTypeEmail MessageType = "email"
)

func (m MessageType) Valid() bool {
	return m == MessageTypeSMS || m == MessageTypeEmail
}

// FunnelStep is one scheduled message. Its delay is measured from the funnel start,
// never from the previous step.
type FunnelStep struct {
	ID          string      `json:"id"`
	FunnelID    string      `json:"funnel_id"`
	StepNumber  int         `json:"step_number"`
	MessageID   string      `json:"message_id"`
	MessageType MessageType `json:"message_type"`
	DelayValue  int         `json:"delay_value"`
	DelayUnit   timing.Unit `json:"delay_unit"`
	CreatedAt   time.Time   `json:"created_at"`

	Message *MessageSummary `json:"message_templates,omitempty"`
}

// MessageSummary is the template preview embedded in step listings.
type MessageSummary struct {
	Name    string  `json:"name"`
	Content string  `json:"content"`
	Subject *string `json:"subject"`
}

func (s *FunnelStep) Offset() timing.Offset {
	return timing.Offset{Value: s.DelayValue, Unit: s.DelayUnit, Direction: timing.After}
}

// OffsetMinutes is the step's distance from the funnel start.
func (s *FunnelStep) OffsetMinutes() int {
	return s.Offset().Minutes()
}
