// Package models defines the funnel domain entities shared by storage, services and the HTTP layer.
package models

import (
	"time"

	"github.com/dukex/funnels/pkg/timing"
)

// TriggerCondition names the business event that anchors a funnel's start instant.
type TriggerCondition string

const (
	TriggerRentalCreated   TriggerCondition = "rental_created"
	TriggerRentalActive    TriggerCondition = "rental_active"
	TriggerRentalStartDate TriggerCondition = "rental_start_date"
	TriggerBeforeReturn    TriggerCondition = "before_return"
	TriggerAfterReturn     TriggerCondition = "after_return"
	TriggerCustom          TriggerCondition = "custom"
)

func (t TriggerCondition) Valid() bool {
	switch t {
	case TriggerRentalCreated, TriggerRentalActive, TriggerRentalStartDate,
		TriggerBeforeReturn, TriggerAfterReturn, TriggerCustom:
		return true
	default:
		return false
	}
}

type Funnel struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	CategoryID        *string          `json:"category_id"`
	TriggerCondition  TriggerCondition `json:"trigger_condition"`
	TriggerDelayValue int              `json:"trigger_delay_value"`
	TriggerDelayUnit  timing.Unit      `json:"trigger_delay_unit"`
	IsActive          bool             `json:"is_active"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`

	// StepCount is derived on read and never stored.
	StepCount int `json:"step_count"`
}

// TriggerOffset decodes the signed trigger delay.
func (f *Funnel) TriggerOffset() timing.Offset {
	return timing.OffsetFromSigned(f.TriggerDelayValue, f.TriggerDelayUnit)
}

// TriggerLabel is the funnel list caption, e.g. "Starts 2 days before".
func (f *Funnel) TriggerLabel() string {
	return "Starts " + f.TriggerOffset().Describe()
}
