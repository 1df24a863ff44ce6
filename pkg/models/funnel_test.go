package models_test

import (
	"testing"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/timing"
	"github.com/stretchr/testify/assert"
)

func TestFunnel_TriggerOffset(t *testing.T) {
	t.Parallel()

	funnel := &models.Funnel{TriggerDelayValue: -2, TriggerDelayUnit: timing.UnitDays}

	offset := funnel.TriggerOffset()

	assert.Equal(t, 2, offset.Value)
	assert.Equal(t, timing.Before, offset.Direction)
	assert.Equal(t, -2*timing.MinutesPerDay, offset.SignedMinutes())
	assert.Equal(t, "Starts 2 days before", funnel.TriggerLabel())
}

func TestFunnel_TriggerLabelAtEvent(t *testing.T) {
	t.Parallel()

	funnel := &models.Funnel{TriggerDelayUnit: timing.UnitHours}

	assert.Equal(t, "Starts at event", funnel.TriggerLabel())
}

func TestTriggerCondition_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, models.TriggerRentalStartDate.Valid())
	assert.True(t, models.TriggerCustom.Valid())
	assert.False(t, models.TriggerCondition("rental_deleted").Valid())
}

func TestFunnelStep_OffsetIsAlwaysAfter(t *testing.T) {
	t.Parallel()

	step := &models.FunnelStep{DelayValue: 3, DelayUnit: timing.UnitDays}

	assert.Equal(t, timing.After, step.Offset().Direction)
	assert.Equal(t, 3*timing.MinutesPerDay, step.OffsetMinutes())
}

func TestStatuses(t *testing.T) {
	t.Parallel()

	assert.True(t, models.EnrollmentPaused.Valid())
	assert.False(t, models.EnrollmentStatus("archived").Valid())

	assert.True(t, models.ExecutionSent.Done())
	assert.True(t, models.ExecutionSkipped.Done())
	assert.False(t, models.ExecutionPending.Done())
	assert.False(t, models.ExecutionFailed.Done())
	assert.False(t, models.ExecutionStatus("queued").Valid())

	assert.True(t, models.MessageTypeEmail.Valid())
	assert.False(t, models.MessageType("push").Valid())
}
