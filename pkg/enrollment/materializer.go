// Package enrollment turns a funnel and its steps into the scheduled executions of one enrollment.
package enrollment

import (
	"cmp"
	"slices"
	"time"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/timing"
)

// FunnelStart shifts the business event time by the funnel's signed trigger delay.
func FunnelStart(funnel *models.Funnel, eventTime time.Time) time.Time {
	return funnel.TriggerOffset().Apply(eventTime)
}

// Materialize returns one pending execution per step, ordered by step number, each scheduled
// at the enrollment instant plus the step delay. IDs are left for storage to assign.
func Materialize(enrollment *models.Enrollment, steps []*models.FunnelStep) []*models.StepExecution {
	executions := make([]*models.StepExecution, 0, len(steps))

	for _, step := range SortSteps(steps) {
		executions = append(executions, &models.StepExecution{
			EnrollmentID: enrollment.ID,
			FunnelStepID: step.ID,
			ScheduledAt:  step.Offset().Apply(enrollment.EnrolledAt),
			Status:       models.ExecutionPending,
		})
	}

	return executions
}

// SortSteps returns a copy of steps ordered by step number.
func SortSteps(steps []*models.FunnelStep) []*models.FunnelStep {
	ordered := slices.Clone(steps)
	slices.SortStableFunc(ordered, func(a, b *models.FunnelStep) int {
		return cmp.Compare(a.StepNumber, b.StepNumber)
	})

	return ordered
}

// NextStepNumber is one past the highest step number in use.
func NextStepNumber(steps []*models.FunnelStep) int {
	highest := 0
	for _, step := range steps {
		highest = max(highest, step.StepNumber)
	}

	return highest + 1
}

type TimelineEntry struct {
	Step            *models.FunnelStep `json:"step"`
	OffsetMinutes   int                `json:"offset_minutes"`
	Label           string             `json:"label"`
	CumulativeLabel string             `json:"cumulative_label"`
}

// Timeline is the ordered view of a funnel's steps with their display labels.
func Timeline(steps []*models.FunnelStep) []TimelineEntry {
	ordered := SortSteps(steps)
	entries := make([]TimelineEntry, 0, len(ordered))

	for _, step := range ordered {
		minutes := step.OffsetMinutes()
		entries = append(entries, TimelineEntry{
			Step:            step,
			OffsetMinutes:   minutes,
			Label:           timing.Label(minutes),
			CumulativeLabel: timing.CumulativeLabel(minutes),
		})
	}

	return entries
}

type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressOf counts sent and skipped executions against the funnel's step count.
func ProgressOf(executions []*models.StepExecution, totalSteps int) Progress {
	done := 0
	for _, execution := range executions {
		if execution.Status.Done() {
			done++
		}
	}

	return Progress{Current: done, Total: totalSteps}
}
