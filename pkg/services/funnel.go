package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/funnels/pkg/enrollment"
	"github.com/dukex/funnels/pkg/log"
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/otelhelper"
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/timing"
	"go.opentelemetry.io/otel/attribute"
)

const copySuffix = " (Copy)"

type Funnel struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	clock       func() time.Time
}

func NewFunnel(persistence persistence.Persistence) *Funnel {
	return &Funnel{
		persistence: persistence,
		logger:      log.WithModule("funnel_service"),
		clock:       now,
	}
}

// ListFunnelsRequest filters the funnel list. Uncategorized wins over CategoryID.
type ListFunnelsRequest struct {
	CategoryID    string
	Uncategorized bool
}

// FunnelPatch holds the fields of a partial funnel update; nil fields are left unchanged.
// An empty CategoryID moves the funnel out of its category.
type FunnelPatch struct {
	Name              *string
	Description       *string
	CategoryID        *string
	TriggerCondition  *models.TriggerCondition
	TriggerDelayValue *int
	TriggerDelayUnit  *timing.Unit
	IsActive          *bool
}

type TimelineResponse struct {
	Funnel       *models.Funnel             `json:"funnel"`
	TriggerLabel string                     `json:"trigger_label"`
	Steps        []enrollment.TimelineEntry `json:"steps"`
}

// List returns funnels newest first, each with its step count.
func (f *Funnel) List(ctx context.Context, req ListFunnelsRequest) ([]*models.Funnel, error) {
	opts := persistence.ListFunnelsOptions{Uncategorized: req.Uncategorized}
	if !req.Uncategorized {
		opts.CategoryID = req.CategoryID
	}

	funnels, err := f.persistence.FunnelRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}

	for _, funnel := range funnels {
		err = f.attachStepCount(ctx, funnel)
		if err != nil {
			return nil, err
		}
	}

	return funnels, nil
}

func (f *Funnel) attachStepCount(ctx context.Context, funnel *models.Funnel) error {
	count, err := f.persistence.StepRepository().CountByFunnel(ctx, funnel.ID)
	if err != nil {
		return fmt.Errorf("failed to count steps of funnel %s: %w", funnel.ID, err)
	}

	funnel.StepCount = count

	return nil
}

func (f *Funnel) FetchByID(ctx context.Context, id string) (*models.Funnel, error) {
	funnel, err := f.persistence.FunnelRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = f.attachStepCount(ctx, funnel)
	if err != nil {
		return nil, err
	}

	return funnel, nil
}

func validateFunnel(op string, funnel *models.Funnel) error {
	if strings.TrimSpace(funnel.Name) == "" {
		return NewValidationError(op, "name_required", "funnel name is required", ErrNameRequired)
	}

	if !funnel.TriggerCondition.Valid() {
		return NewValidationError(op, "invalid_trigger_condition",
			fmt.Sprintf("trigger condition %q is not supported", funnel.TriggerCondition), ErrInvalidTriggerCondition)
	}

	if !funnel.TriggerDelayUnit.Valid() {
		return NewValidationError(op, "invalid_unit",
			fmt.Sprintf("trigger delay unit %q is not supported", funnel.TriggerDelayUnit), ErrInvalidUnit)
	}

	return nil
}

// Create stores a new funnel. Trigger condition defaults to rental_created and the delay unit to days.
func (f *Funnel) Create(ctx context.Context, funnel *models.Funnel) (*models.Funnel, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "funnels.create")
	defer span.End()

	funnel.Name = strings.TrimSpace(funnel.Name)

	if funnel.TriggerCondition == "" {
		funnel.TriggerCondition = models.TriggerRentalCreated
	}

	if funnel.TriggerDelayUnit == "" {
		funnel.TriggerDelayUnit = timing.UnitDays
	}

	if funnel.CategoryID != nil && *funnel.CategoryID == "" {
		funnel.CategoryID = nil
	}

	err := validateFunnel("create_funnel", funnel)
	if err != nil {
		return nil, err
	}

	err = f.checkCategory(ctx, funnel.CategoryID)
	if err != nil {
		return nil, err
	}

	timestamp := f.clock()
	funnel.ID = newID()
	funnel.CreatedAt = timestamp
	funnel.UpdatedAt = timestamp
	funnel.StepCount = 0

	span.SetAttributes(attribute.String(otelhelper.FunnelIDKey, funnel.ID))

	err = f.persistence.FunnelRepository().Save(ctx, funnel)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.FunnelIDKey, funnel.ID))

		return nil, fmt.Errorf("failed to save funnel: %w", err)
	}

	f.logger.InfoContext(ctx, "funnel created", "funnel_id", funnel.ID, "name", funnel.Name,
		"trigger_condition", funnel.TriggerCondition)

	return funnel, nil
}

func (f *Funnel) checkCategory(ctx context.Context, categoryID *string) error {
	if categoryID == nil {
		return nil
	}

	_, err := f.persistence.CategoryRepository().GetByID(ctx, *categoryID)

	return err
}

func (f *Funnel) Update(ctx context.Context, id string, patch FunnelPatch) (*models.Funnel, error) {
	funnel, err := f.persistence.FunnelRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		funnel.Name = strings.TrimSpace(*patch.Name)
	}

	if patch.Description != nil {
		funnel.Description = *patch.Description
	}

	if patch.CategoryID != nil {
		funnel.CategoryID = nil
		if *patch.CategoryID != "" {
			categoryID := *patch.CategoryID
			funnel.CategoryID = &categoryID
		}

		err = f.checkCategory(ctx, funnel.CategoryID)
		if err != nil {
			return nil, err
		}
	}

	if patch.TriggerCondition != nil {
		funnel.TriggerCondition = *patch.TriggerCondition
	}

	if patch.TriggerDelayValue != nil {
		funnel.TriggerDelayValue = *patch.TriggerDelayValue
	}

	if patch.TriggerDelayUnit != nil {
		funnel.TriggerDelayUnit = *patch.TriggerDelayUnit
	}

	if patch.IsActive != nil {
		funnel.IsActive = *patch.IsActive
	}

	err = validateFunnel("update_funnel", funnel)
	if err != nil {
		return nil, err
	}

	funnel.UpdatedAt = f.clock()

	err = f.persistence.FunnelRepository().Save(ctx, funnel)
	if err != nil {
		return nil, fmt.Errorf("failed to update funnel: %w", err)
	}

	err = f.attachStepCount(ctx, funnel)
	if err != nil {
		return nil, err
	}

	return funnel, nil
}

// Delete removes the funnel together with its steps.
func (f *Funnel) Delete(ctx context.Context, id string) error {
	err := f.persistence.FunnelRepository().Delete(ctx, id)
	if err != nil {
		return err
	}

	f.logger.InfoContext(ctx, "funnel deleted", "funnel_id", id)

	return nil
}

// Toggle flips the funnel's active flag.
func (f *Funnel) Toggle(ctx context.Context, id string) (*models.Funnel, error) {
	funnel, err := f.persistence.FunnelRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	active := !funnel.IsActive

	return f.Update(ctx, id, FunnelPatch{IsActive: &active})
}

// Duplicate copies the funnel and all of its steps. The copy starts inactive.
func (f *Funnel) Duplicate(ctx context.Context, id string) (*models.Funnel, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "funnels.duplicate", attribute.String(otelhelper.FunnelIDKey, id))
	defer span.End()

	source, err := f.persistence.FunnelRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	steps, err := f.persistence.StepRepository().ListByFunnel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of funnel %s: %w", id, err)
	}

	timestamp := f.clock()
	duplicate := *source
	duplicate.ID = newID()
	duplicate.Name = source.Name + copySuffix
	duplicate.IsActive = false
	duplicate.CreatedAt = timestamp
	duplicate.UpdatedAt = timestamp

	err = f.persistence.FunnelRepository().Save(ctx, &duplicate)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save funnel copy: %w", err)
	}

	copies := make([]*models.FunnelStep, 0, len(steps))
	for _, step := range steps {
		copied := *step
		copied.ID = newID()
		copied.FunnelID = duplicate.ID
		copied.CreatedAt = timestamp
		copied.Message = nil
		copies = append(copies, &copied)
	}

	if len(copies) > 0 {
		err = f.persistence.StepRepository().SaveBatch(ctx, copies)
		if err != nil {
			otelhelper.SetError(span, err)
			_ = f.persistence.FunnelRepository().Delete(ctx, duplicate.ID)

			return nil, fmt.Errorf("failed to copy funnel steps: %w", err)
		}
	}

	duplicate.StepCount = len(copies)

	f.logger.InfoContext(ctx, "funnel duplicated", "source_funnel_id", id, "funnel_id", duplicate.ID, "steps", len(copies))

	return &duplicate, nil
}

// Timeline lists the funnel's steps in order with their offset labels.
func (f *Funnel) Timeline(ctx context.Context, id string) (*TimelineResponse, error) {
	funnel, err := f.persistence.FunnelRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	steps, err := f.persistence.StepRepository().ListByFunnel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of funnel %s: %w", id, err)
	}

	funnel.StepCount = len(steps)

	return &TimelineResponse{
		Funnel:       funnel,
		TriggerLabel: funnel.TriggerLabel(),
		Steps:        enrollment.Timeline(steps),
	}, nil
}
