package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/funnels/pkg/enrollment"
	"github.com/dukex/funnels/pkg/log"
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/otelhelper"
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/timing"
	"go.opentelemetry.io/otel/attribute"
)

type Step struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	clock       func() time.Time
}

func NewStep(persistence persistence.Persistence) *Step {
	return &Step{
		persistence: persistence,
		logger:      log.WithModule("step_service"),
		clock:       now,
	}
}

// StepPatch holds the fields of a partial step update; nil fields are left unchanged.
type StepPatch struct {
	StepNumber  *int
	MessageID   *string
	MessageType *models.MessageType
	DelayValue  *int
	DelayUnit   *timing.Unit
}

// List returns the funnel's steps by step number, each with its template summary.
func (s *Step) List(ctx context.Context, funnelID string) ([]*models.FunnelStep, error) {
	if funnelID == "" {
		return nil, NewValidationError("list_steps", "funnel_id_required", "funnel_id is required", ErrInvalidRequest)
	}

	steps, err := s.persistence.StepRepository().ListByFunnel(ctx, funnelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}

	templates := make(map[string]*models.MessageSummary)

	for _, step := range steps {
		summary, seen := templates[step.MessageID]
		if !seen {
			message, err := s.persistence.MessageRepository().GetByID(ctx, step.MessageID)
			switch {
			case err == nil:
				summary = message.Summary()
			case persistence.IsMessageNotFound(err):
				summary = nil
			default:
				return nil, fmt.Errorf("failed to load message template %s: %w", step.MessageID, err)
			}

			templates[step.MessageID] = summary
		}

		step.Message = summary
	}

	return steps, nil
}

// Create stores one or more steps atomically. A zero step number takes the next free number.
func (s *Step) Create(ctx context.Context, steps []*models.FunnelStep) ([]*models.FunnelStep, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "funnel_steps.create")
	defer span.End()

	if len(steps) == 0 {
		return nil, NewValidationError("create_steps", "steps_required", "at least one step is required", ErrInvalidRequest)
	}

	existing := make(map[string][]*models.FunnelStep)
	timestamp := s.clock()

	for _, step := range steps {
		if step.FunnelID == "" {
			return nil, NewValidationError("create_steps", "funnel_id_required", "funnel_id is required", ErrInvalidRequest)
		}

		siblings, loaded := existing[step.FunnelID]
		if !loaded {
			_, err := s.persistence.FunnelRepository().GetByID(ctx, step.FunnelID)
			if err != nil {
				return nil, err
			}

			siblings, err = s.persistence.StepRepository().ListByFunnel(ctx, step.FunnelID)
			if err != nil {
				return nil, fmt.Errorf("failed to list steps: %w", err)
			}
		}

		if step.StepNumber == 0 {
			step.StepNumber = enrollment.NextStepNumber(siblings)
		}

		if step.DelayUnit == "" {
			step.DelayUnit = timing.UnitDays
		}

		err := s.validate(ctx, "create_steps", step)
		if err != nil {
			return nil, err
		}

		step.ID = newID()
		step.CreatedAt = timestamp
		existing[step.FunnelID] = append(siblings, step)
	}

	err := s.persistence.StepRepository().SaveBatch(ctx, steps)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save steps: %w", err)
	}

	for _, step := range steps {
		s.logger.InfoContext(ctx, "funnel step created", "step_id", step.ID, "funnel_id", step.FunnelID,
			"step_number", step.StepNumber)
	}

	return steps, nil
}

// validate checks the step fields and that its template exists with the same message type.
// An empty message type is taken from the template. The template summary is attached.
func (s *Step) validate(ctx context.Context, op string, step *models.FunnelStep) error {
	if step.StepNumber < 1 {
		return NewValidationError(op, "invalid_step_number", "step number must be positive", ErrInvalidStepNumber)
	}

	if step.DelayValue < 0 {
		return NewValidationError(op, "negative_delay", "delay value cannot be negative", ErrNegativeDelay)
	}

	if !step.DelayUnit.Valid() {
		return NewValidationError(op, "invalid_unit",
			fmt.Sprintf("delay unit %q is not supported", step.DelayUnit), ErrInvalidUnit)
	}

	if step.MessageType != "" && !step.MessageType.Valid() {
		return NewValidationError(op, "invalid_message_type",
			fmt.Sprintf("message type %q is not supported", step.MessageType), ErrInvalidMessageType)
	}

	if step.MessageID == "" {
		return NewValidationError(op, "message_id_required", "message_id is required", ErrInvalidRequest)
	}

	message, err := s.persistence.MessageRepository().GetByID(ctx, step.MessageID)
	if err != nil {
		if persistence.IsMessageNotFound(err) {
			return NewValidationError(op, "message_not_found",
				fmt.Sprintf("message template %s does not exist", step.MessageID), ErrInvalidRequest)
		}

		return fmt.Errorf("failed to load message template %s: %w", step.MessageID, err)
	}

	if step.MessageType == "" {
		step.MessageType = message.MessageType
	}

	if message.MessageType != step.MessageType {
		return NewValidationError(op, "message_type_mismatch",
			fmt.Sprintf("message template %s is %s, step is %s", message.ID, message.MessageType, step.MessageType),
			ErrMessageTypeMismatch)
	}

	step.Message = message.Summary()

	return nil
}

func (s *Step) Update(ctx context.Context, id string, patch StepPatch) (*models.FunnelStep, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "funnel_steps.update", attribute.String(otelhelper.StepIDKey, id))
	defer span.End()

	step, err := s.persistence.StepRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.StepNumber != nil {
		step.StepNumber = *patch.StepNumber
	}

	if patch.MessageID != nil {
		step.MessageID = *patch.MessageID
	}

	if patch.MessageType != nil {
		step.MessageType = *patch.MessageType
	}

	if patch.DelayValue != nil {
		step.DelayValue = *patch.DelayValue
	}

	if patch.DelayUnit != nil {
		step.DelayUnit = *patch.DelayUnit
	}

	err = s.validate(ctx, "update_step", step)
	if err != nil {
		return nil, err
	}

	err = s.persistence.StepRepository().Save(ctx, step)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to update step: %w", err)
	}

	return step, nil
}

// Delete removes the step. Executions already materialized from it are kept.
func (s *Step) Delete(ctx context.Context, id string) error {
	return s.persistence.StepRepository().Delete(ctx, id)
}
