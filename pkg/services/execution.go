package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/funnels/pkg/eventbus"
	"github.com/dukex/funnels/pkg/events"
	"github.com/dukex/funnels/pkg/log"
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/otelhelper"
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/timing"
	"go.opentelemetry.io/otel/attribute"
)

const unknownFunnelName = "Unknown"

type Execution struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	clock       func() time.Time
}

func NewExecution(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Execution {
	return &Execution{
		persistence: persistence,
		publisher:   publisher,
		logger:      log.WithModule("execution_service"),
		clock:       now,
	}
}

// QueueItem is a pending execution with the context shown in the queue.
type QueueItem struct {
	*models.StepExecution

	TimeUntil   string             `json:"time_until"`
	CustomerID  string             `json:"customer_id"`
	FunnelID    string             `json:"funnel_id"`
	FunnelName  string             `json:"funnel_name"`
	StepNumber  *int               `json:"step_number"`
	MessageType models.MessageType `json:"message_type,omitempty"`
}

// Queue returns every pending execution, soonest first.
func (x *Execution) Queue(ctx context.Context) ([]*QueueItem, error) {
	executions, err := x.persistence.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
		Status: models.ExecutionPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending executions: %w", err)
	}

	current := x.clock()
	enrollments := make(map[string]*models.Enrollment)
	funnelNames := make(map[string]string)
	steps := make(map[string]*models.FunnelStep)
	items := make([]*QueueItem, 0, len(executions))

	for _, execution := range executions {
		item := &QueueItem{
			StepExecution: execution,
			TimeUntil:     timing.Until(current, execution.ScheduledAt),
			FunnelName:    unknownFunnelName,
		}

		owner, seen := enrollments[execution.EnrollmentID]
		if !seen {
			owner, err = x.persistence.EnrollmentRepository().GetByID(ctx, execution.EnrollmentID)
			if err != nil && !persistence.IsNotFound(err) {
				return nil, fmt.Errorf("failed to load enrollment %s: %w", execution.EnrollmentID, err)
			}

			enrollments[execution.EnrollmentID] = owner
		}

		if owner != nil {
			item.CustomerID = owner.CustomerID
			item.FunnelID = owner.FunnelID
			item.FunnelName, err = x.funnelName(ctx, owner.FunnelID, funnelNames)
			if err != nil {
				return nil, err
			}
		}

		step, seen := steps[execution.FunnelStepID]
		if !seen {
			step, err = x.persistence.StepRepository().GetByID(ctx, execution.FunnelStepID)
			if err != nil && !persistence.IsNotFound(err) {
				return nil, fmt.Errorf("failed to load funnel step %s: %w", execution.FunnelStepID, err)
			}

			steps[execution.FunnelStepID] = step
		}

		if step != nil {
			item.StepNumber = &step.StepNumber
			item.MessageType = step.MessageType
		}

		items = append(items, item)
	}

	return items, nil
}

func (x *Execution) funnelName(ctx context.Context, funnelID string, cache map[string]string) (string, error) {
	if name, ok := cache[funnelID]; ok {
		return name, nil
	}

	name := unknownFunnelName

	funnel, err := x.persistence.FunnelRepository().GetByID(ctx, funnelID)
	switch {
	case err == nil:
		name = funnel.Name
	case !persistence.IsFunnelNotFound(err):
		return "", fmt.Errorf("failed to load funnel %s: %w", funnelID, err)
	}

	cache[funnelID] = name

	return name, nil
}

// ListByEnrollment returns the enrollment's executions by scheduled date.
func (x *Execution) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*models.StepExecution, error) {
	_, err := x.persistence.EnrollmentRepository().GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	executions, err := x.persistence.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
		EnrollmentID: enrollmentID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return executions, nil
}

func (x *Execution) pending(ctx context.Context, op, id string) (*models.StepExecution, error) {
	execution, err := x.persistence.ExecutionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionPending {
		return nil, notPending(op, id, fmt.Sprintf("execution %s is %s", id, execution.Status))
	}

	return execution, nil
}

func notPending(op, id, message string) *ServiceError {
	return &ServiceError{Op: op, Code: "execution_not_pending", Message: message, Err: ErrExecutionNotPending}
}

// conflictIfRaced turns a lost race on a guarded write into the same conflict the pre-check reports.
func conflictIfRaced(op, id string, err error) error {
	if persistence.IsExecutionNotPending(err) {
		return notPending(op, id, fmt.Sprintf("execution %s is no longer pending", id))
	}

	return err
}

// Send marks a pending execution as sent now.
func (x *Execution) Send(ctx context.Context, id string) (*models.StepExecution, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "executions.send", attribute.String(otelhelper.ExecutionIDKey, id))
	defer span.End()

	execution, err := x.pending(ctx, "send_execution", id)
	if err != nil {
		return nil, err
	}

	err = x.markSent(ctx, execution, x.clock())
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, conflictIfRaced("send_execution", id, err)
	}

	return execution, nil
}

func (x *Execution) markSent(ctx context.Context, execution *models.StepExecution, executedAt time.Time) error {
	err := x.persistence.ExecutionRepository().TransitionPending(ctx, execution.ID, models.ExecutionSent, &executedAt)
	if err != nil {
		return err
	}

	execution.Status = models.ExecutionSent
	execution.ExecutedAt = &executedAt

	x.logger.InfoContext(ctx, "execution sent", "execution_id", execution.ID, "enrollment_id", execution.EnrollmentID)

	publish(ctx, x.logger, x.publisher, execution.EnrollmentID, events.ExecutionSent{
		BaseEvent:    events.NewBaseEvent(newID(), events.ExecutionSentEvent, execution.EnrollmentID),
		ExecutionID:  execution.ID,
		FunnelStepID: execution.FunnelStepID,
		ExecutedAt:   executedAt,
	})

	return nil
}

// Skip marks a pending execution as skipped. The executed date stays empty.
func (x *Execution) Skip(ctx context.Context, id string) (*models.StepExecution, error) {
	execution, err := x.pending(ctx, "skip_execution", id)
	if err != nil {
		return nil, err
	}

	err = x.persistence.ExecutionRepository().TransitionPending(ctx, id, models.ExecutionSkipped, nil)
	if err != nil {
		return nil, conflictIfRaced("skip_execution", id, err)
	}

	execution.Status = models.ExecutionSkipped

	x.logger.InfoContext(ctx, "execution skipped", "execution_id", id, "enrollment_id", execution.EnrollmentID)

	publish(ctx, x.logger, x.publisher, execution.EnrollmentID, events.ExecutionSkipped{
		BaseEvent:    events.NewBaseEvent(newID(), events.ExecutionSkippedEvent, execution.EnrollmentID),
		ExecutionID:  id,
		FunnelStepID: execution.FunnelStepID,
	})

	return execution, nil
}

// Cancel deletes a pending execution.
func (x *Execution) Cancel(ctx context.Context, id string) error {
	execution, err := x.pending(ctx, "cancel_execution", id)
	if err != nil {
		return err
	}

	err = x.persistence.ExecutionRepository().DeletePending(ctx, id)
	if err != nil {
		return conflictIfRaced("cancel_execution", id, err)
	}

	x.logger.InfoContext(ctx, "execution cancelled", "execution_id", id, "enrollment_id", execution.EnrollmentID)

	publish(ctx, x.logger, x.publisher, execution.EnrollmentID, events.ExecutionCancelled{
		BaseEvent:    events.NewBaseEvent(newID(), events.ExecutionCancelledEvent, execution.EnrollmentID),
		ExecutionID:  id,
		FunnelStepID: execution.FunnelStepID,
	})

	return nil
}

// SendDue marks every pending execution scheduled at or before now as sent. Executions
// another caller resolved in the meantime are left out of the result.
func (x *Execution) SendDue(ctx context.Context) ([]*models.StepExecution, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "executions.send_due")
	defer span.End()

	current := x.clock()

	due, err := x.persistence.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
		Status:          models.ExecutionPending,
		ScheduledBefore: &current,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list due executions: %w", err)
	}

	sent := make([]*models.StepExecution, 0, len(due))

	for _, execution := range due {
		err = x.markSent(ctx, execution, current)
		if persistence.IsExecutionNotPending(err) {
			x.logger.DebugContext(ctx, "execution left pending before it was sent", "execution_id", execution.ID)

			continue
		}

		if err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.ExecutionIDKey, execution.ID))

			return nil, err
		}

		sent = append(sent, execution)
	}

	span.SetAttributes(attribute.Int(otelhelper.ExecutionCountKey, len(sent)))

	return sent, nil
}
