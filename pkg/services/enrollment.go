package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/funnels/pkg/enrollment"
	"github.com/dukex/funnels/pkg/eventbus"
	"github.com/dukex/funnels/pkg/events"
	"github.com/dukex/funnels/pkg/idempotency"
	"github.com/dukex/funnels/pkg/log"
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/otelhelper"
	"github.com/dukex/funnels/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

const defaultIdempotencyTTL = 24 * time.Hour

type Enrollment struct {
	persistence    persistence.Persistence
	publisher      eventbus.EventPublisher
	idempotency    idempotency.Store
	idempotencyTTL time.Duration
	logger         *slog.Logger
	clock          func() time.Time
}

func NewEnrollment(
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	store idempotency.Store,
) *Enrollment {
	return &Enrollment{
		persistence:    persistence,
		publisher:      publisher,
		idempotency:    store,
		idempotencyTTL: defaultIdempotencyTTL,
		logger:         log.WithModule("enrollment_service"),
		clock:          now,
	}
}

type ListEnrollmentsRequest struct {
	Status     models.EnrollmentStatus
	FunnelID   string
	CustomerID string
}

// EnrollmentView is an enrollment with its funnel name and progress.
type EnrollmentView struct {
	*models.Enrollment

	FunnelName string              `json:"funnel_name"`
	Progress   enrollment.Progress `json:"progress"`
}

type EnrollmentDetail struct {
	EnrollmentView

	Executions []*models.StepExecution `json:"executions"`
}

// EnrollRequest enrolls one customer into one funnel. EnrolledAt defaults to now.
type EnrollRequest struct {
	CustomerID     string
	FunnelID       string
	RentalID       *string
	EnrolledAt     *time.Time
	IdempotencyKey string
}

// TriggerRequest reports a business event for a customer. OccurredAt defaults to now.
type TriggerRequest struct {
	Event          models.TriggerCondition
	CustomerID     string
	RentalID       *string
	OccurredAt     *time.Time
	IdempotencyKey string
}

type Stats struct {
	ActiveEnrollments    int `json:"active_enrollments"`
	CompletedEnrollments int `json:"completed_enrollments"`
	SentToday            int `json:"sent_today"`
	PendingExecutions    int `json:"pending_executions"`
}

// List returns enrollments newest first.
func (e *Enrollment) List(ctx context.Context, req ListEnrollmentsRequest) ([]*EnrollmentView, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, NewValidationError("list_enrollments", "invalid_status",
			fmt.Sprintf("enrollment status %q is not supported", req.Status), ErrInvalidEnrollmentStatus)
	}

	enrollments, err := e.persistence.EnrollmentRepository().List(ctx, persistence.ListEnrollmentsOptions{
		Status:     req.Status,
		FunnelID:   req.FunnelID,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	names := make(map[string]string)
	views := make([]*EnrollmentView, 0, len(enrollments))

	for _, item := range enrollments {
		view, _, err := e.view(ctx, item, names)
		if err != nil {
			return nil, err
		}

		views = append(views, view)
	}

	return views, nil
}

// view enriches an enrollment. names caches funnel names across calls.
func (e *Enrollment) view(
	ctx context.Context,
	item *models.Enrollment,
	names map[string]string,
) (*EnrollmentView, []*models.StepExecution, error) {
	name, cached := names[item.FunnelID]
	if !cached {
		funnel, err := e.persistence.FunnelRepository().GetByID(ctx, item.FunnelID)

		switch {
		case err == nil:
			name = funnel.Name
		case persistence.IsFunnelNotFound(err):
			name = ""
		default:
			return nil, nil, fmt.Errorf("failed to load funnel %s: %w", item.FunnelID, err)
		}

		names[item.FunnelID] = name
	}

	executions, err := e.persistence.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{
		EnrollmentID: item.ID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list executions of enrollment %s: %w", item.ID, err)
	}

	return &EnrollmentView{
		Enrollment: item,
		FunnelName: name,
		Progress:   enrollment.ProgressOf(executions, len(executions)),
	}, executions, nil
}

func (e *Enrollment) FetchByID(ctx context.Context, id string) (*EnrollmentDetail, error) {
	item, err := e.persistence.EnrollmentRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view, executions, err := e.view(ctx, item, make(map[string]string))
	if err != nil {
		return nil, err
	}

	return &EnrollmentDetail{EnrollmentView: *view, Executions: executions}, nil
}

// claim reserves an idempotency key and returns the func that gives it back.
// An empty key always succeeds.
func (e *Enrollment) claim(ctx context.Context, op, key string) (func(), error) {
	if key == "" {
		return func() {}, nil
	}

	claimed, release, err := e.reserve(ctx, op+":"+key)
	if err != nil {
		return nil, err
	}

	if !claimed {
		return nil, duplicateRequest(op, key)
	}

	return release, nil
}

// reserve claims key in the store. The returned release is only set when the key was claimed.
func (e *Enrollment) reserve(ctx context.Context, key string) (bool, func(), error) {
	if e.idempotency == nil {
		return true, func() {}, nil
	}

	claimed, err := e.idempotency.Claim(ctx, key, e.idempotencyTTL)
	if err != nil {
		return false, nil, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	if !claimed {
		return false, nil, nil
	}

	return true, func() {
		err := e.idempotency.Release(context.WithoutCancel(ctx), key)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to release idempotency key", "key", key, "error", err)
		}
	}, nil
}

func duplicateRequest(op, key string) *ServiceError {
	return &ServiceError{Op: op, Code: "duplicate_request", Message: "idempotency key " + key + " was already used", Err: ErrDuplicateRequest}
}

// Enroll creates the enrollment and materializes one pending execution per funnel step.
func (e *Enrollment) Enroll(ctx context.Context, req EnrollRequest) (*EnrollmentDetail, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "enrollments.enroll",
		attribute.String(otelhelper.FunnelIDKey, req.FunnelID),
		attribute.String(otelhelper.CustomerIDKey, req.CustomerID),
	)
	defer span.End()

	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		return nil, NewValidationError("enroll", "customer_required", "customer_id is required", ErrCustomerRequired)
	}

	funnel, err := e.persistence.FunnelRepository().GetByID(ctx, req.FunnelID)
	if err != nil {
		return nil, err
	}

	release, err := e.claim(ctx, "enroll", req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	enrolledAt := e.clock()
	if req.EnrolledAt != nil {
		enrolledAt = req.EnrolledAt.UTC().Truncate(time.Microsecond)
	}

	detail, err := e.materialize(ctx, funnel, req.CustomerID, req.RentalID, enrolledAt)
	if err != nil {
		release()
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.String(otelhelper.EnrollmentIDKey, detail.ID),
		attribute.Int(otelhelper.ExecutionCountKey, len(detail.Executions)),
	)

	return detail, nil
}

// EnrollFromEvent enrolls the customer into every active funnel triggered by the event.
// Each enrollment starts at the event time shifted by the funnel's trigger delay.
func (e *Enrollment) EnrollFromEvent(ctx context.Context, req TriggerRequest) ([]*EnrollmentDetail, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "enrollments.enroll_from_event",
		attribute.String(otelhelper.TriggerEventKey, string(req.Event)),
		attribute.String(otelhelper.CustomerIDKey, req.CustomerID),
	)
	defer span.End()

	if req.Event == "" {
		return nil, NewValidationError("enroll_from_event", "event_required", "event is required", ErrEventRequired)
	}

	if !req.Event.Valid() {
		return nil, NewValidationError("enroll_from_event", "invalid_trigger_condition",
			fmt.Sprintf("event %q is not a trigger condition", req.Event), ErrInvalidTriggerCondition)
	}

	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		return nil, NewValidationError("enroll_from_event", "customer_required", "customer_id is required", ErrCustomerRequired)
	}

	funnels, err := e.persistence.FunnelRepository().List(ctx, persistence.ListFunnelsOptions{
		ActiveOnly:       true,
		TriggerCondition: req.Event,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels for %s: %w", req.Event, err)
	}

	occurredAt := e.clock()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC().Truncate(time.Microsecond)
	}

	details := make([]*EnrollmentDetail, 0, len(funnels))
	skipped := 0

	for _, funnel := range funnels {
		release := func() {}

		if req.IdempotencyKey != "" {
			var claimed bool

			claimed, release, err = e.reserve(ctx, "event:"+req.IdempotencyKey+":"+funnel.ID)
			if err != nil {
				return details, err
			}

			if !claimed {
				skipped++

				continue
			}
		}

		detail, err := e.materialize(ctx, funnel, req.CustomerID, req.RentalID, enrollment.FunnelStart(funnel, occurredAt))
		if err != nil {
			release()
			otelhelper.SetError(span, err, attribute.String(otelhelper.FunnelIDKey, funnel.ID))

			return details, err
		}

		details = append(details, detail)
	}

	if skipped > 0 && skipped == len(funnels) {
		return nil, duplicateRequest("enroll_from_event", req.IdempotencyKey)
	}

	e.logger.InfoContext(ctx, "business event processed", "event", req.Event, "customer_id", req.CustomerID,
		"enrollments", len(details))

	return details, nil
}

func (e *Enrollment) materialize(
	ctx context.Context,
	funnel *models.Funnel,
	customerID string,
	rentalID *string,
	enrolledAt time.Time,
) (*EnrollmentDetail, error) {
	steps, err := e.persistence.StepRepository().ListByFunnel(ctx, funnel.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of funnel %s: %w", funnel.ID, err)
	}

	timestamp := e.clock()
	item := &models.Enrollment{
		ID:         newID(),
		CustomerID: customerID,
		RentalID:   rentalID,
		FunnelID:   funnel.ID,
		EnrolledAt: enrolledAt,
		Status:     models.EnrollmentActive,
		CreatedAt:  timestamp,
	}

	executions := enrollment.Materialize(item, steps)
	for _, execution := range executions {
		execution.ID = newID()
		execution.CreatedAt = timestamp
	}

	err = e.persistence.EnrollmentRepository().Create(ctx, item, executions)
	if err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	e.logger.InfoContext(ctx, "customer enrolled",
		"enrollment_id", item.ID,
		"funnel_id", funnel.ID,
		"customer_id", customerID,
		"enrolled_at", enrolledAt,
		"executions", len(executions),
	)

	e.publish(ctx, item.ID, events.EnrollmentCreated{
		BaseEvent:      events.NewBaseEvent(newID(), events.EnrollmentCreatedEvent, item.ID),
		FunnelID:       funnel.ID,
		CustomerID:     customerID,
		RentalID:       rentalID,
		EnrolledAt:     enrolledAt,
		ExecutionCount: len(executions),
	})

	return &EnrollmentDetail{
		EnrollmentView: EnrollmentView{
			Enrollment: item,
			FunnelName: funnel.Name,
			Progress:   enrollment.ProgressOf(executions, len(executions)),
		},
		Executions: executions,
	}, nil
}

// publish sends the event after the state change is stored. Failures are logged
// and do not undo the change.
func (e *Enrollment) publish(ctx context.Context, key string, event eventbus.Event) {
	publish(ctx, e.logger, e.publisher, key, event)
}

func publish(ctx context.Context, logger *slog.Logger, publisher eventbus.EventPublisher, key string, event eventbus.Event) {
	if publisher == nil {
		return
	}

	err := publisher.Publish(ctx, key, event)
	if err != nil {
		logger.ErrorContext(ctx, "failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}

func (e *Enrollment) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	if !status.Valid() {
		return nil, NewValidationError("update_enrollment_status", "invalid_status",
			fmt.Sprintf("enrollment status %q is not supported", status), ErrInvalidEnrollmentStatus)
	}

	item, err := e.persistence.EnrollmentRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := item.Status
	if previous == status {
		return item, nil
	}

	err = e.persistence.EnrollmentRepository().UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	item.Status = status

	e.logger.InfoContext(ctx, "enrollment status changed", "enrollment_id", id, "from", previous, "to", status)

	e.publish(ctx, id, events.EnrollmentStatusChanged{
		BaseEvent: events.NewBaseEvent(newID(), events.EnrollmentStatusChangedEvent, id),
		Previous:  previous,
		Status:    status,
	})

	return item, nil
}

// Stats counts enrollments by status and executions sent since UTC midnight or still pending.
func (e *Enrollment) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats Stats
		err   error
	)

	stats.ActiveEnrollments, err = e.persistence.EnrollmentRepository().Count(ctx,
		persistence.ListEnrollmentsOptions{Status: models.EnrollmentActive})
	if err != nil {
		return nil, fmt.Errorf("failed to count active enrollments: %w", err)
	}

	stats.CompletedEnrollments, err = e.persistence.EnrollmentRepository().Count(ctx,
		persistence.ListEnrollmentsOptions{Status: models.EnrollmentCompleted})
	if err != nil {
		return nil, fmt.Errorf("failed to count completed enrollments: %w", err)
	}

	today := e.clock().Truncate(24 * time.Hour)

	stats.SentToday, err = e.persistence.ExecutionRepository().Count(ctx,
		persistence.ListExecutionsOptions{Status: models.ExecutionSent, ExecutedSince: &today})
	if err != nil {
		return nil, fmt.Errorf("failed to count sent executions: %w", err)
	}

	stats.PendingExecutions, err = e.persistence.ExecutionRepository().Count(ctx,
		persistence.ListExecutionsOptions{Status: models.ExecutionPending})
	if err != nil {
		return nil, fmt.Errorf("failed to count pending executions: %w", err)
	}

	return &stats, nil
}
