// Package persistence provides the storage abstraction for funnels, steps, templates and enrollments.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/funnels/pkg/models"
)

type Persistence interface {
	CategoryRepository() CategoryRepository
	FunnelRepository() FunnelRepository
	StepRepository() StepRepository
	MessageRepository() MessageRepository
	EnrollmentRepository() EnrollmentRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// CategoryRepository lists categories ordered by name.
type CategoryRepository interface {
	List(ctx context.Context) ([]*models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Save(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
}

type ListFunnelsOptions struct {
	CategoryID       string
	Uncategorized    bool
	ActiveOnly       bool
	TriggerCondition models.TriggerCondition
}

// FunnelRepository lists funnels newest first. Deleting a funnel deletes its steps.
type FunnelRepository interface {
	List(ctx context.Context, opts ListFunnelsOptions) ([]*models.Funnel, error)
	GetByID(ctx context.Context, id string) (*models.Funnel, error)
	Save(ctx context.Context, funnel *models.Funnel) error
	Delete(ctx context.Context, id string) error
}

// StepRepository lists steps by ascending step number.
type StepRepository interface {
	ListByFunnel(ctx context.Context, funnelID string) ([]*models.FunnelStep, error)
	CountByFunnel(ctx context.Context, funnelID string) (int, error)
	GetByID(ctx context.Context, id string) (*models.FunnelStep, error)
	Save(ctx context.Context, step *models.FunnelStep) error
	SaveBatch(ctx context.Context, steps []*models.FunnelStep) error
	Delete(ctx context.Context, id string) error
}

type ListMessagesOptions struct {
	Category    string
	MessageType models.MessageType
	ActiveOnly  bool
}

// MessageRepository lists templates ordered by name.
type MessageRepository interface {
	List(ctx context.Context, opts ListMessagesOptions) ([]*models.MessageTemplate, error)
	GetByID(ctx context.Context, id string) (*models.MessageTemplate, error)
	Save(ctx context.Context, message *models.MessageTemplate) error
	Delete(ctx context.Context, id string) error
}

type ListEnrollmentsOptions struct {
	Status     models.EnrollmentStatus
	FunnelID   string
	CustomerID string
}

// EnrollmentRepository lists enrollments newest first.
type EnrollmentRepository interface {
	List(ctx context.Context, opts ListEnrollmentsOptions) ([]*models.Enrollment, error)
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)
	Count(ctx context.Context, opts ListEnrollmentsOptions) (int, error)

	// Create stores the enrollment together with its materialized executions. Either all rows
	// are written or none are.
	Create(ctx context.Context, enrollment *models.Enrollment, executions []*models.StepExecution) error

	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type ListExecutionsOptions struct {
	EnrollmentID    string
	Status          models.ExecutionStatus
	ScheduledBefore *time.Time
	ExecutedSince   *time.Time
}

// ExecutionRepository lists executions by ascending scheduled date.
// TransitionPending and DeletePending check and write in one step: they only act on
// a pending execution and fail with ErrExecutionNotPending once it has left pending.
type ExecutionRepository interface {
	List(ctx context.Context, opts ListExecutionsOptions) ([]*models.StepExecution, error)
	GetByID(ctx context.Context, id string) (*models.StepExecution, error)
	Count(ctx context.Context, opts ListExecutionsOptions) (int, error)
	TransitionPending(ctx context.Context, id string, status models.ExecutionStatus, executedAt *time.Time) error
	DeletePending(ctx context.Context, id string) error
}
