package mocks

import (
	"context"
	"time"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
// Repository getters return whatever repositories the test assigned.
type MockPersistence struct {
	mock.Mock

	Categories  persistence.CategoryRepository
	Funnels     persistence.FunnelRepository
	Steps       persistence.StepRepository
	Messages    persistence.MessageRepository
	Enrollments persistence.EnrollmentRepository
	Executions  persistence.ExecutionRepository
}

func (m *MockPersistence) CategoryRepository() persistence.CategoryRepository { return m.Categories }

func (m *MockPersistence) FunnelRepository() persistence.FunnelRepository { return m.Funnels }

func (m *MockPersistence) StepRepository() persistence.StepRepository { return m.Steps }

func (m *MockPersistence) MessageRepository() persistence.MessageRepository { return m.Messages }

func (m *MockPersistence) EnrollmentRepository() persistence.EnrollmentRepository {
	return m.Enrollments
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.Executions
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockFunnelRepository is a mock implementation of persistence.FunnelRepository interface.
type MockFunnelRepository struct {
	mock.Mock
}

func (m *MockFunnelRepository) List(ctx context.Context, opts persistence.ListFunnelsOptions) ([]*models.Funnel, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Funnel), args.Error(1)
}

func (m *MockFunnelRepository) GetByID(ctx context.Context, id string) (*models.Funnel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Funnel), args.Error(1)
}

func (m *MockFunnelRepository) Save(ctx context.Context, funnel *models.Funnel) error {
	args := m.Called(ctx, funnel)

	return args.Error(0)
}

func (m *MockFunnelRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.StepExecution, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.StepExecution), args.Error(1)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.StepExecution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.StepExecution), args.Error(1)
}

func (m *MockExecutionRepository) Count(ctx context.Context, opts persistence.ListExecutionsOptions) (int, error) {
	args := m.Called(ctx, opts)

	return args.Int(0), args.Error(1)
}

func (m *MockExecutionRepository) TransitionPending(
	ctx context.Context,
	id string,
	status models.ExecutionStatus,
	executedAt *time.Time,
) error {
	args := m.Called(ctx, id, status, executedAt)

	return args.Error(0)
}

func (m *MockExecutionRepository) DeletePending(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}
