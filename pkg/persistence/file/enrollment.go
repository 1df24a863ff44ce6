package file

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
)

type enrollmentRepository struct {
	fp *Persistence
}

func (r *enrollmentRepository) List(_ context.Context, opts persistence.ListEnrollmentsOptions) ([]*models.Enrollment, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	return r.filter(opts)
}

func (r *enrollmentRepository) filter(opts persistence.ListEnrollmentsOptions) ([]*models.Enrollment, error) {
	all, err := r.fp.enrollments.all()
	if err != nil {
		return nil, err
	}

	enrollments := make([]*models.Enrollment, 0, len(all))

	for _, enrollment := range all {
		if opts.Status != "" && enrollment.Status != opts.Status {
			continue
		}

		if opts.FunnelID != "" && enrollment.FunnelID != opts.FunnelID {
			continue
		}

		if opts.CustomerID != "" && enrollment.CustomerID != opts.CustomerID {
			continue
		}

		enrollments = append(enrollments, enrollment)
	}

	slices.SortFunc(enrollments, func(a, b *models.Enrollment) int {
		return cmp.Or(b.EnrolledAt.Compare(a.EnrolledAt), cmp.Compare(b.ID, a.ID))
	})

	return enrollments, nil
}

func (r *enrollmentRepository) GetByID(_ context.Context, id string) (*models.Enrollment, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	enrollment, err := r.fp.enrollments.get(id)
	if err != nil {
		return nil, err
	}

	if enrollment == nil {
		return nil, persistence.NewEntityError("GetByID", "enrollment", id, persistence.ErrEnrollmentNotFound)
	}

	return enrollment, nil
}

func (r *enrollmentRepository) Count(_ context.Context, opts persistence.ListEnrollmentsOptions) (int, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	enrollments, err := r.filter(opts)
	if err != nil {
		return 0, err
	}

	return len(enrollments), nil
}

// Create writes the executions first and rolls them back if any write fails, so the
// enrollment document only appears once its executions exist.
func (r *enrollmentRepository) Create(_ context.Context, enrollment *models.Enrollment, executions []*models.StepExecution) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	written := make([]string, 0, len(executions))

	rollback := func() {
		for _, id := range written {
			_, _ = r.fp.executions.remove(id)
		}
	}

	for _, execution := range executions {
		err := r.fp.executions.put(execution)
		if err != nil {
			rollback()

			return persistence.NewEntityError("Create", "enrollment", enrollment.ID, err)
		}

		written = append(written, execution.ID)
	}

	err := r.fp.enrollments.put(enrollment)
	if err != nil {
		rollback()

		return persistence.NewEntityError("Create", "enrollment", enrollment.ID, err)
	}

	return nil
}

func (r *enrollmentRepository) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	enrollment, err := r.fp.enrollments.get(id)
	if err != nil {
		return err
	}

	if enrollment == nil {
		return persistence.NewEntityError("UpdateStatus", "enrollment", id, persistence.ErrEnrollmentNotFound)
	}

	enrollment.Status = status

	return r.fp.enrollments.put(enrollment)
}

type executionRepository struct {
	fp *Persistence
}

func (r *executionRepository) List(_ context.Context, opts persistence.ListExecutionsOptions) ([]*models.StepExecution, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	return r.filter(opts)
}

func (r *executionRepository) filter(opts persistence.ListExecutionsOptions) ([]*models.StepExecution, error) {
	all, err := r.fp.executions.all()
	if err != nil {
		return nil, err
	}

	executions := make([]*models.StepExecution, 0, len(all))

	for _, execution := range all {
		if !matchesExecution(execution, opts) {
			continue
		}

		executions = append(executions, execution)
	}

	slices.SortFunc(executions, func(a, b *models.StepExecution) int {
		return cmp.Or(a.ScheduledAt.Compare(b.ScheduledAt), cmp.Compare(a.ID, b.ID))
	})

	return executions, nil
}

func matchesExecution(execution *models.StepExecution, opts persistence.ListExecutionsOptions) bool {
	if opts.EnrollmentID != "" && execution.EnrollmentID != opts.EnrollmentID {
		return false
	}

	if opts.Status != "" && execution.Status != opts.Status {
		return false
	}

	if opts.ScheduledBefore != nil && execution.ScheduledAt.After(*opts.ScheduledBefore) {
		return false
	}

	if opts.ExecutedSince != nil && (execution.ExecutedAt == nil || execution.ExecutedAt.Before(*opts.ExecutedSince)) {
		return false
	}

	return true
}

func (r *executionRepository) GetByID(_ context.Context, id string) (*models.StepExecution, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	execution, err := r.fp.executions.get(id)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, persistence.NewEntityError("GetByID", "step execution", id, persistence.ErrExecutionNotFound)
	}

	return execution, nil
}

func (r *executionRepository) Count(_ context.Context, opts persistence.ListExecutionsOptions) (int, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	executions, err := r.filter(opts)
	if err != nil {
		return 0, err
	}

	return len(executions), nil
}

// pending loads id for a write. The caller holds the write lock.
func (r *executionRepository) pending(op, id string) (*models.StepExecution, error) {
	execution, err := r.fp.executions.get(id)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, persistence.NewEntityError(op, "step execution", id, persistence.ErrExecutionNotFound)
	}

	if execution.Status != models.ExecutionPending {
		return nil, persistence.NewEntityError(op, "step execution", id, persistence.ErrExecutionNotPending)
	}

	return execution, nil
}

func (r *executionRepository) TransitionPending(
	_ context.Context,
	id string,
	status models.ExecutionStatus,
	executedAt *time.Time,
) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	execution, err := r.pending("TransitionPending", id)
	if err != nil {
		return err
	}

	execution.Status = status
	execution.ExecutedAt = executedAt

	return r.fp.executions.put(execution)
}

func (r *executionRepository) DeletePending(_ context.Context, id string) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	_, err := r.pending("DeletePending", id)
	if err != nil {
		return err
	}

	_, err = r.fp.executions.remove(id)

	return err
}
