package file

import (
	"cmp"
	"context"
	"slices"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
)

type funnelRepository struct {
	fp *Persistence
}

func (r *funnelRepository) List(_ context.Context, opts persistence.ListFunnelsOptions) ([]*models.Funnel, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	all, err := r.fp.funnels.all()
	if err != nil {
		return nil, err
	}

	funnels := make([]*models.Funnel, 0, len(all))

	for _, funnel := range all {
		if opts.Uncategorized && funnel.CategoryID != nil {
			continue
		}

		if opts.CategoryID != "" && (funnel.CategoryID == nil || *funnel.CategoryID != opts.CategoryID) {
			continue
		}

		if opts.ActiveOnly && !funnel.IsActive {
			continue
		}

		if opts.TriggerCondition != "" && funnel.TriggerCondition != opts.TriggerCondition {
			continue
		}

		funnels = append(funnels, funnel)
	}

	slices.SortFunc(funnels, func(a, b *models.Funnel) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	return funnels, nil
}

func (r *funnelRepository) GetByID(_ context.Context, id string) (*models.Funnel, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	funnel, err := r.fp.funnels.get(id)
	if err != nil {
		return nil, err
	}

	if funnel == nil {
		return nil, persistence.NewEntityError("GetByID", "funnel", id, persistence.ErrFunnelNotFound)
	}

	return funnel, nil
}

func (r *funnelRepository) Save(_ context.Context, funnel *models.Funnel) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.fp.funnels.put(funnel)
}

func (r *funnelRepository) Delete(_ context.Context, id string) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	removed, err := r.fp.funnels.remove(id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewEntityError("Delete", "funnel", id, persistence.ErrFunnelNotFound)
	}

	steps, err := r.fp.steps.all()
	if err != nil {
		return err
	}

	for _, step := range steps {
		if step.FunnelID != id {
			continue
		}

		_, err := r.fp.steps.remove(step.ID)
		if err != nil {
			return err
		}
	}

	return r.removeEnrollments(id)
}

// removeEnrollments drops the funnel's enrollments and their executions.
func (r *funnelRepository) removeEnrollments(funnelID string) error {
	enrollments, err := r.fp.enrollments.all()
	if err != nil {
		return err
	}

	owned := make(map[string]bool)

	for _, enrollment := range enrollments {
		if enrollment.FunnelID == funnelID {
			owned[enrollment.ID] = true
		}
	}

	if len(owned) == 0 {
		return nil
	}

	executions, err := r.fp.executions.all()
	if err != nil {
		return err
	}

	for _, execution := range executions {
		if !owned[execution.EnrollmentID] {
			continue
		}

		_, err := r.fp.executions.remove(execution.ID)
		if err != nil {
			return err
		}
	}

	for id := range owned {
		_, err := r.fp.enrollments.remove(id)
		if err != nil {
			return err
		}
	}

	return nil
}

type stepRepository struct {
	fp *Persistence
}

func (r *stepRepository) ListByFunnel(_ context.Context, funnelID string) ([]*models.FunnelStep, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	return r.byFunnel(funnelID)
}

func (r *stepRepository) byFunnel(funnelID string) ([]*models.FunnelStep, error) {
	all, err := r.fp.steps.all()
	if err != nil {
		return nil, err
	}

	steps := make([]*models.FunnelStep, 0)

	for _, step := range all {
		if step.FunnelID == funnelID {
			steps = append(steps, step)
		}
	}

	slices.SortFunc(steps, func(a, b *models.FunnelStep) int {
		return cmp.Or(cmp.Compare(a.StepNumber, b.StepNumber), cmp.Compare(a.ID, b.ID))
	})

	return steps, nil
}

func (r *stepRepository) CountByFunnel(_ context.Context, funnelID string) (int, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	steps, err := r.byFunnel(funnelID)
	if err != nil {
		return 0, err
	}

	return len(steps), nil
}

func (r *stepRepository) GetByID(_ context.Context, id string) (*models.FunnelStep, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	step, err := r.fp.steps.get(id)
	if err != nil {
		return nil, err
	}

	if step == nil {
		return nil, persistence.NewEntityError("GetByID", "funnel step", id, persistence.ErrStepNotFound)
	}

	return step, nil
}

func (r *stepRepository) Save(ctx context.Context, step *models.FunnelStep) error {
	return r.SaveBatch(ctx, []*models.FunnelStep{step})
}

// SaveBatch writes steps without the embedded template preview.
func (r *stepRepository) SaveBatch(_ context.Context, steps []*models.FunnelStep) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	for _, step := range steps {
		stored := *step
		stored.Message = nil

		err := r.fp.steps.put(&stored)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *stepRepository) Delete(_ context.Context, id string) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	removed, err := r.fp.steps.remove(id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewEntityError("Delete", "funnel step", id, persistence.ErrStepNotFound)
	}

	return nil
}
