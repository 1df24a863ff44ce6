package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestNewPersistence(t *testing.T) {
	p := NewPersistence("/tmp/test")
	fp := p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	p = NewPersistence("file:///tmp/test")
	fp = p.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())
	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))

	missing := NewPersistence(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, missing.HealthCheck(t.Context()), os.ErrNotExist)
}

func TestCategoryRepository(t *testing.T) {
	testDir := t.TempDir()
	p := NewPersistence(testDir)
	repo := p.CategoryRepository()
	ctx := t.Context()

	for _, c := range []*models.Category{
		{ID: "c2", Name: "Reminders", Color: models.DefaultCategoryColor},
		{ID: "c1", Name: "Onboarding", Color: "#10B981"},
	} {
		require.NoError(t, repo.Save(ctx, c))
	}

	assert.FileExists(t, filepath.Join(testDir, "categories", "c1.json"))

	categories, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Onboarding", categories[0].Name)
	assert.Equal(t, "Reminders", categories[1].Name)

	funnel := &models.Funnel{ID: "f1", Name: "Welcome", CategoryID: strPtr("c1")}
	require.NoError(t, p.FunnelRepository().Save(ctx, funnel))

	require.NoError(t, repo.Delete(ctx, "c1"))

	stored, err := p.FunnelRepository().GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Nil(t, stored.CategoryID)

	_, err = repo.GetByID(ctx, "c1")
	assert.True(t, errors.Is(err, persistence.ErrCategoryNotFound))

	err = repo.Delete(ctx, "c1")
	assert.True(t, errors.Is(err, persistence.ErrCategoryNotFound))
}

func TestFunnelRepository_ListFiltersAndOrder(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.FunnelRepository()
	ctx := t.Context()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	funnels := []*models.Funnel{
		{ID: "old", Name: "Old", CreatedAt: base, IsActive: true, TriggerCondition: models.TriggerRentalCreated},
		{ID: "new", Name: "New", CreatedAt: base.Add(48 * time.Hour), CategoryID: strPtr("cat"), TriggerCondition: models.TriggerAfterReturn},
		{ID: "mid", Name: "Mid", CreatedAt: base.Add(24 * time.Hour), IsActive: true, CategoryID: strPtr("cat"), TriggerCondition: models.TriggerRentalCreated},
	}
	for _, f := range funnels {
		require.NoError(t, repo.Save(ctx, f))
	}

	tests := []struct {
		name string
		opts persistence.ListFunnelsOptions
		want []string
	}{
		{name: "all newest first", want: []string{"new", "mid", "old"}},
		{name: "by category", opts: persistence.ListFunnelsOptions{CategoryID: "cat"}, want: []string{"new", "mid"}},
		{name: "uncategorized", opts: persistence.ListFunnelsOptions{Uncategorized: true}, want: []string{"old"}},
		{name: "active only", opts: persistence.ListFunnelsOptions{ActiveOnly: true}, want: []string{"mid", "old"}},
		{
			name: "active by trigger",
			opts: persistence.ListFunnelsOptions{ActiveOnly: true, TriggerCondition: models.TriggerRentalCreated},
			want: []string{"mid", "old"},
		},
		{name: "trigger without match", opts: persistence.ListFunnelsOptions{TriggerCondition: models.TriggerCustom}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.opts)
			require.NoError(t, err)

			ids := make([]string, 0, len(result))
			for _, f := range result {
				ids = append(ids, f.ID)
			}

			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFunnelRepository_DeleteCascades(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.FunnelRepository().Save(ctx, &models.Funnel{ID: "f1", Name: "A"}))
	require.NoError(t, p.FunnelRepository().Save(ctx, &models.Funnel{ID: "f2", Name: "B"}))
	require.NoError(t, p.StepRepository().SaveBatch(ctx, []*models.FunnelStep{
		{ID: "s1", FunnelID: "f1", StepNumber: 1, DelayUnit: timing.UnitDays},
		{ID: "s2", FunnelID: "f1", StepNumber: 2, DelayUnit: timing.UnitDays},
		{ID: "s3", FunnelID: "f2", StepNumber: 1, DelayUnit: timing.UnitDays},
	}))

	require.NoError(t, p.EnrollmentRepository().Create(ctx,
		&models.Enrollment{ID: "e1", FunnelID: "f1", CustomerID: "c"},
		[]*models.StepExecution{{ID: "x1", EnrollmentID: "e1", FunnelStepID: "s1"}},
	))
	require.NoError(t, p.EnrollmentRepository().Create(ctx, &models.Enrollment{ID: "e2", FunnelID: "f2", CustomerID: "c"}, nil))

	require.NoError(t, p.FunnelRepository().Delete(ctx, "f1"))

	_, err := p.EnrollmentRepository().GetByID(ctx, "e1")
	require.ErrorIs(t, err, persistence.ErrEnrollmentNotFound)
	_, err = p.ExecutionRepository().GetByID(ctx, "x1")
	require.ErrorIs(t, err, persistence.ErrExecutionNotFound)
	_, err = p.EnrollmentRepository().GetByID(ctx, "e2")
	require.NoError(t, err)

	count, err := p.StepRepository().CountByFunnel(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = p.StepRepository().CountByFunnel(ctx, "f2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = p.FunnelRepository().Delete(ctx, "f1")
	assert.True(t, persistence.IsFunnelNotFound(err))
}

func TestStepRepository(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.StepRepository()
	ctx := t.Context()

	require.NoError(t, repo.SaveBatch(ctx, []*models.FunnelStep{
		{ID: "s3", FunnelID: "f1", StepNumber: 5, DelayValue: 3, DelayUnit: timing.UnitDays},
		{ID: "s1", FunnelID: "f1", StepNumber: 1, DelayUnit: timing.UnitDays},
	}))
	require.NoError(t, repo.Save(ctx, &models.FunnelStep{
		ID: "s2", FunnelID: "f1", StepNumber: 2, DelayValue: 90, DelayUnit: timing.UnitMinutes,
		Message: &models.MessageSummary{Name: "not stored"},
	}))

	steps, err := repo.ListByFunnel(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int{1, 2, 5}, []int{steps[0].StepNumber, steps[1].StepNumber, steps[2].StepNumber})
	assert.Nil(t, steps[1].Message)

	step, err := repo.GetByID(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 90, step.DelayValue)

	require.NoError(t, repo.Delete(ctx, "s2"))

	_, err = repo.GetByID(ctx, "s2")
	assert.ErrorIs(t, err, persistence.ErrStepNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "s2"), persistence.ErrStepNotFound)
}

func TestMessageRepository_List(t *testing.T) {
	p := NewPersistence(t.TempDir())
	repo := p.MessageRepository()
	ctx := t.Context()

	for _, m := range []*models.MessageTemplate{
		{ID: "m1", Name: "Welcome", MessageType: models.MessageTypeSMS, MessageCategory: "onboarding", IsActive: true},
		{ID: "m2", Name: "Check-in", MessageType: models.MessageTypeEmail, MessageCategory: "onboarding", IsActive: true},
		{ID: "m3", Name: "Archive", MessageType: models.MessageTypeSMS, MessageCategory: "legacy"},
	} {
		require.NoError(t, repo.Save(ctx, m))
	}

	all, err := repo.List(ctx, persistence.ListMessagesOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Archive", all[0].Name)

	onboarding, err := repo.List(ctx, persistence.ListMessagesOptions{Category: "onboarding"})
	require.NoError(t, err)
	assert.Len(t, onboarding, 2)

	activeSMS, err := repo.List(ctx, persistence.ListMessagesOptions{MessageType: models.MessageTypeSMS, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, activeSMS, 1)
	assert.Equal(t, "m1", activeSMS[0].ID)

	_, err = repo.GetByID(ctx, "nope")
	assert.True(t, persistence.IsMessageNotFound(err))
}

func TestMessageRepository_DeleteInUse(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()

	require.NoError(t, p.MessageRepository().Save(ctx, &models.MessageTemplate{ID: "m1", Name: "Welcome"}))
	require.NoError(t, p.StepRepository().Save(ctx, &models.FunnelStep{ID: "s1", FunnelID: "f1", StepNumber: 1, MessageID: "m1"}))

	err := p.MessageRepository().Delete(ctx, "m1")
	require.ErrorIs(t, err, persistence.ErrMessageInUse)

	require.NoError(t, p.StepRepository().Delete(ctx, "s1"))
	require.NoError(t, p.MessageRepository().Delete(ctx, "m1"))
}

func TestEnrollmentRepository_CreateAndQuery(t *testing.T) {
	testDir := t.TempDir()
	p := NewPersistence(testDir)
	ctx := t.Context()
	enrolledAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	enrollment := &models.Enrollment{
		ID: "e1", CustomerID: "cust-1", FunnelID: "f1", EnrolledAt: enrolledAt, Status: models.EnrollmentActive,
	}
	executions := []*models.StepExecution{
		{ID: "x2", EnrollmentID: "e1", FunnelStepID: "s2", ScheduledAt: enrolledAt.Add(72 * time.Hour), Status: models.ExecutionPending},
		{ID: "x1", EnrollmentID: "e1", FunnelStepID: "s1", ScheduledAt: enrolledAt, Status: models.ExecutionPending},
	}

	require.NoError(t, p.EnrollmentRepository().Create(ctx, enrollment, executions))
	assert.FileExists(t, filepath.Join(testDir, "enrollments", "e1.json"))

	stored, err := p.EnrollmentRepository().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, enrolledAt, stored.EnrolledAt)

	listed, err := p.ExecutionRepository().List(ctx, persistence.ListExecutionsOptions{EnrollmentID: "e1"})
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "x1", listed[0].ID)
	assert.Equal(t, "x2", listed[1].ID)

	cutoff := enrolledAt.Add(time.Hour)
	due, err := p.ExecutionRepository().Count(ctx, persistence.ListExecutionsOptions{
		Status: models.ExecutionPending, ScheduledBefore: &cutoff,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, due)

	require.NoError(t, p.EnrollmentRepository().UpdateStatus(ctx, "e1", models.EnrollmentPaused))

	paused, err := p.EnrollmentRepository().Count(ctx, persistence.ListEnrollmentsOptions{Status: models.EnrollmentPaused})
	require.NoError(t, err)
	assert.Equal(t, 1, paused)

	err = p.EnrollmentRepository().UpdateStatus(ctx, "missing", models.EnrollmentPaused)
	assert.ErrorIs(t, err, persistence.ErrEnrollmentNotFound)
}

func TestExecutionRepository_UpdateAndDelete(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := t.Context()
	scheduled := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	executedAt := scheduled.Add(5 * time.Minute)

	require.NoError(t, p.EnrollmentRepository().Create(ctx,
		&models.Enrollment{ID: "e1", FunnelID: "f1", EnrolledAt: scheduled, Status: models.EnrollmentActive},
		[]*models.StepExecution{
			{ID: "x1", EnrollmentID: "e1", ScheduledAt: scheduled, Status: models.ExecutionPending},
			{ID: "x2", EnrollmentID: "e1", ScheduledAt: scheduled.Add(time.Hour), Status: models.ExecutionPending},
		},
	))

	repo := p.ExecutionRepository()

	require.NoError(t, repo.TransitionPending(ctx, "x1", models.ExecutionSent, &executedAt))

	execution, err := repo.GetByID(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSent, execution.Status)
	require.NotNil(t, execution.ExecutedAt)
	assert.Equal(t, executedAt, *execution.ExecutedAt)

	since := scheduled
	sent, err := repo.Count(ctx, persistence.ListExecutionsOptions{Status: models.ExecutionSent, ExecutedSince: &since})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	assert.True(t, persistence.IsExecutionNotPending(repo.TransitionPending(ctx, "x1", models.ExecutionSent, &executedAt)))
	assert.True(t, persistence.IsExecutionNotPending(repo.TransitionPending(ctx, "x1", models.ExecutionSkipped, nil)))
	assert.True(t, persistence.IsExecutionNotPending(repo.DeletePending(ctx, "x1")))

	require.NoError(t, repo.DeletePending(ctx, "x2"))
	assert.True(t, persistence.IsExecutionNotFound(repo.DeletePending(ctx, "x2")))
	assert.True(t, persistence.IsExecutionNotFound(repo.TransitionPending(ctx, "x2", models.ExecutionSkipped, nil)))
}
