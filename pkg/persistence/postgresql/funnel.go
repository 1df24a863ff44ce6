package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
)

// FunnelRepository handles sales funnel rows.
type FunnelRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewFunnelRepository(db *sql.DB, logger *slog.Logger) *FunnelRepository {
	return &FunnelRepository{db: db, logger: logger}
}

const funnelColumns = `
	id
  , name
  , description
  , category_id
  , trigger_condition
  , trigger_delay_value
  , trigger_delay_unit
  , is_active
  , created_at
  , updated_at
`

func scanFunnel(row scanner) (*models.Funnel, error) {
	var (
		funnel     models.Funnel
		categoryID sql.NullString
	)

	err := row.Scan(
		&funnel.ID,
		&funnel.Name,
		&funnel.Description,
		&categoryID,
		&funnel.TriggerCondition,
		&funnel.TriggerDelayValue,
		&funnel.TriggerDelayUnit,
		&funnel.IsActive,
		&funnel.CreatedAt,
		&funnel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	funnel.CategoryID = stringPtr(categoryID)

	return &funnel, nil
}

func (r *FunnelRepository) List(ctx context.Context, opts persistence.ListFunnelsOptions) ([]*models.Funnel, error) {
	var where conditions

	if opts.Uncategorized {
		where.raw("category_id IS NULL")
	}

	if opts.CategoryID != "" {
		if !validID(opts.CategoryID) {
			return make([]*models.Funnel, 0), nil
		}

		where.add("category_id = $%d", opts.CategoryID)
	}

	if opts.ActiveOnly {
		where.raw("is_active")
	}

	if opts.TriggerCondition != "" {
		where.add("trigger_condition = $%d", string(opts.TriggerCondition))
	}

	query := `SELECT ` + funnelColumns + ` FROM sales_funnels` + where.where() + ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnels: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	funnels := make([]*models.Funnel, 0)

	for rows.Next() {
		funnel, err := scanFunnel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funnel: %w", err)
		}

		funnels = append(funnels, funnel)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating funnels: %w", err)
	}

	return funnels, nil
}

func (r *FunnelRepository) GetByID(ctx context.Context, id string) (*models.Funnel, error) {
	if !validID(id) {
		return nil, persistence.NewEntityError("GetByID", "funnel", id, persistence.ErrFunnelNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+funnelColumns+` FROM sales_funnels WHERE id = $1`, id)

	funnel, err := scanFunnel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "funnel", id, persistence.ErrFunnelNotFound)
		}

		return nil, fmt.Errorf("failed to scan funnel: %w", err)
	}

	return funnel, nil
}

func (r *FunnelRepository) Save(ctx context.Context, funnel *models.Funnel) error {
	query := `
		INSERT INTO sales_funnels (
			id
		  , name
		  , description
		  , category_id
		  , trigger_condition
		  , trigger_delay_value
		  , trigger_delay_unit
		  , is_active
		  , created_at
		  , updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , category_id = EXCLUDED.category_id
		  , trigger_condition = EXCLUDED.trigger_condition
		  , trigger_delay_value = EXCLUDED.trigger_delay_value
		  , trigger_delay_unit = EXCLUDED.trigger_delay_unit
		  , is_active = EXCLUDED.is_active
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		funnel.ID,
		funnel.Name,
		funnel.Description,
		nullString(funnel.CategoryID),
		string(funnel.TriggerCondition),
		funnel.TriggerDelayValue,
		string(funnel.TriggerDelayUnit),
		funnel.IsActive,
		funnel.CreatedAt,
		funnel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save funnel: %w", err)
	}

	return nil
}

// Delete removes the funnel; steps and enrollments go with it through ON DELETE CASCADE.
func (r *FunnelRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return persistence.NewEntityError("Delete", "funnel", id, persistence.ErrFunnelNotFound)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM sales_funnels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete funnel: %w", err)
	}

	return notFoundUnlessAffected(result, "Delete", "funnel", id, persistence.ErrFunnelNotFound)
}

// StepRepository handles funnel step rows.
type StepRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStepRepository(db *sql.DB, logger *slog.Logger) *StepRepository {
	return &StepRepository{db: db, logger: logger}
}

const stepColumns = `id, funnel_id, step_number, message_id, message_type, delay_value, delay_unit, created_at`

func scanStep(row scanner) (*models.FunnelStep, error) {
	var step models.FunnelStep

	err := row.Scan(
		&step.ID,
		&step.FunnelID,
		&step.StepNumber,
		&step.MessageID,
		&step.MessageType,
		&step.DelayValue,
		&step.DelayUnit,
		&step.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &step, nil
}

func (r *StepRepository) ListByFunnel(ctx context.Context, funnelID string) ([]*models.FunnelStep, error) {
	steps := make([]*models.FunnelStep, 0)

	if !validID(funnelID) {
		return steps, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM funnel_steps WHERE funnel_id = $1 ORDER BY step_number ASC, id ASC`, funnelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnel steps: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan funnel step: %w", err)
		}

		steps = append(steps, step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating funnel steps: %w", err)
	}

	return steps, nil
}

func (r *StepRepository) CountByFunnel(ctx context.Context, funnelID string) (int, error) {
	if !validID(funnelID) {
		return 0, nil
	}

	var count int

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM funnel_steps WHERE funnel_id = $1`, funnelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count funnel steps: %w", err)
	}

	return count, nil
}

func (r *StepRepository) GetByID(ctx context.Context, id string) (*models.FunnelStep, error) {
	if !validID(id) {
		return nil, persistence.NewEntityError("GetByID", "funnel step", id, persistence.ErrStepNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM funnel_steps WHERE id = $1`, id)

	step, err := scanStep(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "funnel step", id, persistence.ErrStepNotFound)
		}

		return nil, fmt.Errorf("failed to scan funnel step: %w", err)
	}

	return step, nil
}

func (r *StepRepository) Save(ctx context.Context, step *models.FunnelStep) error {
	return r.SaveBatch(ctx, []*models.FunnelStep{step})
}

// SaveBatch upserts all steps in one transaction.
func (r *StepRepository) SaveBatch(ctx context.Context, steps []*models.FunnelStep) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	query := `
		INSERT INTO funnel_steps (id, funnel_id, step_number, message_id, message_type, delay_value, delay_unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			step_number = EXCLUDED.step_number
		  , message_id = EXCLUDED.message_id
		  , message_type = EXCLUDED.message_type
		  , delay_value = EXCLUDED.delay_value
		  , delay_unit = EXCLUDED.delay_unit
	`

	for _, step := range steps {
		_, err := transaction.ExecContext(ctx, query,
			step.ID,
			step.FunnelID,
			step.StepNumber,
			step.MessageID,
			string(step.MessageType),
			step.DelayValue,
			string(step.DelayUnit),
			step.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save funnel step %s: %w", step.ID, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit funnel steps: %w", err)
	}

	return nil
}

func (r *StepRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return persistence.NewEntityError("Delete", "funnel step", id, persistence.ErrStepNotFound)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM funnel_steps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete funnel step: %w", err)
	}

	return notFoundUnlessAffected(result, "Delete", "funnel step", id, persistence.ErrStepNotFound)
}
