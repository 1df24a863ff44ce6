package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
)

// EnrollmentRepository handles enrollment rows and materializes their executions.
type EnrollmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewEnrollmentRepository(db *sql.DB, logger *slog.Logger) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, logger: logger}
}

const enrollmentColumns = `id, customer_id, rental_id, funnel_id, enrolled_at, status, created_at`

func scanEnrollment(row scanner) (*models.Enrollment, error) {
	var (
		enrollment models.Enrollment
		rentalID   sql.NullString
	)

	err := row.Scan(
		&enrollment.ID,
		&enrollment.CustomerID,
		&rentalID,
		&enrollment.FunnelID,
		&enrollment.EnrolledAt,
		&enrollment.Status,
		&enrollment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	enrollment.RentalID = stringPtr(rentalID)

	return &enrollment, nil
}

func enrollmentConditions(opts persistence.ListEnrollmentsOptions) (conditions, bool) {
	var where conditions

	if opts.Status != "" {
		where.add("status = $%d", string(opts.Status))
	}

	if opts.FunnelID != "" {
		if !validID(opts.FunnelID) {
			return where, false
		}

		where.add("funnel_id = $%d", opts.FunnelID)
	}

	if opts.CustomerID != "" {
		where.add("customer_id = $%d", opts.CustomerID)
	}

	return where, true
}

func (r *EnrollmentRepository) List(ctx context.Context, opts persistence.ListEnrollmentsOptions) ([]*models.Enrollment, error) {
	enrollments := make([]*models.Enrollment, 0)

	where, ok := enrollmentConditions(opts)
	if !ok {
		return enrollments, nil
	}

	query := `SELECT ` + enrollmentColumns + ` FROM customer_funnel_enrollments` + where.where() +
		` ORDER BY enrolled_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}

		enrollments = append(enrollments, enrollment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating enrollments: %w", err)
	}

	return enrollments, nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if !validID(id) {
		return nil, persistence.NewEntityError("GetByID", "enrollment", id, persistence.ErrEnrollmentNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM customer_funnel_enrollments WHERE id = $1`, id)

	enrollment, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "enrollment", id, persistence.ErrEnrollmentNotFound)
		}

		return nil, fmt.Errorf("failed to scan enrollment: %w", err)
	}

	return enrollment, nil
}

func (r *EnrollmentRepository) Count(ctx context.Context, opts persistence.ListEnrollmentsOptions) (int, error) {
	where, ok := enrollmentConditions(opts)
	if !ok {
		return 0, nil
	}

	var count int

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customer_funnel_enrollments`+where.where(), where.args...).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}

	return count, nil
}

// Create inserts the enrollment and its executions in a single transaction.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment, executions []*models.StepExecution) error {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = transaction.Rollback()
	}()

	_, err = transaction.ExecContext(ctx, `
		INSERT INTO customer_funnel_enrollments (id, customer_id, rental_id, funnel_id, enrolled_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		enrollment.ID,
		enrollment.CustomerID,
		nullString(enrollment.RentalID),
		enrollment.FunnelID,
		enrollment.EnrolledAt,
		string(enrollment.Status),
		enrollment.CreatedAt,
	)
	if err != nil {
		return persistence.NewEntityError("Create", "enrollment", enrollment.ID, err)
	}

	statement, err := transaction.PrepareContext(ctx, `
		INSERT INTO funnel_step_executions (id, enrollment_id, funnel_step_id, scheduled_date, executed_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare execution insert: %w", err)
	}

	defer func() {
		_ = statement.Close()
	}()

	for _, execution := range executions {
		_, err := statement.ExecContext(ctx,
			execution.ID,
			execution.EnrollmentID,
			execution.FunnelStepID,
			execution.ScheduledAt,
			nullTime(execution.ExecutedAt),
			string(execution.Status),
			execution.CreatedAt,
		)
		if err != nil {
			return persistence.NewEntityError("Create", "step execution", execution.ID, err)
		}
	}

	err = transaction.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit enrollment %s: %w", enrollment.ID, err)
	}

	return nil
}

func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	if !validID(id) {
		return persistence.NewEntityError("UpdateStatus", "enrollment", id, persistence.ErrEnrollmentNotFound)
	}

	result, err := r.db.ExecContext(ctx, `UPDATE customer_funnel_enrollments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update enrollment status: %w", err)
	}

	return notFoundUnlessAffected(result, "UpdateStatus", "enrollment", id, persistence.ErrEnrollmentNotFound)
}

// ExecutionRepository handles step execution rows.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, enrollment_id, funnel_step_id, scheduled_date, executed_date, status, created_at`

func scanExecution(row scanner) (*models.StepExecution, error) {
	var (
		execution  models.StepExecution
		executedAt sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.EnrollmentID,
		&execution.FunnelStepID,
		&execution.ScheduledAt,
		&executedAt,
		&execution.Status,
		&execution.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if executedAt.Valid {
		execution.ExecutedAt = &executedAt.Time
	}

	return &execution, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}

func executionConditions(opts persistence.ListExecutionsOptions) (conditions, bool) {
	var where conditions

	if opts.EnrollmentID != "" {
		if !validID(opts.EnrollmentID) {
			return where, false
		}

		where.add("enrollment_id = $%d", opts.EnrollmentID)
	}

	if opts.Status != "" {
		where.add("status = $%d", string(opts.Status))
	}

	if opts.ScheduledBefore != nil {
		where.add("scheduled_date <= $%d", *opts.ScheduledBefore)
	}

	if opts.ExecutedSince != nil {
		where.add("executed_date >= $%d", *opts.ExecutedSince)
	}

	return where, true
}

func (r *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.StepExecution, error) {
	executions := make([]*models.StepExecution, 0)

	where, ok := executionConditions(opts)
	if !ok {
		return executions, nil
	}

	query := `SELECT ` + executionColumns + ` FROM funnel_step_executions` + where.where() +
		` ORDER BY scheduled_date ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query step executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating step executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.StepExecution, error) {
	if !validID(id) {
		return nil, persistence.NewEntityError("GetByID", "step execution", id, persistence.ErrExecutionNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM funnel_step_executions WHERE id = $1`, id)

	execution, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "step execution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan step execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) Count(ctx context.Context, opts persistence.ListExecutionsOptions) (int, error) {
	where, ok := executionConditions(opts)
	if !ok {
		return 0, nil
	}

	var count int

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM funnel_step_executions`+where.where(), where.args...).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count step executions: %w", err)
	}

	return count, nil
}

func (r *ExecutionRepository) TransitionPending(
	ctx context.Context,
	id string,
	status models.ExecutionStatus,
	executedAt *time.Time,
) error {
	if !validID(id) {
		return persistence.NewEntityError("TransitionPending", "step execution", id, persistence.ErrExecutionNotFound)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE funnel_step_executions SET status = $2, executed_date = $3 WHERE id = $1 AND status = 'pending'`,
		id, string(status), nullTime(executedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update step execution: %w", err)
	}

	return r.pendingUnlessAffected(ctx, result, "TransitionPending", id)
}

func (r *ExecutionRepository) DeletePending(ctx context.Context, id string) error {
	if !validID(id) {
		return persistence.NewEntityError("DeletePending", "step execution", id, persistence.ErrExecutionNotFound)
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM funnel_step_executions WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete step execution: %w", err)
	}

	return r.pendingUnlessAffected(ctx, result, "DeletePending", id)
}

// pendingUnlessAffected tells a missing row apart from one that already left pending
// when a guarded write matched nothing.
func (r *ExecutionRepository) pendingUnlessAffected(ctx context.Context, result sql.Result, op, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected > 0 {
		return nil
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM funnel_step_executions WHERE id = $1)`, id).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up step execution: %w", err)
	}

	if exists {
		return persistence.NewEntityError(op, "step execution", id, persistence.ErrExecutionNotPending)
	}

	return persistence.NewEntityError(op, "step execution", id, persistence.ErrExecutionNotFound)
}
