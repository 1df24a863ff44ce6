// Package postgresql provides PostgreSQL persistence for funnels and enrollments.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	categoryRepo   *CategoryRepository
	funnelRepo     *FunnelRepository
	stepRepo       *StepRepository
	messageRepo    *MessageRepository
	enrollmentRepo *EnrollmentRepository
	executionRepo  *ExecutionRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:             database,
		logger:         logger,
		categoryRepo:   NewCategoryRepository(database, logger),
		funnelRepo:     NewFunnelRepository(database, logger),
		stepRepo:       NewStepRepository(database, logger),
		messageRepo:    NewMessageRepository(database, logger),
		enrollmentRepo: NewEnrollmentRepository(database, logger),
		executionRepo:  NewExecutionRepository(database, logger),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) CategoryRepository() persistence.CategoryRepository {
	return p.categoryRepo
}

func (p *Persistence) FunnelRepository() persistence.FunnelRepository {
	return p.funnelRepo
}

func (p *Persistence) StepRepository() persistence.StepRepository {
	return p.stepRepo
}

func (p *Persistence) MessageRepository() persistence.MessageRepository {
	return p.messageRepo
}

func (p *Persistence) EnrollmentRepository() persistence.EnrollmentRepository {
	return p.enrollmentRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

type scanner interface {
	Scan(dest ...any) error
}

// conditions accumulates a WHERE clause with positional arguments.
type conditions struct {
	clauses []string
	args    []any
}

// add appends clause, which must contain a single %d placeholder for the argument position.
func (c *conditions) add(clause string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(clause, len(c.args)))
}

func (c *conditions) raw(clause string) {
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}

	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}

	return &s.String
}

func notFoundUnlessAffected(result sql.Result, op, entity, id string, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError(op, entity, id, notFound)
	}

	return nil
}
