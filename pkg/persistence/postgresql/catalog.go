package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const foreignKeyViolation = "23503"

// validID keeps malformed ids away from UUID columns, where they would fail the whole query.
func validID(id string) bool {
	_, err := uuid.Parse(id)

	return err == nil
}

// CategoryRepository handles funnel category rows.
type CategoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCategoryRepository(db *sql.DB, logger *slog.Logger) *CategoryRepository {
	return &CategoryRepository{db: db, logger: logger}
}

const categoryColumns = `id, name, description, color, created_at, updated_at`

func scanCategory(row scanner) (*models.Category, error) {
	var category models.Category

	err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.Color,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &category, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM funnel_categories ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	categories := make([]*models.Category, 0)

	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}

		categories = append(categories, category)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	if !validID(id) {
		return nil, persistence.NewEntityError("GetByID", "category", id, persistence.ErrCategoryNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM funnel_categories WHERE id = $1`, id)

	category, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "category", id, persistence.ErrCategoryNotFound)
		}

		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	return category, nil
}

func (r *CategoryRepository) Save(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO funnel_categories (id, name, description, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , color = EXCLUDED.color
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Description,
		category.Color,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}

	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return persistence.NewEntityError("Delete", "category", id, persistence.ErrCategoryNotFound)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM funnel_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return notFoundUnlessAffected(result, "Delete", "category", id, persistence.ErrCategoryNotFound)
}

// MessageRepository handles message template rows.
type MessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMessageRepository(db *sql.DB, logger *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, logger: logger}
}

const messageColumns = `id, name, message_type, message_category, subject, content, is_active, created_at, updated_at`

func scanMessage(row scanner) (*models.MessageTemplate, error) {
	var (
		message models.MessageTemplate
		subject sql.NullString
	)

	err := row.Scan(
		&message.ID,
		&message.Name,
		&message.MessageType,
		&message.MessageCategory,
		&subject,
		&message.Content,
		&message.IsActive,
		&message.CreatedAt,
		&message.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.Subject = stringPtr(subject)

	return &message, nil
}

func (r *MessageRepository) List(ctx context.Context, opts persistence.ListMessagesOptions) ([]*models.MessageTemplate, error) {
	var where conditions

	if opts.Category != "" {
		where.add("message_category = $%d", opts.Category)
	}

	if opts.MessageType != "" {
		where.add("message_type = $%d", string(opts.MessageType))
	}

	if opts.ActiveOnly {
		where.raw("is_active")
	}

	query := `SELECT ` + messageColumns + ` FROM message_templates` + where.where() + ` ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query message templates: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	messages := make([]*models.MessageTemplate, 0)

	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message template: %w", err)
		}

		messages = append(messages, message)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating message templates: %w", err)
	}

	return messages, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.MessageTemplate, error) {
	if !validID(id) {
		return nil, persistence.NewEntityError("GetByID", "message template", id, persistence.ErrMessageNotFound)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM message_templates WHERE id = $1`, id)

	message, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "message template", id, persistence.ErrMessageNotFound)
		}

		return nil, fmt.Errorf("failed to scan message template: %w", err)
	}

	return message, nil
}

func (r *MessageRepository) Save(ctx context.Context, message *models.MessageTemplate) error {
	query := `
		INSERT INTO message_templates (id, name, message_type, message_category, subject, content, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , message_type = EXCLUDED.message_type
		  , message_category = EXCLUDED.message_category
		  , subject = EXCLUDED.subject
		  , content = EXCLUDED.content
		  , is_active = EXCLUDED.is_active
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.Name,
		string(message.MessageType),
		message.MessageCategory,
		nullString(message.Subject),
		message.Content,
		message.IsActive,
		message.CreatedAt,
		message.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message template: %w", err)
	}

	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return persistence.NewEntityError("Delete", "message template", id, persistence.ErrMessageNotFound)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM message_templates WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return persistence.NewEntityError("Delete", "message template", id, persistence.ErrMessageInUse)
		}

		return fmt.Errorf("failed to delete message template: %w", err)
	}

	return notFoundUnlessAffected(result, "Delete", "message template", id, persistence.ErrMessageNotFound)
}
