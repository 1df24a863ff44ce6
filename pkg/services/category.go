package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/funnels/pkg/log"
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/otelhelper"
	"github.com/dukex/funnels/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

type Category struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	clock       func() time.Time
}

func NewCategory(persistence persistence.Persistence) *Category {
	return &Category{
		persistence: persistence,
		logger:      log.WithModule("category_service"),
		clock:       now,
	}
}

// CategoryPatch holds the fields of a partial category update; nil fields are left unchanged.
type CategoryPatch struct {
	Name        *string
	Description *string
	Color       *string
}

func (c *Category) List(ctx context.Context) ([]*models.Category, error) {
	categories, err := c.persistence.CategoryRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return categories, nil
}

func (c *Category) FetchByID(ctx context.Context, id string) (*models.Category, error) {
	return c.persistence.CategoryRepository().GetByID(ctx, id)
}

func (c *Category) Create(ctx context.Context, category *models.Category) (*models.Category, error) {
	ctx, span := otelhelper.StartSpan(ctx, tracer, "categories.create")
	defer span.End()

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, NewValidationError("create_category", "name_required", "category name is required", ErrNameRequired)
	}

	if category.Color == "" {
		category.Color = models.DefaultCategoryColor
	}

	timestamp := c.clock()
	category.ID = newID()
	category.CreatedAt = timestamp
	category.UpdatedAt = timestamp

	span.SetAttributes(attribute.String(otelhelper.CategoryIDKey, category.ID))

	err := c.persistence.CategoryRepository().Save(ctx, category)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to save category: %w", err)
	}

	c.logger.InfoContext(ctx, "category created", "category_id", category.ID, "name", category.Name)

	return category, nil
}

func (c *Category) Update(ctx context.Context, id string, patch CategoryPatch) (*models.Category, error) {
	category, err := c.persistence.CategoryRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, NewValidationError("update_category", "name_required", "category name is required", ErrNameRequired)
		}

		category.Name = name
	}

	if patch.Description != nil {
		category.Description = *patch.Description
	}

	if patch.Color != nil && *patch.Color != "" {
		category.Color = *patch.Color
	}

	category.UpdatedAt = c.clock()

	err = c.persistence.CategoryRepository().Save(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	return category, nil
}

// Delete removes the category; its funnels become uncategorized.
func (c *Category) Delete(ctx context.Context, id string) error {
	err := c.persistence.CategoryRepository().Delete(ctx, id)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "category deleted", "category_id", id)

	return nil
}
