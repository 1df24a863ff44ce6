package file

import (
	"cmp"
	"context"
	"slices"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
)

type categoryRepository struct {
	fp *Persistence
}

func (r *categoryRepository) List(_ context.Context) ([]*models.Category, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	categories, err := r.fp.categories.all()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(categories, func(a, b *models.Category) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	return categories, nil
}

func (r *categoryRepository) GetByID(_ context.Context, id string) (*models.Category, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	category, err := r.fp.categories.get(id)
	if err != nil {
		return nil, err
	}

	if category == nil {
		return nil, persistence.NewEntityError("GetByID", "category", id, persistence.ErrCategoryNotFound)
	}

	return category, nil
}

func (r *categoryRepository) Save(_ context.Context, category *models.Category) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.fp.categories.put(category)
}

// Delete clears the category from funnels that referenced it.
func (r *categoryRepository) Delete(_ context.Context, id string) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	removed, err := r.fp.categories.remove(id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewEntityError("Delete", "category", id, persistence.ErrCategoryNotFound)
	}

	funnels, err := r.fp.funnels.all()
	if err != nil {
		return err
	}

	for _, funnel := range funnels {
		if funnel.CategoryID != nil && *funnel.CategoryID == id {
			funnel.CategoryID = nil

			err := r.fp.funnels.put(funnel)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

type messageRepository struct {
	fp *Persistence
}

func (r *messageRepository) List(_ context.Context, opts persistence.ListMessagesOptions) ([]*models.MessageTemplate, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	all, err := r.fp.messages.all()
	if err != nil {
		return nil, err
	}

	messages := make([]*models.MessageTemplate, 0, len(all))

	for _, message := range all {
		if opts.Category != "" && message.MessageCategory != opts.Category {
			continue
		}

		if opts.MessageType != "" && message.MessageType != opts.MessageType {
			continue
		}

		if opts.ActiveOnly && !message.IsActive {
			continue
		}

		messages = append(messages, message)
	}

	slices.SortFunc(messages, func(a, b *models.MessageTemplate) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	return messages, nil
}

func (r *messageRepository) GetByID(_ context.Context, id string) (*models.MessageTemplate, error) {
	r.fp.mu.RLock()
	defer r.fp.mu.RUnlock()

	message, err := r.fp.messages.get(id)
	if err != nil {
		return nil, err
	}

	if message == nil {
		return nil, persistence.NewEntityError("GetByID", "message template", id, persistence.ErrMessageNotFound)
	}

	return message, nil
}

func (r *messageRepository) Save(_ context.Context, message *models.MessageTemplate) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	return r.fp.messages.put(message)
}

func (r *messageRepository) Delete(_ context.Context, id string) error {
	r.fp.mu.Lock()
	defer r.fp.mu.Unlock()

	steps, err := r.fp.steps.all()
	if err != nil {
		return err
	}

	for _, step := range steps {
		if step.MessageID == id {
			return persistence.NewEntityError("Delete", "message template", id, persistence.ErrMessageInUse)
		}
	}

	removed, err := r.fp.messages.remove(id)
	if err != nil {
		return err
	}

	if !removed {
		return persistence.NewEntityError("Delete", "message template", id, persistence.ErrMessageNotFound)
	}

	return nil
}
