package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/funnels/pkg/log"
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence"
)

type Message struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	clock       func() time.Time
}

func NewMessage(persistence persistence.Persistence) *Message {
	return &Message{
		persistence: persistence,
		logger:      log.WithModule("message_service"),
		clock:       now,
	}
}

type ListMessagesRequest struct {
	Category    string
	MessageType models.MessageType
	ActiveOnly  bool
}

// MessagePatch holds the fields of a partial template update; nil fields are left unchanged.
type MessagePatch struct {
	Name            *string
	MessageType     *models.MessageType
	MessageCategory *string
	Subject         *string
	Content         *string
	IsActive        *bool
}

// List returns templates ordered by name.
func (m *Message) List(ctx context.Context, req ListMessagesRequest) ([]*models.MessageTemplate, error) {
	if req.MessageType != "" && !req.MessageType.Valid() {
		return nil, NewValidationError("list_messages", "invalid_message_type",
			fmt.Sprintf("message type %q is not supported", req.MessageType), ErrInvalidMessageType)
	}

	messages, err := m.persistence.MessageRepository().List(ctx, persistence.ListMessagesOptions{
		Category:    req.Category,
		MessageType: req.MessageType,
		ActiveOnly:  req.ActiveOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list message templates: %w", err)
	}

	return messages, nil
}

// Categories returns the sorted distinct categories of the active templates of a type.
func (m *Message) Categories(ctx context.Context, messageType models.MessageType) ([]string, error) {
	messages, err := m.List(ctx, ListMessagesRequest{MessageType: messageType, ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	categories := make([]string, 0, len(messages))
	for _, message := range messages {
		if message.MessageCategory != "" {
			categories = append(categories, message.MessageCategory)
		}
	}

	slices.Sort(categories)

	return slices.Compact(categories), nil
}

func (m *Message) FetchByID(ctx context.Context, id string) (*models.MessageTemplate, error) {
	return m.persistence.MessageRepository().GetByID(ctx, id)
}

func validateMessage(op string, message *models.MessageTemplate) error {
	if strings.TrimSpace(message.Name) == "" {
		return NewValidationError(op, "name_required", "template name is required", ErrNameRequired)
	}

	if !message.MessageType.Valid() {
		return NewValidationError(op, "invalid_message_type",
			fmt.Sprintf("message type %q is not supported", message.MessageType), ErrInvalidMessageType)
	}

	if strings.TrimSpace(message.Content) == "" {
		return NewValidationError(op, "content_required", "template content is required", ErrContentRequired)
	}

	return nil
}

func (m *Message) Create(ctx context.Context, message *models.MessageTemplate) (*models.MessageTemplate, error) {
	message.Name = strings.TrimSpace(message.Name)

	err := validateMessage("create_message", message)
	if err != nil {
		return nil, err
	}

	timestamp := m.clock()
	message.ID = newID()
	message.CreatedAt = timestamp
	message.UpdatedAt = timestamp

	err = m.persistence.MessageRepository().Save(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to save message template: %w", err)
	}

	m.logger.InfoContext(ctx, "message template created", "message_id", message.ID, "message_type", message.MessageType)

	return message, nil
}

func (m *Message) Update(ctx context.Context, id string, patch MessagePatch) (*models.MessageTemplate, error) {
	message, err := m.persistence.MessageRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		message.Name = strings.TrimSpace(*patch.Name)
	}

	if patch.MessageType != nil {
		message.MessageType = *patch.MessageType
	}

	if patch.MessageCategory != nil {
		message.MessageCategory = *patch.MessageCategory
	}

	if patch.Subject != nil {
		message.Subject = nil
		if *patch.Subject != "" {
			subject := *patch.Subject
			message.Subject = &subject
		}
	}

	if patch.Content != nil {
		message.Content = *patch.Content
	}

	if patch.IsActive != nil {
		message.IsActive = *patch.IsActive
	}

	err = validateMessage("update_message", message)
	if err != nil {
		return nil, err
	}

	message.UpdatedAt = m.clock()

	err = m.persistence.MessageRepository().Save(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to update message template: %w", err)
	}

	return message, nil
}

// Delete removes a template that no step references.
func (m *Message) Delete(ctx context.Context, id string) error {
	err := m.persistence.MessageRepository().Delete(ctx, id)
	if persistence.IsMessageInUse(err) {
		return &ServiceError{Op: "delete_message", Code: "message_in_use", Err: ErrMessageInUse}
	}

	return err
}
