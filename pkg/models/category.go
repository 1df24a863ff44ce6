package models

import "time"

const DefaultCategoryColor = "#3B82F6"

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type MessageTemplate struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	MessageType     MessageType `json:"message_type"`
	MessageCategory string      `json:"message_category"`
	Subject         *string     `json:"subject"`
	Content         string      `json:"content"`
	IsActive        bool        `json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Summary is the preview embedded into step listings.
func (m *MessageTemplate) Summary() *MessageSummary {
	return &MessageSummary{
		Name:    m.Name,
		Content: m.Content,
		Subject: m.Subject,
	}
}
