// Package eventbus carries the funnel domain events (enrollment created, enrollment
// status changed, execution sent, skipped or cancelled) between the API and whatever
// tails them. Every event goes to a single topic with its enrollment ID in the
// message metadata.
package eventbus

import (
	"context"

	"github.com/dukex/funnels/pkg/events"
)

// Event is one of the structs in package events.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is what the services depend on. key is the enrollment ID.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber routes events by type. Handlers receive a pointer to the
// concrete event, for example *events.ExecutionSent. A handler error nacks the message.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

// EventBus is the transport pkg/cmd builds for the gochannel or kafka provider.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error

	// GenerateID returns a ULID for event and message IDs.
	GenerateID() string
}
