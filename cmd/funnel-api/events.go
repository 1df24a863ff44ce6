package main

import (
	"context"
	"log/slog"

	"github.com/dukex/funnels/pkg/eventbus"
	"github.com/dukex/funnels/pkg/events"
)

// watchEvents logs every domain event until ctx is done.
func watchEvents(ctx context.Context, logger *slog.Logger, bus eventbus.EventSubscriber) error {
	for _, eventType := range events.Types {
		err := bus.Handle(eventType, func(ctx context.Context, event any) error {
			logger.InfoContext(ctx, "event received", "type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return err
		}
	}

	err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}
