package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dukex/funnels/pkg/cmd"
	"github.com/dukex/funnels/pkg/eventbus"
	"github.com/dukex/funnels/pkg/log"
	"github.com/dukex/funnels/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	var logger *slog.Logger

	command := &cli.Command{
		Name:                  "funnel-api",
		Usage:                 "Manage sales funnels and customer enrollments",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"))
			logger = log.WithModule("funnel-api")

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Start the HTTP API",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "Port to run the API server on",
						Value:   defaultPort,
						Sources: cli.EnvVars("PORT"),
					},
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "PostgreSQL URL or data directory for persistence",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "redis-url",
						Usage:   "Redis URL for idempotency keys (in-memory when empty)",
						Sources: cli.EnvVars("REDIS_URL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					return run(ctx, logger, command)
				},
			},
			{
				Name:  "events",
				Usage: "Log funnel domain events from the event bus",
				Action: func(ctx context.Context, command *cli.Command) error {
					bus, err := newEventBus(command, logger)
					if err != nil {
						return err
					}
					defer closeEventBus(ctx, logger, bus)

					logger.InfoContext(ctx, "Watching funnel events", "event_bus", command.String("event-bus"))

					return watchEvents(ctx, logger, bus)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := command.Run(ctx, os.Args)
	if err != nil {
		slog.Error("funnel-api failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, command *cli.Command) error {
	logger.InfoContext(ctx, "Initializing Funnel API")

	if command.Bool("otel-enabled") {
		provider, err := otelhelper.NewTracerProvider(ctx, "funnel-api")
		if err != nil {
			return err
		}

		defer func() {
			err := provider.Shutdown(context.WithoutCancel(ctx))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	store, err := cmd.NewIdempotencyStore(ctx, command.String("redis-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := store.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close idempotency store", "error", err)
		}
	}()

	bus, err := newEventBus(command, logger)
	if err != nil {
		return err
	}
	defer closeEventBus(ctx, logger, bus)

	app := NewAPI(logger, persistence, bus, store).App()

	go func() {
		<-ctx.Done()

		err := app.Shutdown()
		if err != nil {
			logger.Error("Failed to shut down server", "error", err)
		}
	}()

	err = app.Listen(":" + strconv.Itoa(command.Int("port")))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func newEventBus(command *cli.Command, logger *slog.Logger) (eventbus.EventBus, error) {
	return cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
}

func closeEventBus(ctx context.Context, logger *slog.Logger, bus eventbus.EventBus) {
	err := bus.Close()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}
}
