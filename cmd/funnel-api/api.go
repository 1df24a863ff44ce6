// Package main provides the funnel API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/funnels/pkg/eventbus"
	"github.com/dukex/funnels/pkg/idempotency"
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/services"
	"github.com/dukex/funnels/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	store       idempotency.Store
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	store idempotency.Store,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		publisher:   publisher,
		store:       store,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(web.Services{
		Categories:  services.NewCategory(a.persistence),
		Funnels:     services.NewFunnel(a.persistence),
		Steps:       services.NewStep(a.persistence),
		Messages:    services.NewMessage(a.persistence),
		Enrollments: services.NewEnrollment(a.persistence, a.publisher, a.store),
		Executions:  services.NewExecution(a.persistence, a.publisher),
		Health:      services.NewHealth(a.persistence),
	}, a.validate)

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPut,
			fiber.MethodDelete,
			fiber.MethodOptions,
		},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Client-Info", "Apikey", web.IdempotencyKeyHeader},
	}))
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Funnel API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
