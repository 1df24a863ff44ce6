// Package web provides the HTTP handlers of the funnel API.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/funnels/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// IdempotencyKeyHeader lets a client retry an enrollment without materializing it twice.
const IdempotencyKeyHeader = "Idempotency-Key"

type APIHandlers struct {
	categoryService   *services.Category
	funnelService     *services.Funnel
	stepService       *services.Step
	messageService    *services.Message
	enrollmentService *services.Enrollment
	executionService  *services.Execution
	health            *services.Health
	validator         *validator.Validate
}

// Services groups the services the handlers call.
type Services struct {
	Categories  *services.Category
	Funnels     *services.Funnel
	Steps       *services.Step
	Messages    *services.Message
	Enrollments *services.Enrollment
	Executions  *services.Execution
	Health      *services.Health
}

func NewAPIHandlers(svc Services, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		categoryService:   svc.Categories,
		funnelService:     svc.Funnels,
		stepService:       svc.Steps,
		messageService:    svc.Messages,
		enrollmentService: svc.Enrollments,
		executionService:  svc.Executions,
		health:            svc.Health,
		validator:         validator,
	}
}

// Register mounts every endpoint on router. Proxy paths answer OPTIONS with 200
// and any other unrouted method with 405.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/categories", h.GetCategories)
	router.Post("/categories", h.CreateCategory)
	router.Put("/categories", h.UpdateCategory)
	router.Delete("/categories", h.DeleteCategory)

	router.Get("/funnels/timeline", h.GetFunnelTimeline)
	router.Post("/funnels/duplicate", h.DuplicateFunnel)
	router.Post("/funnels/toggle", h.ToggleFunnel)
	router.Get("/funnels", h.GetFunnels)
	router.Post("/funnels", h.CreateFunnel)
	router.Put("/funnels", h.UpdateFunnel)
	router.Delete("/funnels", h.DeleteFunnel)

	router.Get("/funnel-steps", h.GetFunnelSteps)
	router.Post("/funnel-steps", h.CreateFunnelSteps)
	router.Put("/funnel-steps", h.UpdateFunnelStep)
	router.Delete("/funnel-steps", h.DeleteFunnelStep)

	router.Get("/messages/categories", h.GetMessageCategories)
	router.Get("/messages", h.GetMessages)
	router.Post("/messages", h.CreateMessage)
	router.Put("/messages", h.UpdateMessage)
	router.Delete("/messages", h.DeleteMessage)

	router.Get("/enrollments", h.GetEnrollments)
	router.Post("/enrollments", h.CreateEnrollment)
	router.Put("/enrollments", h.UpdateEnrollment)

	router.Post("/events", h.ReceiveEvent)

	router.Post("/executions/send-due", h.SendDueExecutions)
	router.Post("/executions/send", h.SendExecution)
	router.Post("/executions/skip", h.SkipExecution)
	router.Get("/executions", h.GetExecutions)
	router.Delete("/executions", h.CancelExecution)

	router.Get("/stats", h.GetStats)
	router.Get("/health", h.HealthCheck)

	for _, path := range []string{"/categories", "/funnels", "/funnel-steps", "/messages", "/enrollments", "/executions"} {
		router.All(path, h.Fallback)
	}
}

// Fallback answers requests no route method matched.
func (h *APIHandlers) Fallback(c fiber.Ctx) error {
	if c.Method() == fiber.MethodOptions {
		return c.Status(fiber.StatusOK).SendString("ok")
	}

	return methodNotAllowed(c)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.health.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Funnel API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Funnel API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// bind decodes and validates the JSON body into req, writing the 400 response on failure.
// The returned bool is false when the handler must stop.
func (h *APIHandlers) bind(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return false, badRequest(c, err.Error())
	}

	return true, nil
}

func queryBool(c fiber.Ctx, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}

	return strconv.ParseBool(raw)
}
