package web

import (
	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func missingID(c fiber.Ctx, param string) error {
	return badRequest(c, param+" query parameter is required")
}

func methodNotAllowed(c fiber.Ctx) error {
	problem := problems.NewStatusProblem(fiber.StatusMethodNotAllowed).
		WithInstance(c.Path()).
		WithType("method_not_allowed").
		WithDetail("method " + c.Method() + " is not allowed")

	return c.Status(fiber.StatusMethodNotAllowed).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsNotFound(err):
		problem := problems.NewStatusProblem(fiber.StatusNotFound).
			WithInstance(c.Path()).
			WithType(notFoundType(err)).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func notFoundType(err error) string {
	switch {
	case persistence.IsFunnelNotFound(err):
		return "funnel_not_found"
	case persistence.IsMessageNotFound(err):
		return "message_not_found"
	case persistence.IsExecutionNotFound(err):
		return "execution_not_found"
	default:
		return "not_found"
	}
}
