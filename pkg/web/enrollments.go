package web

import (
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/services"
	"github.com/gofiber/fiber/v3"
)

// GetEnrollments returns one enrollment with its executions for ?id=, otherwise
// enrollments newest first filtered by ?status=, ?funnel_id= and ?customer_id=.
func (h *APIHandlers) GetEnrollments(c fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		detail, err := h.enrollmentService.FetchByID(c.Context(), id)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(detail)
	}

	status := c.Query("status")
	if status == "all" {
		status = ""
	}

	enrollments, err := h.enrollmentService.List(c.Context(), services.ListEnrollmentsRequest{
		Status:     models.EnrollmentStatus(status),
		FunnelID:   c.Query("funnel_id"),
		CustomerID: c.Query("customer_id"),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(enrollments)
}

func (h *APIHandlers) CreateEnrollment(c fiber.Ctx) error {
	var req EnrollRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	detail, err := h.enrollmentService.Enroll(c.Context(), services.EnrollRequest{
		CustomerID:     req.CustomerID,
		FunnelID:       req.FunnelID,
		RentalID:       req.RentalID,
		EnrolledAt:     req.EnrolledAt,
		IdempotencyKey: c.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(detail)
}

func (h *APIHandlers) UpdateEnrollment(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	var req UpdateEnrollmentRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	updated, err := h.enrollmentService.UpdateStatus(c.Context(), id, models.EnrollmentStatus(req.Status))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// ReceiveEvent enrolls the customer into every active funnel whose trigger matches the event.
func (h *APIHandlers) ReceiveEvent(c fiber.Ctx) error {
	var req EventRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	details, err := h.enrollmentService.EnrollFromEvent(c.Context(), services.TriggerRequest{
		Event:          models.TriggerCondition(req.Event),
		CustomerID:     req.CustomerID,
		RentalID:       req.RentalID,
		OccurredAt:     req.OccurredAt,
		IdempotencyKey: c.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"event":       req.Event,
		"enrollments": details,
	})
}

// GetExecutions returns the executions of ?enrollment_id=, otherwise the pending queue.
func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	if enrollmentID := c.Query("enrollment_id"); enrollmentID != "" {
		executions, err := h.executionService.ListByEnrollment(c.Context(), enrollmentID)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(executions)
	}

	queue, err := h.executionService.Queue(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(queue)
}

func (h *APIHandlers) SendExecution(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	execution, err := h.executionService.Send(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) SkipExecution(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	execution, err := h.executionService.Skip(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	err := h.executionService.Cancel(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SendDueExecutions(c fiber.Ctx) error {
	sent, err := h.executionService.SendDue(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"sent":       len(sent),
		"executions": sent,
	})
}

func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	stats, err := h.enrollmentService.Stats(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}
