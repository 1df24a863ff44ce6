package web

import (
	"bytes"
	"encoding/json"

	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/services"
	"github.com/dukex/funnels/pkg/timing"
	"github.com/gofiber/fiber/v3"
)

// GetFunnels returns one funnel with ?id=, otherwise every funnel newest first.
// ?category_id= and ?uncategorized=true filter the list.
func (h *APIHandlers) GetFunnels(c fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		funnel, err := h.funnelService.FetchByID(c.Context(), id)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(funnel)
	}

	uncategorized, err := queryBool(c, "uncategorized")
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	funnels, err := h.funnelService.List(c.Context(), services.ListFunnelsRequest{
		CategoryID:    c.Query("category_id"),
		Uncategorized: uncategorized,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(funnels)
}

func (h *APIHandlers) CreateFunnel(c fiber.Ctx) error {
	var req CreateFunnelRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	created, err := h.funnelService.Create(c.Context(), &models.Funnel{
		Name:              req.Name,
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		TriggerCondition:  models.TriggerCondition(req.TriggerCondition),
		TriggerDelayValue: req.TriggerDelayValue,
		TriggerDelayUnit:  timing.Unit(req.TriggerDelayUnit),
		IsActive:          active,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFunnel(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	var req UpdateFunnelRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	patch := services.FunnelPatch{
		Name:              req.Name,
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		TriggerDelayValue: req.TriggerDelayValue,
		IsActive:          req.IsActive,
	}

	if req.CategoryID == nil && explicitNull(c.Body(), "category_id") {
		none := ""
		patch.CategoryID = &none
	}

	if req.TriggerCondition != nil {
		condition := models.TriggerCondition(*req.TriggerCondition)
		patch.TriggerCondition = &condition
	}

	if req.TriggerDelayUnit != nil {
		unit := timing.Unit(*req.TriggerDelayUnit)
		patch.TriggerDelayUnit = &unit
	}

	updated, err := h.funnelService.Update(c.Context(), id, patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// explicitNull reports whether the JSON object body sets key to null.
func explicitNull(body []byte, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}

	value, ok := fields[key]

	return ok && bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func (h *APIHandlers) DeleteFunnel(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	err := h.funnelService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ToggleFunnel(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	funnel, err := h.funnelService.Toggle(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(funnel)
}

func (h *APIHandlers) DuplicateFunnel(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	funnel, err := h.funnelService.Duplicate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(funnel)
}

func (h *APIHandlers) GetFunnelTimeline(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	timeline, err := h.funnelService.Timeline(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(timeline)
}

func (h *APIHandlers) GetFunnelSteps(c fiber.Ctx) error {
	funnelID := c.Query("funnel_id")
	if funnelID == "" {
		return missingID(c, "funnel_id")
	}

	steps, err := h.stepService.List(c.Context(), funnelID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(steps)
}

// CreateFunnelSteps accepts a single step object or an array of steps. The response
// mirrors the request shape.
func (h *APIHandlers) CreateFunnelSteps(c fiber.Ctx) error {
	body := bytes.TrimSpace(c.Body())
	batch := len(body) > 0 && body[0] == '['

	var reqs []CreateStepRequest

	if batch {
		if err := json.Unmarshal(body, &reqs); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	} else {
		var req CreateStepRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		reqs = append(reqs, req)
	}

	if len(reqs) == 0 {
		return badRequest(c, "at least one step is required")
	}

	steps := make([]*models.FunnelStep, 0, len(reqs))

	for _, req := range reqs {
		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}

		steps = append(steps, &models.FunnelStep{
			FunnelID:    req.FunnelID,
			StepNumber:  req.StepNumber,
			MessageID:   req.MessageID,
			MessageType: models.MessageType(req.MessageType),
			DelayValue:  req.DelayValue,
			DelayUnit:   timing.Unit(req.DelayUnit),
		})
	}

	created, err := h.stepService.Create(c.Context(), steps)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !batch {
		return c.Status(fiber.StatusCreated).JSON(created[0])
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFunnelStep(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	var req UpdateStepRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	patch := services.StepPatch{
		StepNumber: req.StepNumber,
		MessageID:  req.MessageID,
		DelayValue: req.DelayValue,
	}

	if req.MessageType != nil {
		messageType := models.MessageType(*req.MessageType)
		patch.MessageType = &messageType
	}

	if req.DelayUnit != nil {
		unit := timing.Unit(*req.DelayUnit)
		patch.DelayUnit = &unit
	}

	updated, err := h.stepService.Update(c.Context(), id, patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFunnelStep(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	err := h.stepService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
