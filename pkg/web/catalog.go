package web

import (
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/services"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetCategories(c fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		category, err := h.categoryService.FetchByID(c.Context(), id)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(category)
	}

	categories, err := h.categoryService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(categories)
}

func (h *APIHandlers) CreateCategory(c fiber.Ctx) error {
	var req CreateCategoryRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	created, err := h.categoryService.Create(c.Context(), &models.Category{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateCategory(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	var req UpdateCategoryRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	updated, err := h.categoryService.Update(c.Context(), id, services.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteCategory(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	err := h.categoryService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetMessages returns one template with ?id=, otherwise templates filtered by
// ?category=, ?message_type= and ?active=.
func (h *APIHandlers) GetMessages(c fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		message, err := h.messageService.FetchByID(c.Context(), id)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(message)
	}

	activeOnly, err := queryBool(c, "active")
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	messages, err := h.messageService.List(c.Context(), services.ListMessagesRequest{
		Category:    c.Query("category"),
		MessageType: models.MessageType(c.Query("message_type")),
		ActiveOnly:  activeOnly,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(messages)
}

func (h *APIHandlers) GetMessageCategories(c fiber.Ctx) error {
	messageType := c.Query("message_type")
	if messageType == "" {
		return missingID(c, "message_type")
	}

	categories, err := h.messageService.Categories(c.Context(), models.MessageType(messageType))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(categories)
}

func (h *APIHandlers) CreateMessage(c fiber.Ctx) error {
	var req CreateMessageRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	created, err := h.messageService.Create(c.Context(), &models.MessageTemplate{
		Name:            req.Name,
		MessageType:     models.MessageType(req.MessageType),
		MessageCategory: req.MessageCategory,
		Subject:         req.Subject,
		Content:         req.Content,
		IsActive:        active,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateMessage(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	var req UpdateMessageRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	patch := services.MessagePatch{
		Name:            req.Name,
		MessageCategory: req.MessageCategory,
		Subject:         req.Subject,
		Content:         req.Content,
		IsActive:        req.IsActive,
	}

	if req.MessageType != nil {
		messageType := models.MessageType(*req.MessageType)
		patch.MessageType = &messageType
	}

	updated, err := h.messageService.Update(c.Context(), id, patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteMessage(c fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return missingID(c, "id")
	}

	err := h.messageService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
