package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/funnels/pkg/idempotency"
	"github.com/dukex/funnels/pkg/models"
	"github.com/dukex/funnels/pkg/persistence/file"
	"github.com/dukex/funnels/pkg/services"
	"github.com/dukex/funnels/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())
	handlers := web.NewAPIHandlers(web.Services{
		Categories:  services.NewCategory(persistence),
		Funnels:     services.NewFunnel(persistence),
		Steps:       services.NewStep(persistence),
		Messages:    services.NewMessage(persistence),
		Enrollments: services.NewEnrollment(persistence, nil, idempotency.NewMemoryStore()),
		Executions:  services.NewExecution(persistence, nil),
		Health:      services.NewHealth(persistence),
	}, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.Register(app)

	return app
}

func do(t *testing.T, app *fiber.App, method, target string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, respBody
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))

	return v
}

type problem struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func createMessage(t *testing.T, app *fiber.App, name, messageType, category string) models.MessageTemplate {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/messages", web.CreateMessageRequest{
		Name:            name,
		MessageType:     messageType,
		MessageCategory: category,
		Content:         "Hi {{first_name}}",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[models.MessageTemplate](t, body)
}

func createFunnel(t *testing.T, app *fiber.App, req web.CreateFunnelRequest) models.Funnel {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/funnels", req)
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[models.Funnel](t, body)
}

func TestAPIHandlers_Categories(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodPost, "/categories", web.CreateCategoryRequest{Name: "Rentals"})
	require.Equal(t, http.StatusCreated, status)

	category := decode[models.Category](t, body)
	assert.Equal(t, models.DefaultCategoryColor, category.Color)

	status, _ = do(t, app, http.MethodPost, "/categories", web.CreateCategoryRequest{Name: "Archive", Color: "blue"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/categories", web.CreateCategoryRequest{Name: "Archive"})
	require.Equal(t, http.StatusCreated, status)

	status, body = do(t, app, http.MethodGet, "/categories", nil)
	require.Equal(t, http.StatusOK, status)

	categories := decode[[]models.Category](t, body)
	require.Len(t, categories, 2)
	assert.Equal(t, "Archive", categories[0].Name)

	color := "#10B981"
	status, body = do(t, app, http.MethodPut, "/categories?id="+category.ID, web.UpdateCategoryRequest{Color: &color})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, color, decode[models.Category](t, body).Color)

	status, _ = do(t, app, http.MethodPut, "/categories", web.UpdateCategoryRequest{Color: &color})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodDelete, "/categories?id="+category.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodDelete, "/categories?id="+category.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, http.StatusNotFound, decode[problem](t, body).Status)
}

func TestAPIHandlers_Funnels(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	funnel := createFunnel(t, app, web.CreateFunnelRequest{
		Name:              "Return reminders",
		TriggerCondition:  "before_return",
		TriggerDelayValue: -2,
		TriggerDelayUnit:  "days",
	})
	assert.True(t, funnel.IsActive)
	assert.Equal(t, models.TriggerBeforeReturn, funnel.TriggerCondition)

	status, body := do(t, app, http.MethodPost, "/funnels", web.CreateFunnelRequest{Name: "Bad", TriggerCondition: "rental_lost"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", decode[problem](t, body).Type)

	status, body = do(t, app, http.MethodGet, "/funnels?id="+funnel.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Return reminders", decode[models.Funnel](t, body).Name)

	status, body = do(t, app, http.MethodGet, "/funnels?id=missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "funnel_not_found", decode[problem](t, body).Type)

	status, body = do(t, app, http.MethodPost, "/categories", web.CreateCategoryRequest{Name: "Rentals"})
	require.Equal(t, http.StatusCreated, status)

	category := decode[models.Category](t, body)

	status, body = do(t, app, http.MethodPut, "/funnels?id="+funnel.ID, map[string]any{"category_id": category.ID})
	require.Equal(t, http.StatusOK, status)
	updated := decode[models.Funnel](t, body)
	require.NotNil(t, updated.CategoryID)
	assert.Equal(t, -2, updated.TriggerDelayValue)

	status, body = do(t, app, http.MethodPut, "/funnels?id="+funnel.ID, `{"category_id": null}`)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, decode[models.Funnel](t, body).CategoryID)

	status, body = do(t, app, http.MethodPost, "/funnels/toggle?id="+funnel.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[models.Funnel](t, body).IsActive)

	status, body = do(t, app, http.MethodPost, "/funnels/duplicate?id="+funnel.ID, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Return reminders (Copy)", decode[models.Funnel](t, body).Name)

	status, body = do(t, app, http.MethodGet, "/funnels", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Funnel](t, body), 2)

	status, body = do(t, app, http.MethodGet, "/funnels/timeline?id="+funnel.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Starts 2 days before", decode[services.TimelineResponse](t, body).TriggerLabel)

	status, _ = do(t, app, http.MethodGet, "/funnels?uncategorized=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodDelete, "/funnels?id="+funnel.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodDelete, "/funnels", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_FunnelSteps(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	message := createMessage(t, app, "Welcome", "sms", "onboarding")
	funnel := createFunnel(t, app, web.CreateFunnelRequest{Name: "Welcome"})

	status, _ := do(t, app, http.MethodGet, "/funnel-steps", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := do(t, app, http.MethodPost, "/funnel-steps", web.CreateStepRequest{
		FunnelID:  funnel.ID,
		MessageID: message.ID,
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	single := decode[models.FunnelStep](t, body)
	assert.Equal(t, 1, single.StepNumber)

	status, body = do(t, app, http.MethodPost, "/funnel-steps", []web.CreateStepRequest{
		{FunnelID: funnel.ID, MessageID: message.ID, DelayValue: 2, DelayUnit: "hours"},
		{FunnelID: funnel.ID, MessageID: message.ID, DelayValue: 3, DelayUnit: "days"},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Len(t, decode[[]models.FunnelStep](t, body), 2)

	status, _ = do(t, app, http.MethodPost, "/funnel-steps", web.CreateStepRequest{
		FunnelID: funnel.ID, MessageID: message.ID, MessageType: "email",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/funnel-steps", `[]`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/funnel-steps", `{"funnel_id":`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodGet, "/funnel-steps?funnel_id="+funnel.ID, nil)
	require.Equal(t, http.StatusOK, status)

	var steps []map[string]any
	require.NoError(t, json.Unmarshal(body, &steps))
	require.Len(t, steps, 3)
	assert.InDelta(t, 1, steps[0]["step_number"], 0)
	templates, ok := steps[0]["message_templates"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Welcome", templates["name"])

	delay := 10
	status, body = do(t, app, http.MethodPut, "/funnel-steps?id="+single.ID, web.UpdateStepRequest{DelayValue: &delay})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10, decode[models.FunnelStep](t, body).DelayValue)

	status, _ = do(t, app, http.MethodDelete, "/funnel-steps?id="+single.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodGet, "/funnels?id="+funnel.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, decode[models.Funnel](t, body).StepCount)
}

func TestAPIHandlers_Messages(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	welcome := createMessage(t, app, "Welcome", "sms", "onboarding")
	createMessage(t, app, "Receipt", "email", "billing")
	createMessage(t, app, "Reminder", "sms", "returns")

	status, body := do(t, app, http.MethodGet, "/messages?category=onboarding", nil)
	require.Equal(t, http.StatusOK, status)

	onboarding := decode[[]models.MessageTemplate](t, body)
	require.Len(t, onboarding, 1)
	assert.Equal(t, welcome.ID, onboarding[0].ID)

	status, body = do(t, app, http.MethodGet, "/messages", nil)
	require.Equal(t, http.StatusOK, status)

	all := decode[[]models.MessageTemplate](t, body)
	require.Len(t, all, 3)
	assert.Equal(t, "Receipt", all[0].Name)

	status, body = do(t, app, http.MethodGet, "/messages/categories?message_type=sms", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"onboarding", "returns"}, decode[[]string](t, body))

	status, _ = do(t, app, http.MethodPost, "/messages", web.CreateMessageRequest{Name: "Push", MessageType: "push", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, status)

	funnel := createFunnel(t, app, web.CreateFunnelRequest{Name: "Welcome"})
	status, _ = do(t, app, http.MethodPost, "/funnel-steps", web.CreateStepRequest{FunnelID: funnel.ID, MessageID: welcome.ID})
	require.Equal(t, http.StatusCreated, status)

	status, body = do(t, app, http.MethodDelete, "/messages?id="+welcome.ID, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", decode[problem](t, body).Type)

	content := "Updated"
	status, body = do(t, app, http.MethodPut, "/messages?id="+welcome.ID, web.UpdateMessageRequest{Content: &content})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Updated", decode[models.MessageTemplate](t, body).Content)

	status, body = do(t, app, http.MethodGet, "/messages?id="+welcome.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Updated", decode[models.MessageTemplate](t, body).Content)
}

type enrollmentResponse struct {
	ID         string                  `json:"id"`
	Status     string                  `json:"status"`
	FunnelName string                  `json:"funnel_name"`
	Executions []*models.StepExecution `json:"executions"`
}

func setupEnrollableFunnel(t *testing.T, app *fiber.App, trigger string) models.Funnel {
	t.Helper()

	message := createMessage(t, app, "Welcome", "sms", "onboarding")
	funnel := createFunnel(t, app, web.CreateFunnelRequest{Name: "Rental", TriggerCondition: trigger})

	status, _ := do(t, app, http.MethodPost, "/funnel-steps", []web.CreateStepRequest{
		{FunnelID: funnel.ID, MessageID: message.ID},
		{FunnelID: funnel.ID, MessageID: message.ID, DelayValue: 3, DelayUnit: "days"},
	})
	require.Equal(t, http.StatusCreated, status)

	return funnel
}

func TestAPIHandlers_EnrollmentsAndExecutions(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	funnel := setupEnrollableFunnel(t, app, "rental_created")

	status, body := do(t, app, http.MethodPost, "/enrollments", map[string]any{
		"customer_id": "customer-1",
		"funnel_id":   funnel.ID,
		"enrolled_at": "2024-01-01T00:00:00Z",
	}, web.IdempotencyKeyHeader, "enroll-1")
	require.Equal(t, http.StatusCreated, status, string(body))

	enrollment := decode[enrollmentResponse](t, body)
	assert.Equal(t, "active", enrollment.Status)
	assert.Equal(t, "Rental", enrollment.FunnelName)
	require.Len(t, enrollment.Executions, 2)
	assert.Equal(t, "2024-01-04T00:00:00Z", enrollment.Executions[1].ScheduledAt.Format("2006-01-02T15:04:05Z07:00"))

	status, _ = do(t, app, http.MethodPost, "/enrollments", map[string]any{
		"customer_id": "customer-1",
		"funnel_id":   funnel.ID,
	}, web.IdempotencyKeyHeader, "enroll-1")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = do(t, app, http.MethodPost, "/enrollments", map[string]any{"funnel_id": funnel.ID})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodGet, "/executions", nil)
	require.Equal(t, http.StatusOK, status)

	var queue []map[string]any
	require.NoError(t, json.Unmarshal(body, &queue))
	require.Len(t, queue, 2)
	assert.Equal(t, "Due now", queue[0]["time_until"])
	assert.Equal(t, "Rental", queue[0]["funnel_name"])

	first, second := enrollment.Executions[0], enrollment.Executions[1]

	status, body = do(t, app, http.MethodPost, "/executions/send?id="+first.ID, nil)
	require.Equal(t, http.StatusOK, status)
	sent := decode[models.StepExecution](t, body)
	assert.Equal(t, models.ExecutionSent, sent.Status)
	assert.NotNil(t, sent.ExecutedAt)

	status, body = do(t, app, http.MethodPost, "/executions/send?id="+first.ID, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, http.StatusConflict, decode[problem](t, body).Status)

	status, body = do(t, app, http.MethodPost, "/executions/skip?id="+second.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ExecutionSkipped, decode[models.StepExecution](t, body).Status)

	status, body = do(t, app, http.MethodGet, "/executions?enrollment_id="+enrollment.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.StepExecution](t, body), 2)

	status, body = do(t, app, http.MethodPut, "/enrollments?id="+enrollment.ID, web.UpdateEnrollmentRequest{Status: "completed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.EnrollmentCompleted, decode[models.Enrollment](t, body).Status)

	status, _ = do(t, app, http.MethodPut, "/enrollments?id="+enrollment.ID, web.UpdateEnrollmentRequest{Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodGet, "/enrollments?status=all", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]enrollmentResponse](t, body), 1)

	status, body = do(t, app, http.MethodGet, "/enrollments?id="+enrollment.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[enrollmentResponse](t, body).Executions, 2)

	status, body = do(t, app, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, status)

	stats := decode[services.Stats](t, body)
	assert.Equal(t, 1, stats.CompletedEnrollments)
	assert.Equal(t, 0, stats.PendingExecutions)
	assert.Equal(t, 1, stats.SentToday)
}

func TestAPIHandlers_EventsAndSendDue(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	setupEnrollableFunnel(t, app, "rental_start_date")

	status, body := do(t, app, http.MethodPost, "/events", web.EventRequest{Event: "rental_start_date", CustomerID: "customer-1"})
	require.Equal(t, http.StatusCreated, status, string(body))

	var result struct {
		Enrollments []enrollmentResponse `json:"enrollments"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Enrollments, 1)

	status, body = do(t, app, http.MethodPost, "/events", web.EventRequest{Event: "rental_lost", CustomerID: "customer-1"})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = do(t, app, http.MethodPost, "/executions/send-due", nil)
	require.Equal(t, http.StatusOK, status)

	var due struct {
		Sent int `json:"sent"`
	}
	require.NoError(t, json.Unmarshal(body, &due))
	assert.Equal(t, 1, due.Sent)

	queue := result.Enrollments[0].Executions
	require.Len(t, queue, 2)

	status, _ = do(t, app, http.MethodDelete, "/executions?id="+queue[1].ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodDelete, "/executions?id="+queue[1].ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_MethodHandling(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	for _, path := range []string{"/categories", "/funnels", "/funnel-steps", "/messages"} {
		status, body := do(t, app, http.MethodPatch, path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, status, path)
		assert.Equal(t, "method_not_allowed", decode[problem](t, body).Type)

		status, body = do(t, app, http.MethodOptions, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "ok", string(body))
	}

	status, _ := do(t, app, http.MethodDelete, "/enrollments?id=x", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	health := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", health["status"])
}
