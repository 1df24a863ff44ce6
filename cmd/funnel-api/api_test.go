package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/funnels/pkg/events"
	"github.com/dukex/funnels/pkg/idempotency"
	"github.com/dukex/funnels/pkg/mocks"
	"github.com/dukex/funnels/pkg/persistence/file"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	publisher := &mocks.MockEventBus{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	return NewAPI(slog.Default(), file.NewPersistence(t.TempDir()), publisher, idempotency.NewMemoryStore()).App()
}

func get(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	t.Parallel()

	resp, body := get(t, setupTestApp(t), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Funnel API", body)
}

func TestAPI_Liveness(t *testing.T) {
	t.Parallel()

	resp, body := get(t, setupTestApp(t), httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
}

func TestAPI_CORS(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/funnels", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")

	resp, body := get(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, "[]", body)

	preflight := httptest.NewRequest(http.MethodOptions, "/funnels", nil)
	preflight.Header.Set("Origin", "https://dashboard.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPut)

	resp, _ = get(t, app, preflight)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Apikey")
}

func TestAPI_PlainOptions(t *testing.T) {
	t.Parallel()

	resp, body := get(t, setupTestApp(t), httptest.NewRequest(http.MethodOptions, "/messages", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestWatchEvents(t *testing.T) {
	t.Parallel()

	bus := &mocks.MockEventBus{}
	bus.On("Handle", mock.Anything, mock.Anything).Return(nil)
	bus.On("Subscribe", mock.Anything).Return(nil)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, watchEvents(ctx, slog.Default(), bus))

	bus.AssertNumberOfCalls(t, "Handle", len(events.Types))
	bus.AssertCalled(t, "Handle", events.ExecutionSentEvent, mock.Anything)
	bus.AssertCalled(t, "Subscribe", mock.Anything)
}
