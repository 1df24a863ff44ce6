package services

import (
	"context"
	"time"

	"github.com/dukex/funnels/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/dukex/funnels/pkg/services")

// now is the service clock: UTC at microsecond precision, the resolution PostgreSQL stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Health reports on the persistence layer shared by all services.
type Health struct {
	persistence persistence.Persistence
}

func NewHealth(persistence persistence.Persistence) *Health {
	return &Health{persistence: persistence}
}

// HealthCheck checks the health of the persistence layer.
func (h *Health) HealthCheck(ctx context.Context) (string, bool) {
	if h.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := h.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
