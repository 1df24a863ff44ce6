package cmd

import (
	"context"

	"github.com/dukex/funnels/pkg/idempotency"
)

// NewIdempotencyStore uses Redis when redisURL is set, otherwise an in-process store
// that only deduplicates within one API instance.
func NewIdempotencyStore(ctx context.Context, redisURL string) (idempotency.Store, error) {
	if redisURL == "" {
		return idempotency.NewMemoryStore(), nil
	}

	return idempotency.NewRedisStore(ctx, redisURL)
}
