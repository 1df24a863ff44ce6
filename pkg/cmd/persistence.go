package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/funnels/pkg/persistence"
	"github.com/dukex/funnels/pkg/persistence/file"
	"github.com/dukex/funnels/pkg/persistence/postgresql"
)

// NewPersistence picks PostgreSQL for postgres:// URLs. Anything else is a directory
// for the JSON file store, with an optional file:// prefix.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		postgres, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return postgres, nil
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
