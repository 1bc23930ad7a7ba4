package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/provisio/provisio/pkg/persistence"
	"github.com/provisio/provisio/pkg/persistence/file"
	"github.com/provisio/provisio/pkg/persistence/postgresql"
	"github.com/provisio/provisio/pkg/persistence/redis"
)

// NewPersistence creates a state repository based on the database URL scheme.
// Anything without a recognized scheme is treated as a file path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.StateRepository, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres":
		return postgresql.NewRepository(ctx, logger, databaseURL)
	case "redis":
		return redis.NewRepository(databaseURL)
	default:
		return file.NewRepository(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgres"
	case "redis", "rediss":
		return "redis"
	default:
		return "file"
	}
}
