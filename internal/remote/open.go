package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/repsync/repsync/internal/config"
)

// Open builds the backend selected by cfg and wraps it in a [Resilient].
// It returns nil without error for the "none" backend.
func Open(ctx context.Context, cfg config.RemoteConfig, logger *slog.Logger) (*Resilient, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendMongo:
		b, err = OpenMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case config.BackendS3:
		b, err = OpenS3(ctx, *cfg.S3, logger)
	case config.BackendPostgres:
		b, err = OpenPostgres(ctx, cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Backend, err)
	}

	logger.Info("remote store ready", "backend", cfg.Backend, "timeout", cfg.Timeout, "max_attempts", cfg.MaxAttempts)
	return NewResilient(b, cfg.Backend, cfg.Timeout, cfg.MaxAttempts, logger), nil
}
