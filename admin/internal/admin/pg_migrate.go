package admin

import (
	"context"
	"log/slog"

	"github.com/malbeclabs/feevault/api/config"
	"github.com/malbeclabs/feevault/vault/pkg/store"
)

// PgMigrateUp runs all pending PostgreSQL migrations
func PgMigrateUp(ctx context.Context, log *slog.Logger, cfg config.PostgresConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return store.MigrateUp(ctx, log, cfg.ConnString())
}

// PgMigrateDown rolls back the last PostgreSQL migration
func PgMigrateDown(ctx context.Context, log *slog.Logger, cfg config.PostgresConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return store.MigrateDown(ctx, log, cfg.ConnString())
}

// PgMigrateStatus shows the status of all PostgreSQL migrations
func PgMigrateStatus(ctx context.Context, log *slog.Logger, cfg config.PostgresConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return store.MigrationStatus(ctx, log, cfg.ConnString())
}
