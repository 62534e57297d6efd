package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

type slogGooseLogger struct {
	log *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// MigrateUp runs all pending PostgreSQL migrations.
func MigrateUp(ctx context.Context, log *slog.Logger, connStr string) error {
	log.Info("store/postgres: running migrations (up)")
	err := withGoose(log, connStr, func(db *sql.DB) error {
		return goose.UpContext(ctx, db, migrationsDir)
	})
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("store/postgres: migrations completed")
	return nil
}

// MigrateDown rolls back the last PostgreSQL migration.
func MigrateDown(ctx context.Context, log *slog.Logger, connStr string) error {
	log.Info("store/postgres: rolling back migration (down)")
	err := withGoose(log, connStr, func(db *sql.DB) error {
		return goose.DownContext(ctx, db, migrationsDir)
	})
	if err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	log.Info("store/postgres: migration rollback completed")
	return nil
}

// MigrationStatus logs the status of all PostgreSQL migrations.
func MigrationStatus(ctx context.Context, log *slog.Logger, connStr string) error {
	err := withGoose(log, connStr, func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, migrationsDir)
	})
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

func withGoose(log *slog.Logger, connStr string, fn func(db *sql.DB) error) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetLogger(&slogGooseLogger{log: log})
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn(db)
}
