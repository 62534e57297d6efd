package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/feevault/admin/internal/admin"
	"github.com/malbeclabs/feevault/api/config"
	"github.com/malbeclabs/feevault/utils/pkg/logger"
	"github.com/malbeclabs/feevault/vault/pkg/clickhouse"
	"github.com/malbeclabs/feevault/vault/pkg/pool"
	"github.com/malbeclabs/feevault/vault/pkg/store"
	"github.com/malbeclabs/feevault/vault/pkg/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// PostgreSQL configuration
	postgresURLFlag := flag.String("postgres-url", "", "PostgreSQL connection URL (or set POSTGRES_URL env var)")

	// ClickHouse configuration
	clickhouseAddrFlag := flag.String("clickhouse-addr", "", "ClickHouse address (host:port) (or set CLICKHOUSE_ADDR_TCP env var)")
	clickhouseDatabaseFlag := flag.String("clickhouse-database", clickhouse.DefaultDatabase, "ClickHouse database name (or set CLICKHOUSE_DATABASE env var)")
	clickhouseUsernameFlag := flag.String("clickhouse-username", "default", "ClickHouse username (or set CLICKHOUSE_USERNAME env var)")
	clickhousePasswordFlag := flag.String("clickhouse-password", "", "ClickHouse password (or set CLICKHOUSE_PASSWORD env var)")
	clickhouseSecureFlag := flag.Bool("clickhouse-secure", false, "Enable TLS for ClickHouse Cloud (or set CLICKHOUSE_SECURE=true env var)")

	// Commands
	pgMigrateFlag := flag.Bool("pg-migrate", false, "Run PostgreSQL vault store migrations using goose")
	pgMigrateDownFlag := flag.Bool("pg-migrate-down", false, "Roll back the most recent PostgreSQL migration")
	pgMigrateStatusFlag := flag.Bool("pg-migrate-status", false, "Show PostgreSQL migration status")
	clickhouseMigrateFlag := flag.Bool("clickhouse-migrate", false, "Run ClickHouse analytics migrations using goose")
	clickhouseMigrateStatusFlag := flag.Bool("clickhouse-migrate-status", false, "Show ClickHouse analytics migration status")
	resetAnalyticsFlag := flag.Bool("reset-analytics", false, "Drop the ClickHouse analytics tables (vault_*) and their migration history")
	initVaultsFlag := flag.String("init-vaults", "", "Create the vaults listed in the given YAML file (vaults: [...])")
	dryRunFlag := flag.Bool("dry-run", false, "Dry run mode - show what would be done without actually executing")
	yesFlag := flag.Bool("yes", false, "Skip confirmation prompt (use with caution)")

	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(logger.Options{Verbose: *verboseFlag})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*initVaultsFlag)
	if err != nil {
		return err
	}
	if *postgresURLFlag != "" {
		cfg.Postgres.URL = *postgresURLFlag
	}

	// Flags set on the command line override the environment and config file.
	chCfg := cfg.Events.ClickHouse
	setString := func(dst *string, name string, val string) {
		if flag.CommandLine.Changed(name) || *dst == "" {
			*dst = val
		}
	}
	setString(&chCfg.Addr, "clickhouse-addr", *clickhouseAddrFlag)
	setString(&chCfg.Database, "clickhouse-database", *clickhouseDatabaseFlag)
	setString(&chCfg.Username, "clickhouse-username", *clickhouseUsernameFlag)
	setString(&chCfg.Password, "clickhouse-password", *clickhousePasswordFlag)
	if flag.CommandLine.Changed("clickhouse-secure") {
		chCfg.Secure = *clickhouseSecureFlag
	}

	// Execute commands
	if *pgMigrateFlag {
		return admin.PgMigrateUp(ctx, log, cfg.Postgres)
	}
	if *pgMigrateDownFlag {
		return admin.PgMigrateDown(ctx, log, cfg.Postgres)
	}
	if *pgMigrateStatusFlag {
		return admin.PgMigrateStatus(ctx, log, cfg.Postgres)
	}

	if *clickhouseMigrateFlag {
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --clickhouse-migrate")
		}
		return clickhouse.Up(ctx, log, chCfg.Client())
	}
	if *clickhouseMigrateStatusFlag {
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --clickhouse-migrate-status")
		}
		return clickhouse.MigrationStatus(ctx, log, chCfg.Client())
	}

	if *resetAnalyticsFlag {
		if chCfg.Addr == "" {
			return fmt.Errorf("--clickhouse-addr is required for --reset-analytics")
		}
		client, err := clickhouse.NewClient(ctx, log, chCfg.Client())
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer client.Close()
		return admin.ResetAnalytics(ctx, log, client, admin.ResetOptions{
			DryRun:      *dryRunFlag,
			SkipConfirm: *yesFlag,
			In:          os.Stdin,
			Out:         os.Stdout,
		})
	}

	if *initVaultsFlag != "" {
		return initVaults(ctx, log, cfg, *dryRunFlag)
	}

	flag.Usage()
	return nil
}

func initVaults(ctx context.Context, log *slog.Logger, cfg *config.Config, dryRun bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Vaults) == 0 {
		return fmt.Errorf("no vaults listed in config")
	}
	if dryRun {
		for _, v := range cfg.Vaults {
			fmt.Printf("[DRY RUN] Would initialize vault %s (pool %s, asset %s, %s at %d)\n",
				v.ID, v.Pool, v.Asset, v.Fee.RateType, v.Fee.Rate)
		}
		return nil
	}
	if !cfg.Postgres.Enabled() {
		return fmt.Errorf("postgres is required for --init-vaults (set POSTGRES_URL or --postgres-url)")
	}

	pgPool, err := store.NewPgPool(ctx, cfg.Postgres.ConnString())
	if err != nil {
		return err
	}
	defer pgPool.Close()
	vaultStore, err := store.NewPostgres(store.PostgresConfig{Logger: log, Pool: pgPool})
	if err != nil {
		return err
	}
	gateway, err := pool.NewHTTPClient(pool.HTTPConfig{BaseURL: cfg.Pool.BaseURL, APIKey: cfg.Pool.APIKey})
	if err != nil {
		return err
	}
	svc, err := vault.New(vault.Config{
		Logger: log,
		Store:  vaultStore,
		Pool:   gateway,
		Tokens: gateway,
	})
	if err != nil {
		return err
	}

	res, err := admin.InitVaults(ctx, log, svc, cfg.Vaults)
	if err != nil {
		return err
	}
	fmt.Printf("Initialized %d vault(s), skipped %d existing\n", len(res.Created), len(res.Skipped))
	return nil
}
