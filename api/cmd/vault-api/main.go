package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/malbeclabs/feevault/api/config"
	"github.com/malbeclabs/feevault/api/handlers"
	apimetrics "github.com/malbeclabs/feevault/api/metrics"
	"github.com/malbeclabs/feevault/api/server"
	"github.com/malbeclabs/feevault/utils/pkg/logger"
	"github.com/malbeclabs/feevault/vault/pkg/clickhouse"
	"github.com/malbeclabs/feevault/vault/pkg/events"
	"github.com/malbeclabs/feevault/vault/pkg/pool"
	"github.com/malbeclabs/feevault/vault/pkg/store"
	"github.com/malbeclabs/feevault/vault/pkg/vault"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "", "Path to a YAML config file")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	logFormatFlag := flag.String("log-format", string(logger.FormatText), "Log format: text or json")
	listenAddrFlag := flag.String("listen-addr", "", "Address to serve the API on (default "+config.DefaultListenAddr+")")
	metricsAddrFlag := flag.String("metrics-addr", "", "Address to listen on for prometheus metrics (default "+config.DefaultMetricsAddr+")")
	migrateFlag := flag.Bool("migrate", false, "Apply Postgres migrations before serving")
	flag.Parse()

	// Load .env if present; real environment variables take precedence.
	_ = godotenv.Load()

	log := logger.New(logger.Options{Verbose: *verboseFlag, Format: logger.Format(*logFormatFlag)})

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	if *listenAddrFlag != "" {
		cfg.ListenAddr = *listenAddrFlag
	}
	if *metricsAddrFlag != "" {
		cfg.MetricsAddr = *metricsAddrFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     version,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("sentry enabled", "environment", cfg.Sentry.Environment)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	vaultStore, ready, closeStore, err := openStore(ctx, log, cfg, *migrateFlag)
	if err != nil {
		return err
	}
	defer closeStore()

	gateway, err := pool.NewHTTPClient(pool.HTTPConfig{BaseURL: cfg.Pool.BaseURL, APIKey: cfg.Pool.APIKey})
	if err != nil {
		return err
	}

	publisher, err := newPublisher(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("failed to close event publisher", "error", err)
		}
	}()

	svc, err := vault.New(vault.Config{
		Logger:    log,
		Store:     vaultStore,
		Pool:      gateway,
		Tokens:    gateway,
		Publisher: publisher,
	})
	if err != nil {
		return err
	}

	h, err := handlers.New(handlers.Config{Logger: log, Vaults: svc})
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{
		Logger:      log,
		ListenAddr:  cfg.ListenAddr,
		Handler:     h,
		APIKeys:     cfg.APIKeys,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   rate.Limit(cfg.RateLimit),
		RateBurst:   cfg.RateBurst,
		Ready:       ready,
		Version:     handlers.VersionResponse{Version: version, Commit: commit, Date: date},
		Sentry:      cfg.Sentry.DSN != "",
	})
	if err != nil {
		return err
	}

	apimetrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return serveMetrics(ctx, log, cfg.MetricsAddr) })
	return g.Wait()
}

// openStore returns the Postgres store when configured and the in-memory store otherwise.
func openStore(ctx context.Context, log *slog.Logger, cfg *config.Config, migrate bool) (store.Store, func(context.Context) error, func(), error) {
	if !cfg.Postgres.Enabled() {
		log.Warn("postgres not configured, vault records are kept in memory")
		return store.NewMemory(), nil, func() {}, nil
	}

	connStr := cfg.Postgres.ConnString()
	if migrate {
		if err := store.MigrateUp(ctx, log, connStr); err != nil {
			return nil, nil, nil, err
		}
	}
	pgPool, err := store.NewPgPool(ctx, connStr)
	if err != nil {
		return nil, nil, nil, err
	}
	pg, err := store.NewPostgres(store.PostgresConfig{Logger: log, Pool: pgPool})
	if err != nil {
		pgPool.Close()
		return nil, nil, nil, err
	}
	log.Info("postgres store ready", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	return pg, pingPool(pgPool), pgPool.Close, nil
}

func pingPool(p *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error { return p.Ping(ctx) }
}

// newPublisher fans committed events out to the log and any configured Kafka topic or ClickHouse
// table.
func newPublisher(ctx context.Context, log *slog.Logger, cfg *config.Config) (*events.Publisher, error) {
	sinks := []events.Sink{events.NewLogSink(log)}

	if len(cfg.Events.Kafka.Brokers) > 0 {
		sink, err := events.NewKafkaSink(events.KafkaConfig{
			Brokers: cfg.Events.Kafka.Brokers,
			Topic:   cfg.Events.Kafka.Topic,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
		log.Info("kafka event sink enabled", "topic", cfg.Events.Kafka.Topic)
	}

	if cfg.Events.ClickHouse.Addr != "" {
		client, err := clickhouse.NewClient(ctx, log, cfg.Events.ClickHouse.Client())
		if err != nil {
			return nil, err
		}
		sink, err := events.NewClickHouseSink(client)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink)
		log.Info("clickhouse event sink enabled", "addr", cfg.Events.ClickHouse.Addr)
	}

	return events.NewPublisher(log, sinks...), nil
}

func serveMetrics(ctx context.Context, log *slog.Logger, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start prometheus metrics server listener: %w", err)
	}
	log.Info("prometheus metrics server listening", "address", listener.Addr().String())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
