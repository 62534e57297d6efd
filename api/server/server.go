// Package server wires the vault handlers into an HTTP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/malbeclabs/feevault/api/handlers"
	"github.com/malbeclabs/feevault/api/metrics"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readyTimeout           = 2 * time.Second
)

type Config struct {
	Logger     *slog.Logger
	ListenAddr string
	Handler    *handlers.Handler

	// APIKeys maps X-Api-Key values to the addresses they approve for.
	APIKeys     map[string]string
	CORSOrigins []string
	RateLimit   rate.Limit
	RateBurst   int

	// Ready reports whether the backing store is reachable. Optional.
	Ready   func(ctx context.Context) error
	Version handlers.VersionResponse
	// Sentry enables panic and error reporting middleware.
	Sentry bool

	ShutdownTimeout time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Handler == nil {
		return errors.New("handler is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if cfg.RateLimit <= 0 {
		return errors.New("rate limit must be positive")
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}

// Server is the HTTP server for the vault API.
type Server struct {
	log     *slog.Logger
	cfg     Config
	router  *chi.Mux
	limiter *handlers.RateLimiter
	srv     *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		log:     cfg.Logger,
		cfg:     cfg,
		router:  chi.NewRouter(),
		limiter: handlers.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	if s.cfg.Sentry {
		s.router.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
	if len(s.cfg.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", handlers.APIKeyHeader},
			MaxAge:         300,
		}))
	}

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Get("/version", handlers.GetVersion(s.cfg.Version))

	s.router.Group(func(r chi.Router) {
		r.Use(handlers.RateLimitMiddleware(s.limiter))
		r.Use(handlers.APIKeyAuth(s.cfg.APIKeys))
		s.cfg.Handler.Register(r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.cfg.Ready(ctx); err != nil {
			s.log.Warn("server: not ready", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Stop()

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.log.Info("server: listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("server: failed to encode JSON response", "error", err)
	}
}
