// Package api provides the HTTP API server for the vault hub.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/strataops/vaulthub/internal/api/handlers"
	"github.com/strataops/vaulthub/internal/api/health"
	"github.com/strataops/vaulthub/internal/api/middleware"
	"github.com/strataops/vaulthub/internal/audit"
	"github.com/strataops/vaulthub/internal/auth"
	"github.com/strataops/vaulthub/internal/probe"
	"github.com/strataops/vaulthub/internal/ratelimit"
	"github.com/strataops/vaulthub/internal/store"
	"github.com/strataops/vaulthub/internal/vault"
	"github.com/strataops/vaulthub/pkg/config"
)

// Version is the current version of the API server.
// This should be set at build time using ldflags.
var Version = "dev"

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	httpServer    *http.Server
	store         store.Store
	auth          *auth.Service
	vault         *vault.Service
	recorder      *audit.Recorder
	dispatcher    *probe.Dispatcher
	updater       *probe.Updater
	limiter       *ratelimit.Limiter
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:  st,
		auth:   authSvc,
		config: cfg,
		logger: logger,
	}

	s.healthChecker = health.NewChecker(st, Version)

	// The master key is read lazily; a missing or malformed key surfaces on
	// first vault use, not here.
	cipher := vault.NewCipher(func() string { return cfg.Vault.MasterKeyHex })

	s.recorder = audit.NewRecorder(st.Audit(), logger)
	s.vault = vault.NewService(cipher, st.Secrets(), s.recorder, logger)

	var delegate *probe.DelegateClient
	if cfg.Probe.DelegateBaseURL != "" {
		delegate = probe.NewDelegateClient(cfg.Probe.DelegateBaseURL, cfg.Probe.DelegateTimeout, logger)
		logger.Info("probe delegate configured", "base_url", cfg.Probe.DelegateBaseURL)
	}

	s.updater = probe.NewUpdater(st.Connections(), cfg.Probe.WriteBackTimeout, logger)
	s.dispatcher = probe.NewDispatcher(st.Connections(), s.vault, delegate, s.updater,
		nil, cfg.Probe.Timeout, logger)

	s.limiter = ratelimit.NewLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window, cfg.RateLimit.MaxEntries)

	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check endpoint (no auth required)
	r.Get("/health", s.healthChecker.Handler())

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.logger)
		r.Use(authMiddleware.Authenticate)

		vaultHandler := handlers.NewVaultHandler(s.vault, s.logger)
		r.Route("/vault/secrets", func(r chi.Router) {
			r.Use(middleware.RateLimit(s.limiter))
			r.Post("/", vaultHandler.Create)
			r.Get("/", vaultHandler.List)
			r.Delete("/{secretID}", vaultHandler.Delete)
		})

		connectionHandler := handlers.NewConnectionHandler(s.store, s.dispatcher, s.recorder, s.logger)
		r.Route("/connections", func(r chi.Router) {
			r.Get("/providers", connectionHandler.ListProviderStatuses)
			r.Post("/", connectionHandler.Upsert)
			r.Delete("/{connectionID}", connectionHandler.Deactivate)
			r.Post("/test/{provider}", connectionHandler.Test)
		})
	})

	s.router = r
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server and drains in-flight health
// write-backs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.updater.Close()
	return err
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
