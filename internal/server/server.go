package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/information-sharing-networks/cmp-trust/internal/config"
	"github.com/information-sharing-networks/cmp-trust/internal/logger"
	"github.com/information-sharing-networks/cmp-trust/internal/server/handlers"
	"github.com/information-sharing-networks/cmp-trust/internal/server/middleware"
	"github.com/information-sharing-networks/cmp-trust/internal/version"
)

// MediaTypePKIXCMP is the media type of DER encoded PKIMessages (RFC 6712).
const MediaTypePKIXCMP = "application/pkixcmp"

// requestTimeout bounds the processing of a single request.
const requestTimeout = 60 * time.Second

type Server struct {
	config       *config.ServerEnvironment
	logger       *slog.Logger
	router       *chi.Mux
	profiles     map[string]*config.Profile
	transactions *transactionStore
	metrics      *validationMetrics
}

// NewServer creates the validation service for the given trust profiles.
// Metrics are recorded in registry; metrics.NewRegistry() is used when it is nil.
func NewServer(
	cfg *config.ServerEnvironment,
	profiles map[string]*config.Profile,
	registry metrics.Registry,
	logger *slog.Logger,
) (*Server, error) {
	transactions, err := newTransactionStore(cfg.TransactionCacheSize)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	server := &Server{
		config:       cfg,
		logger:       logger,
		router:       chi.NewRouter(),
		profiles:     profiles,
		transactions: transactions,
		metrics:      newValidationMetrics(registry),
	}

	server.setupMiddleware()
	server.registerRoutes()

	return server, nil
}

// Handler returns the HTTP handler of the service.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(logger.RequestLogger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.config.Environment))
	s.router.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(chimiddleware.Timeout(requestTimeout))
}

func (s *Server) registerRoutes() {
	s.router.Get("/health/live", handlers.HandleHealth)
	s.router.Get("/ready", handlers.HandleReadiness(func() int { return len(s.profiles) }))
	s.router.Get("/version", handlers.HandleVersion(version.Get()))
	s.router.Get("/metrics", handlers.HandleMetrics(s.metrics.registry))

	s.router.Route("/v1", func(r chi.Router) {
		r.With(
			middleware.RequestSizeLimit(s.config.MaxRequestSize),
			middleware.RequireContentType(MediaTypePKIXCMP),
		).Post("/profiles/{profile}/validate", s.handleValidate)
	})
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr),
			slog.Int("profiles", len(s.profiles)),
		)

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("Shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete",
		slog.Int("open_transactions", s.transactions.len()),
	)
	return nil
}
