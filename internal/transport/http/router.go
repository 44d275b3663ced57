package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"panelpulse/internal/config"
	"panelpulse/internal/errors"
	"panelpulse/internal/infrastructure"
	"panelpulse/internal/middleware"
	"panelpulse/internal/services"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Service  *services.AnalyticsService
	Snapshot SnapshotInfo
	Metrics  *infrastructure.AnalyticsMetrics
	Scrape   http.Handler
	Server   config.ServerConfig
	Version  string
	Logger   *slog.Logger
}

// NewRouter builds the HTTP router with the full middleware stack and all
// application routes.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Compress(5))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	if deps.Server.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(deps.Server.RateLimitRPS, deps.Server.RateLimitBurst, logger)
		r.Use(rl.Handler)
	}

	errorHandler := errors.NewErrorHandler(logger, false)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	health := NewHealthHandler(deps.Snapshot, deps.Version, logger)
	r.Get("/healthz", health.Get)

	if deps.Scrape != nil {
		r.Method(http.MethodGet, "/metrics", deps.Scrape)
	}

	analytics := NewAnalyticsHandler(deps.Service, logger)
	r.Route("/api", func(r chi.Router) {
		analytics.RegisterRoutes(r)
	})

	return r
}
