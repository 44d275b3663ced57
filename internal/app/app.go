// Package app wires configuration, logging, metrics, the transaction store
// and the HTTP server into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"panelpulse/internal/config"
	"panelpulse/internal/infrastructure"
	"panelpulse/internal/panel"
	"panelpulse/internal/services"
	"panelpulse/internal/store"
	transport "panelpulse/internal/transport/http"
)

const (
	AppName = "panelpulse"
	Version = "1.0.0"
)

// Application is the assembled service container.
type Application struct {
	Config        *config.Config
	Router        chi.Router
	Server        *http.Server
	Store         *store.MemoryStore
	Engine        *panel.Engine
	Service       *services.AnalyticsService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.AnalyticsMetrics
}

// NewApplication creates a new application instance with dependency injection.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics, err := infrastructure.CreateAnalyticsMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric instruments: %w", err)
	}

	if cfg.Data.PanelFile == "" {
		return nil, fmt.Errorf("data.panel_file is not configured")
	}
	lines, err := store.Load(cfg.Data.PanelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load panel file: %w", err)
	}
	memStore := store.NewMemoryStore(lines, logger)
	logger.Info("panel snapshot loaded",
		slog.String("file", cfg.Data.PanelFile),
		slog.Int("lines", memStore.Len()))

	engine := panel.NewEngine(memStore, cfg.IssuerCatalog(), cfg.EngineDefaults(), logger)
	service := services.NewAnalyticsService(engine, cfg.Analytics, metrics, logger)

	router := transport.NewRouter(transport.RouterDeps{
		Service:  service,
		Snapshot: memStore,
		Metrics:  metrics,
		Scrape:   otelProviders.PrometheusHTTP,
		Server:   cfg.Server,
		Version:  Version,
		Logger:   logger,
	})

	app := &Application{
		Config:        cfg,
		Router:        router,
		Store:         memStore,
		Engine:        engine,
		Service:       service,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
	}
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

// Run starts the server and blocks until an interrupt, then shuts down
// gracefully within the configured timeout.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		a.Logger.InfoContext(ctx, "server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	}

	return a.Stop(ctx)
}

// Stop shuts down the HTTP server and the metric pipeline.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "server shutdown failed", slog.String("error", err.Error()))
		return err
	}

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.WarnContext(ctx, "metrics shutdown failed", slog.String("error", err.Error()))
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		return err
	}

	a.Logger.InfoContext(ctx, "application stopped")
	return nil
}
