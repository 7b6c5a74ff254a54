// Package app wires the application together: configuration, persistence,
// the Notion client, the setup core, the websocket hub, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"stocksetup/internal/config"
	"stocksetup/internal/infrastructure"
	"stocksetup/internal/middleware"
	"stocksetup/internal/notion"
	"stocksetup/internal/persist"
	"stocksetup/internal/services"
	"stocksetup/internal/setup"
	httptransport "stocksetup/internal/transport/http"
	"stocksetup/internal/websocket"
)

// Application holds the assembled dependencies and the running HTTP server.
type Application struct {
	config *config.Config
	logger *slog.Logger
	store  *persist.Store
	hub    *websocket.Hub
	server *http.Server
}

// New creates and wires the application.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := infrastructure.InitializeLogger(cfg.Logging)

	store, err := persist.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	notionClient := notion.NewClient(notion.Options{
		BaseURL:    cfg.Notion.BaseURL,
		APIVersion: cfg.Notion.APIVersion,
		Token:      cfg.Notion.Token,
		Timeout:    cfg.Notion.Timeout,
	}, logger)

	hub := websocket.NewHub(logger)

	machine := setup.NewMachine(store, notionClient, hub, logger)
	gate := setup.NewGate(store, notionClient, logger)
	setupService := services.NewSetupService(machine, gate, logger)

	app := &Application{
		config: cfg,
		logger: logger,
		store:  store,
		hub:    hub,
	}
	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.buildRouter(setupService, notionClient),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return app, nil
}

func (a *Application) buildRouter(setupService services.SetupService, resolver middleware.WorkspaceResolver) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(a.logger))
	r.Use(middleware.Recoverer(a.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	if a.config.Security.RateLimit.Enabled {
		r.Use(middleware.RateLimiter(a.config.Security.RateLimit.RPS, a.config.Security.RateLimit.Burst))
	}

	setupHandler := httptransport.NewSetupHandler(setupService, a.logger)
	healthHandler := httptransport.NewHealthHandler()

	r.Route("/api", func(r chi.Router) {
		r.Mount("/", healthHandler.Routes())
		r.Group(func(r chi.Router) {
			r.Use(middleware.WorkspaceAuth(resolver, a.logger))
			r.Mount("/setup", setupHandler.Routes())
		})
	})
	r.Get("/ws", a.hub.ServeWS)

	return r
}

// Run starts the application and blocks until a shutdown signal arrives.
func (a *Application) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	return a.Stop(ctx)
}

// Start launches the websocket hub and the HTTP server.
func (a *Application) Start() error {
	go a.hub.Run()

	a.logger.Info("server starting",
		slog.Int("port", a.config.Server.Port),
		slog.String("version", httptransport.Version))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts down the server, the hub, and the store.
func (a *Application) Stop(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		return err
	}
	a.hub.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Error("store close failed", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
