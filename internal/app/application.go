package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fireside/internal/api"
	"fireside/internal/auth"
	"fireside/internal/config"
	"fireside/internal/database"
	"fireside/internal/hub"
	"fireside/internal/membership"
	"fireside/internal/router"
	"fireside/internal/websocket"
	dbconfig "fireside/pkg/database"
	"fireside/pkg/types"
)

// Application wires all components in dependency order:
// Store → Auth/Gate → Registry → Hub → Router → Handler → API → HTTP.
type Application struct {
	config     *config.Config
	logger     *zap.Logger
	store      *database.Manager
	registry   *websocket.Registry
	eventHub   *hub.Hub
	limiter    *router.RateLimiter
	apiServer  *api.Server
	httpServer *http.Server

	sweepCancel context.CancelFunc
}

// New constructs an application from validated configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := database.NewManager(&dbconfig.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := dbconfig.NewMigrationManager(store.GetDB()).ApplyMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := dbconfig.NewSchemaValidator(store.GetDB()).ValidateTablesExist(); err != nil {
		store.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, store, logger)
	gate := membership.NewGate(store, logger)

	registry := websocket.NewRegistry(logger)
	eventHub := hub.NewHub(registry, logger)
	limiter := router.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxEvents)
	eventRouter := router.NewRouter(registry, gate, eventHub, limiter, logger)

	wsHandler := websocket.NewHandler(registry, verifier, eventRouter, cfg.WebSocket, logger)
	apiServer := api.NewServer(registry, limiter, eventHub, store, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		store:      store,
		registry:   registry,
		eventHub:   eventHub,
		limiter:    limiter,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start brings up the hub, the rate-limit sweep, and the HTTP server.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting fireside", zap.String("addr", app.httpServer.Addr))

	if err := app.eventHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	app.sweepCancel = cancel
	go app.limiter.Run(sweepCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.sweepCancel()
		app.eventHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("fireside started")
		return nil
	case <-ctx.Done():
		app.sweepCancel()
		app.eventHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse order. Connected clients receive a
// server_shutdown broadcast before their links are closed.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down fireside")

	if err := app.eventHub.BroadcastToAll(&types.Event{
		Type: types.EventServerShutdown,
		Data: map[string]any{"message": "Server is shutting down"},
	}); err != nil {
		app.logger.Warn("shutdown broadcast failed", zap.Error(err))
	}

	// Stop drains queued broadcasts, so the notice above goes out before
	// connections are torn down.
	if err := app.eventHub.Stop(); err != nil {
		app.logger.Warn("hub shutdown error", zap.Error(err))
	}

	if app.sweepCancel != nil {
		app.sweepCancel()
	}

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	for _, conn := range app.registry.AllConnections() {
		app.registry.Unregister(conn)
		_ = conn.Close()
	}

	if err := app.store.Close(); err != nil {
		app.logger.Warn("store shutdown error", zap.Error(err))
	}

	app.logger.Info("fireside shutdown complete")
	return nil
}

// Addr returns the HTTP listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
