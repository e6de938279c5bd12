package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"dicebowl/internal/api"
	"dicebowl/internal/config"
	"dicebowl/internal/dice"
	"dicebowl/internal/dispatcher"
	"dicebowl/internal/hub"
	"dicebowl/internal/room"
	"dicebowl/internal/websocket"
	"dicebowl/pkg/types"
)

// Application wires and owns every component. Initialization order follows
// the dependency chain: config -> roller -> rooms -> dispatcher -> hub ->
// transport -> HTTP.
type Application struct {
	config     *config.Config
	rooms      *room.Registry
	dispatcher *dispatcher.Dispatcher
	registry   *websocket.Registry
	hub        *hub.Hub
	httpServer *http.Server
}

// New creates an application instance with all components initialized.
func New(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	roller := dice.New(nil)
	wsRegistry := websocket.NewRegistry()

	// The room change callback closes over the hub variable: rooms only
	// transition through the hub, so the hub is always assigned before
	// the first callback can fire.
	var broadcastHub *hub.Hub
	rooms := room.NewRegistry(roller, cfg.RollDuration, func(roomID string, snap types.RoomSnapshot) {
		broadcastHub.RoomChanged(roomID, snap)
	})
	disp := dispatcher.New(rooms)
	broadcastHub = hub.New(wsRegistry, disp)

	wsHandler := websocket.NewHandler(broadcastHub, websocket.HandlerConfig{
		WriteTimeout: cfg.WSWriteTimeout,
		ReadTimeout:  cfg.WSReadTimeout,
		PingInterval: cfg.WSPingInterval,
		BufferSize:   cfg.WSBufferSize,
	})

	apiServer := api.New(wsHandler.HandleWebSocket, wsRegistry, cfg.StaticDir)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	return &Application{
		config:     cfg,
		rooms:      rooms,
		dispatcher: disp,
		registry:   wsRegistry,
		hub:        broadcastHub,
		httpServer: httpServer,
	}, nil
}

// Start begins execution: hub first so broadcasts flow, then the HTTP
// server accepting connections.
func (app *Application) Start(ctx context.Context) error {
	log.Info().Str("addr", app.httpServer.Addr).Msg("starting dicebowl server")

	if err := app.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.hub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Info().Msg("dicebowl server started")
		return nil
	case <-ctx.Done():
		_ = app.hub.Stop()
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse order: HTTP first so no new
// connections arrive, then the hub.
func (app *Application) Stop(ctx context.Context) error {
	log.Info().Msg("shutting down dicebowl server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := app.hub.Stop(); err != nil {
		log.Error().Err(err).Msg("hub shutdown error")
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// Addr returns the server address for external connections.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
