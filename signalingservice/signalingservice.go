// Package signalingservice wires the HTTP API surface of the signaling
// relay: push subscription management, VAPID key discovery, and the health
// endpoint. The WebSocket surface lives in internal/realtime and runs on its
// own port.
package signalingservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/internal/api"
	"github.com/biohack5079/cnc/internal/middleware"
	"github.com/biohack5079/cnc/signalingservice/config"
)

// Wrapper owns the API HTTP server.
type Wrapper struct {
	server     *http.Server
	apiHandler *api.API
	logger     zerolog.Logger
}

// New creates and wires up the API service.
func New(
	cfg *config.AppConfig,
	subscriptions api.SubscriptionStore,
	authMiddleware func(http.Handler) http.Handler,
	logger zerolog.Logger,
) (*Wrapper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription store cannot be nil")
	}
	if authMiddleware == nil {
		authMiddleware = middleware.Passthrough
	}

	apiHandler := api.NewAPI(subscriptions, cfg.VapidPublicKey, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /api/save_push_subscription/", authMiddleware(http.HandlerFunc(apiHandler.SaveSubscriptionHandler)))
	mux.HandleFunc("GET /api/get_vapid_public_key/", apiHandler.VapidPublicKeyHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := middleware.NewCORSMiddleware(cfg.Cors.AllowedOrigins)(mux)

	return &Wrapper{
		server: &http.Server{
			Addr:              ":" + cfg.APIPort,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		apiHandler: apiHandler,
		logger:     logger.With().Str("component", "APIService").Logger(),
	}, nil
}

// Start runs the HTTP server and blocks until it stops.
func (w *Wrapper) Start(_ context.Context) error {
	w.logger.Info().Str("addr", w.server.Addr).Msg("API server starting...")
	err := w.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info().Msg("API server shutting down...")
	if err := w.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	return nil
}
