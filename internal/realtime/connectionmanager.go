// Package realtime provides components for managing real-time client
// connections: the WebSocket endpoint and the per-connection session wiring.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/biohack5079/cnc/internal/session"
	"github.com/biohack5079/cnc/pkg/signal"
)

// ConnectionManager owns the WebSocket server. Each accepted connection gets
// one Session; the manager runs the read loop that feeds it and guarantees
// the disconnect transition runs when the transport goes away.
type ConnectionManager struct {
	server         *http.Server
	upgrader       websocket.Upgrader
	deps           *signal.Dependencies
	broadcastGroup string
	logger         zerolog.Logger
	sessionLogger  zerolog.Logger
	sessions       sync.Map // map[string]*session.Session
}

// NewConnectionManager creates and wires up a new WebSocket connection manager.
func NewConnectionManager(
	port string,
	authMiddleware func(http.Handler) http.Handler,
	deps *signal.Dependencies,
	broadcastGroup string,
	logger zerolog.Logger,
) (*ConnectionManager, error) {
	if deps == nil {
		return nil, fmt.Errorf("dependencies cannot be nil")
	}
	if broadcastGroup == "" {
		return nil, fmt.Errorf("broadcast group cannot be empty")
	}

	instanceID := uuid.NewString()
	cm := &ConnectionManager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict to the configured CORS origins
				return true
			},
		},
		deps:           deps,
		broadcastGroup: broadcastGroup,
		logger:         logger.With().Str("component", "ConnectionManager").Str("instance", instanceID).Logger(),
		sessionLogger:  logger,
	}

	mux := http.NewServeMux()
	mux.Handle("/connect", authMiddleware(http.HandlerFunc(cm.connectHandler)))
	cm.server = &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}
	return cm, nil
}

// Start runs the HTTP server for WebSocket connections.
func (cm *ConnectionManager) Start(_ context.Context) error {
	cm.logger.Info().Str("addr", cm.server.Addr).Msg("WebSocket server starting...")
	if err := cm.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects every live session so no
// presence or group entry outlives the process.
func (cm *ConnectionManager) Shutdown(ctx context.Context) error {
	cm.logger.Info().Msg("Shutting down WebSocket service...")

	err := cm.server.Shutdown(ctx)
	if err != nil {
		cm.logger.Error().Err(err).Msg("WebSocket server shutdown failed.")
	}

	cm.sessions.Range(func(_, value any) bool {
		sess := value.(*session.Session)
		sess.Disconnect(ctx)
		return true
	})

	cm.logger.Info().Msg("WebSocket service shut down.")
	return err
}

// connectHandler upgrades a new HTTP request to a WebSocket and manages its
// lifecycle: session creation, the ordered read loop, and teardown.
func (cm *ConnectionManager) connectHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cm.logger.Error().Err(err).Msg("Failed to upgrade connection.")
		return
	}

	connID := uuid.NewString()
	client := newWSClient(connID, conn, cm.sessionLogger)
	sess := session.New(client, cm.deps, cm.broadcastGroup, cm.sessionLogger)
	cm.sessions.Store(sess.ID(), sess)
	cm.logger.Info().Str("conn", connID).Msg("Client connected.")

	defer func() {
		// Teardown is unconditional: leave all groups, announce user_left if
		// the session registered, then release the transport.
		cm.sessions.Delete(sess.ID())
		sess.Disconnect(context.Background())
		client.close()
		cm.logger.Info().Str("conn", connID).Str("user", sess.UserID()).Msg("Client disconnected.")
	}()

	// Read loop: messages are processed strictly in arrival order for this
	// connection. A malformed body is logged and dropped, never fatal.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var envelope signal.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			cm.logger.Warn().Err(err).Str("conn", connID).Msg("Dropping malformed message")
			continue
		}
		sess.Handle(r.Context(), &envelope)
	}
}
