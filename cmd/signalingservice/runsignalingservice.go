package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/biohack5079/cnc/cmd"
	"github.com/biohack5079/cnc/internal/api"
	"github.com/biohack5079/cnc/internal/app"
	"github.com/biohack5079/cnc/internal/fabric"
	"github.com/biohack5079/cnc/internal/middleware"
	"github.com/biohack5079/cnc/internal/platform/natsfabric"
	"github.com/biohack5079/cnc/internal/platform/persistence"
	"github.com/biohack5079/cnc/internal/platform/presence"
	"github.com/biohack5079/cnc/internal/platform/push"
	localpresence "github.com/biohack5079/cnc/internal/presence"
	"github.com/biohack5079/cnc/internal/realtime"
	"github.com/biohack5079/cnc/pkg/signal"
	"github.com/biohack5079/cnc/signalingservice"
	"github.com/biohack5079/cnc/signalingservice/config"
)

func main() {
	// 1. Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "signaling-service").Logger()

	// 2. Load config.yaml and apply environment overrides
	cfg, err := cmd.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg, err = config.UpdateConfigWithEnvOverrides(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to finalize configuration")
	}

	// 3. Create dependencies
	ctx := context.Background()
	deps, subscriptions, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}

	// 4. Create authentication middleware
	authMiddleware := newAuthMiddleware(cfg, logger)

	// 5. Create the two main services
	apiService, err := signalingservice.New(cfg, subscriptions, authMiddleware, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API service")
	}

	connManager, err := realtime.NewConnectionManager(
		cfg.WebSocketPort,
		authMiddleware,
		deps,
		cfg.BroadcastGroup,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create connection manager")
	}

	// 6. Run the application
	app.Run(ctx, logger, apiService, connManager)
}

// newAuthMiddleware creates the JWT-validating middleware, or a passthrough
// when authentication is disabled.
func newAuthMiddleware(cfg *config.AppConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	if !cfg.Auth.Enabled {
		logger.Warn().Msg("Authentication is disabled. All connections will be accepted.")
		return middleware.Passthrough
	}
	return middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), logger)
}

// newDependencies builds the service dependency container.
func newDependencies(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*signal.Dependencies, api.SubscriptionStore, error) {
	if cfg.RunMode == "local" {
		logger.Warn().Msg("Running in 'local' mode. All external dependencies will be in-memory.")
		deps, subscriptions := cmd.NewLocalDependencies(logger)
		return deps, subscriptions, nil
	}
	return newProdDependencies(ctx, cfg, logger)
}

// newProdDependencies creates real, production-ready dependencies.
func newProdDependencies(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*signal.Dependencies, api.SubscriptionStore, error) {
	var fsClient *firestore.Client
	if cfg.NotificationStore.Type == "firestore" {
		var err error
		fsClient, err = firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to firestore: %w", err)
		}
	}

	groupFabric, natsConn, err := newGroupFabric(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	presenceDirectory, err := newPresenceDirectory(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	store, err := newNotificationStore(cfg, fsClient, logger)
	if err != nil {
		return nil, nil, err
	}

	wakeup, err := newWakeupNotifier(cfg, natsConn, logger)
	if err != nil {
		return nil, nil, err
	}

	subscriptions, err := newSubscriptionStore(cfg, fsClient, logger)
	if err != nil {
		return nil, nil, err
	}

	deps := &signal.Dependencies{
		Fabric:   groupFabric,
		Presence: presenceDirectory,
		Store:    store,
		Wakeup:   wakeup,
	}
	return deps, subscriptions, nil
}

// newGroupFabric creates the pluggable message fabric based on config. The
// NATS connection is returned as well so the push notifier can share it.
func newGroupFabric(cfg *config.AppConfig, logger zerolog.Logger) (signal.GroupFabric, *nats.Conn, error) {
	fabricType := cfg.Fabric.Type
	logger.Info().Str("type", fabricType).Msg("Initializing group fabric...")

	switch fabricType {
	case "memory":
		return fabric.NewMemoryFabric(logger), nil, nil

	case "nats":
		opts := []nats.Option{
			nats.Name(cfg.Fabric.Nats.Name),
			nats.MaxReconnects(-1),
		}
		if cfg.Fabric.Nats.User != "" {
			opts = append(opts, nats.UserInfo(cfg.Fabric.Nats.User, cfg.Fabric.Nats.Pass))
		}
		nc, err := nats.Connect(cfg.Fabric.Nats.URL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.Fabric.Nats.URL, err)
		}
		logger.Info().Str("url", cfg.Fabric.Nats.URL).Msg("Connected to NATS")
		natsFabric, err := natsfabric.New(nc, natsfabric.DefaultSubjectPrefix, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create nats fabric: %w", err)
		}
		return natsFabric, nc, nil

	default:
		return nil, nil, fmt.Errorf("invalid fabric type: %s (must be 'memory' or 'nats')", fabricType)
	}
}

// newPresenceDirectory creates the pluggable presence directory based on config.
func newPresenceDirectory(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (signal.PresenceDirectory, error) {
	presenceType := cfg.Presence.Type
	logger.Info().Str("type", presenceType).Msg("Initializing presence directory...")

	switch presenceType {
	case "local":
		return localpresence.NewLocalDirectory(), nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Presence.Redis.Addr,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Presence.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Presence.Redis.Addr).Msg("Connected to Redis")

		ttl := time.Duration(cfg.Presence.Redis.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		return presence.NewRedisDirectory(rdb, ttl, uuid.NewString(), logger)

	default:
		return nil, fmt.Errorf("invalid presence type: %s (must be 'local' or 'redis')", presenceType)
	}
}

// newNotificationStore creates the pluggable notification store based on config.
func newNotificationStore(cfg *config.AppConfig, fsClient *firestore.Client, logger zerolog.Logger) (signal.NotificationStore, error) {
	storeType := cfg.NotificationStore.Type
	logger.Info().Str("type", storeType).Msg("Initializing notification store...")

	switch storeType {
	case "memory":
		return persistence.NewMemoryStore(), nil

	case "firestore":
		collection := cfg.NotificationStore.Firestore.CollectionName
		if collection == "" {
			return nil, fmt.Errorf("notification_store type is firestore but no collection name is configured")
		}
		return persistence.NewFirestoreStore(fsClient, collection, logger)

	default:
		return nil, fmt.Errorf("invalid notification_store type: %s (must be 'memory' or 'firestore')", storeType)
	}
}

// newWakeupNotifier creates the missed-call wakeup notifier.
func newWakeupNotifier(cfg *config.AppConfig, natsConn *nats.Conn, logger zerolog.Logger) (signal.WakeupNotifier, error) {
	if !cfg.Push.Enabled {
		return push.NopNotifier{}, nil
	}
	if natsConn == nil {
		return nil, fmt.Errorf("push is enabled but the fabric type is not nats")
	}
	return push.NewNotifier(natsConn, cfg.Push.Subject, logger)
}

// newSubscriptionStore creates the push subscription store. It shares the
// Firestore client with the notification store when one exists.
func newSubscriptionStore(cfg *config.AppConfig, fsClient *firestore.Client, logger zerolog.Logger) (api.SubscriptionStore, error) {
	if fsClient == nil {
		return api.NewMemorySubscriptionStore(), nil
	}
	collection := cfg.Subscriptions.CollectionName
	if collection == "" {
		collection = "push-subscriptions"
	}
	return api.NewFirestoreSubscriptionStore(fsClient, collection, logger)
}
