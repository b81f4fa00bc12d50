package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// UpdateConfigWithEnvOverrides takes the base configuration created from YAML
// and completes it by applying environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *AppConfig, logger zerolog.Logger) (*AppConfig, error) {
	logger.Debug().Msg("Applying environment variable overrides...")

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		cfg.ProjectID = projectID
	}
	if port := os.Getenv("API_PORT"); port != "" {
		cfg.APIPort = port
	}
	if port := os.Getenv("WEBSOCKET_PORT"); port != "" {
		cfg.WebSocketPort = port
	}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		cfg.Fabric.Nats.URL = natsURL
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Presence.Redis.Addr = redisAddr
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if vapidKey := os.Getenv("VAPID_PUBLIC_KEY"); vapidKey != "" {
		cfg.VapidPublicKey = vapidKey
	}
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.Cors.AllowedOrigins = cleanOrigins
	}

	if cfg.APIPort == "" {
		return nil, fmt.Errorf("api_port is not set in config or env var")
	}
	if cfg.WebSocketPort == "" {
		return nil, fmt.Errorf("websocket_port is not set in config or env var")
	}
	if cfg.NotificationStore.Type == "firestore" && cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required when the notification store type is firestore")
	}
	if cfg.Fabric.Type == "nats" && cfg.Fabric.Nats.URL == "" {
		return nil, fmt.Errorf("fabric.nats.url is required when the fabric type is nats")
	}
	if cfg.Presence.Type == "redis" && cfg.Presence.Redis.Addr == "" {
		return nil, fmt.Errorf("presence.redis.addr is required when the presence type is redis")
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret (or JWT_SECRET) is required when auth is enabled")
	}

	logger.Debug().Msg("Configuration finalized and validated successfully")
	return cfg, nil
}
