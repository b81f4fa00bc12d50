package config

// --- YAML-Specific Structs ---

type YamlNatsConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type YamlFabricConfig struct {
	Type string         `yaml:"type"` // "memory" or "nats"
	Nats YamlNatsConfig `yaml:"nats"`
}

type YamlRedisConfig struct {
	Addr       string `yaml:"addr"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type YamlPresenceConfig struct {
	Type  string          `yaml:"type"` // "local" or "redis"
	Redis YamlRedisConfig `yaml:"redis"`
}

type YamlFirestoreConfig struct {
	CollectionName string `yaml:"collection_name"`
}

type YamlNotificationStoreConfig struct {
	Type      string              `yaml:"type"` // "memory" or "firestore"
	Firestore YamlFirestoreConfig `yaml:"firestore"`
}

type YamlPushConfig struct {
	Enabled bool   `yaml:"enabled"`
	Subject string `yaml:"subject"`
}

type YamlSubscriptionsConfig struct {
	CollectionName string `yaml:"collection_name"`
}

type YamlAuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`
}

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// YamlConfig defines the structure for unmarshaling the embedded config.yaml file.
type YamlConfig struct {
	ProjectID         string                      `yaml:"project_id"`
	RunMode           string                      `yaml:"run_mode"`
	APIPort           string                      `yaml:"api_port"`
	WebSocketPort     string                      `yaml:"websocket_port"`
	BroadcastGroup    string                      `yaml:"broadcast_group"`
	Fabric            YamlFabricConfig            `yaml:"fabric"`
	Presence          YamlPresenceConfig          `yaml:"presence"`
	NotificationStore YamlNotificationStoreConfig `yaml:"notification_store"`
	Push              YamlPushConfig              `yaml:"push"`
	Subscriptions     YamlSubscriptionsConfig     `yaml:"subscriptions"`
	Auth              YamlAuthConfig              `yaml:"auth"`
	VapidPublicKey    string                      `yaml:"vapid_public_key"`
	Cors              YamlCorsConfig              `yaml:"cors"`
}

// AppConfig is the canonical, validated configuration object used throughout
// the application.
type AppConfig struct {
	ProjectID         string
	RunMode           string
	APIPort           string
	WebSocketPort     string
	BroadcastGroup    string
	Fabric            YamlFabricConfig
	Presence          YamlPresenceConfig
	NotificationStore YamlNotificationStoreConfig
	Push              YamlPushConfig
	Subscriptions     YamlSubscriptionsConfig
	Auth              YamlAuthConfig
	VapidPublicKey    string
	Cors              YamlCorsConfig
}

// NewConfigFromYaml converts the raw unmarshaled data into a base AppConfig.
// Environment overrides and validation happen afterwards in
// UpdateConfigWithEnvOverrides.
func NewConfigFromYaml(yamlCfg *YamlConfig) (*AppConfig, error) {
	appCfg := &AppConfig{
		ProjectID:         yamlCfg.ProjectID,
		RunMode:           yamlCfg.RunMode,
		APIPort:           yamlCfg.APIPort,
		WebSocketPort:     yamlCfg.WebSocketPort,
		BroadcastGroup:    yamlCfg.BroadcastGroup,
		Fabric:            yamlCfg.Fabric,
		Presence:          yamlCfg.Presence,
		NotificationStore: yamlCfg.NotificationStore,
		Push:              yamlCfg.Push,
		Subscriptions:     yamlCfg.Subscriptions,
		Auth:              yamlCfg.Auth,
		VapidPublicKey:    yamlCfg.VapidPublicKey,
		Cors:              yamlCfg.Cors,
	}

	if appCfg.BroadcastGroup == "" {
		appCfg.BroadcastGroup = "all_users"
	}

	return appCfg, nil
}
