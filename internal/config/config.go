package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Queue     QueueConfig     `mapstructure:"queue"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	TokenExpiry int    `mapstructure:"token_expiry"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig governs the identity resolution and conversion pipeline.
type TrackingConfig struct {
	// SessionTimeout is how long a session stays active after its last
	// activity before a new request starts a fresh session.
	SessionTimeout string `mapstructure:"session_timeout"`

	// AnonymizeIP toggles the privacy-preserving IP transform. When false
	// raw addresses pass through unchanged.
	AnonymizeIP bool `mapstructure:"anonymize_ip"`

	// AllowMultipleConversions disables per-session conversion
	// de-duplication when true.
	AllowMultipleConversions bool `mapstructure:"allow_multiple_conversions"`

	// HonorDNT suppresses tracking for requests carrying a Do Not Track
	// signal.
	HonorDNT bool `mapstructure:"honor_dnt"`

	// OrderedFunnels enables the strict ordered-sequence funnel variant:
	// a visitor counts toward step N only if their earliest match for
	// step N is not before their earliest match for step N-1.
	OrderedFunnels bool `mapstructure:"ordered_funnels"`

	// SignalListsPath optionally points to a YAML file overriding the
	// curated referrer/bot signal lists below.
	SignalListsPath string `mapstructure:"signal_lists_path"`

	Lists SignalLists `mapstructure:"lists"`
}

// SignalLists holds the curated pattern lists used by referrer
// classification and bot detection. All matching is case-insensitive
// substring matching against lowercased input.
type SignalLists struct {
	SearchEngines  []string `mapstructure:"search_engines" yaml:"search_engines"`
	SocialNetworks []string `mapstructure:"social_networks" yaml:"social_networks"`
	PaidMediums    []string `mapstructure:"paid_mediums" yaml:"paid_mediums"`
	EmailMediums   []string `mapstructure:"email_mediums" yaml:"email_mediums"`
	BotSignatures  []string `mapstructure:"bot_signatures" yaml:"bot_signatures"`
}

type QueueConfig struct {
	Workers        int    `mapstructure:"workers"`
	PollInterval   string `mapstructure:"poll_interval"`
	MaxRetries     int    `mapstructure:"max_retries"`
	WebhookTimeout string `mapstructure:"webhook_timeout"`
}

type WebSocketConfig struct {
	PingInterval int `mapstructure:"ping_interval"`
	PongTimeout  int `mapstructure:"pong_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()

	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("tracking.anonymize_ip", "ANONYMIZE_IP")
	viper.BindEnv("tracking.session_timeout", "SESSION_TIMEOUT")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Tracking.SignalListsPath != "" {
		if err := loadSignalLists(config.Tracking.SignalListsPath, &config.Tracking.Lists); err != nil {
			return nil, fmt.Errorf("failed to load signal lists: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// loadSignalLists merges list overrides from a standalone YAML file.
// Only non-empty lists in the file replace the configured defaults.
func loadSignalLists(path string, lists *SignalLists) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override SignalLists
	if err := yaml.Unmarshal(data, &override); err != nil {
		return err
	}

	if len(override.SearchEngines) > 0 {
		lists.SearchEngines = override.SearchEngines
	}
	if len(override.SocialNetworks) > 0 {
		lists.SocialNetworks = override.SocialNetworks
	}
	if len(override.PaidMediums) > 0 {
		lists.PaidMediums = override.PaidMediums
	}
	if len(override.EmailMediums) > 0 {
		lists.EmailMediums = override.EmailMediums
	}
	if len(override.BotSignatures) > 0 {
		lists.BotSignatures = override.BotSignatures
	}

	return nil
}

// SessionTimeoutDuration parses the configured session timeout, falling
// back to 30 minutes on malformed input.
func (t TrackingConfig) SessionTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(t.SessionTimeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Minute
}

// PollIntervalDuration parses the configured queue poll interval, falling
// back to 5 seconds on malformed input.
func (q QueueConfig) PollIntervalDuration() time.Duration {
	if d, err := time.ParseDuration(q.PollInterval); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

// WebhookTimeoutDuration parses the configured webhook timeout, falling
// back to 10 seconds on malformed input.
func (q QueueConfig) WebhookTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(q.WebhookTimeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// Validate validates the configuration for completeness and correctness
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		errors = append(errors, "server.host is required")
	}

	if c.Database.Path == "" {
		errors = append(errors, "database.path is required")
	}

	if c.Auth.Enabled && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "your-secret-key-here") {
		errors = append(errors, "auth.jwt_secret must be set to a secure value when enabled")
	}
	if c.Auth.Enabled && c.Auth.TokenExpiry <= 0 {
		errors = append(errors, "auth.token_expiry must be greater than 0 when enabled")
	}

	if _, err := time.ParseDuration(c.Tracking.SessionTimeout); err != nil {
		errors = append(errors, "tracking.session_timeout must be a valid duration")
	}

	if c.Queue.Workers <= 0 {
		errors = append(errors, "queue.workers must be greater than 0")
	}
	if _, err := time.ParseDuration(c.Queue.PollInterval); err != nil {
		errors = append(errors, "queue.poll_interval must be a valid duration")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 3080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.path", "./data/pulse.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.auto_migrate", true)

	// Auth defaults
	viper.SetDefault("auth.enabled", true)
	viper.SetDefault("auth.token_expiry", 3600)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Tracking defaults
	viper.SetDefault("tracking.session_timeout", "30m")
	viper.SetDefault("tracking.anonymize_ip", true)
	viper.SetDefault("tracking.allow_multiple_conversions", false)
	viper.SetDefault("tracking.honor_dnt", true)
	viper.SetDefault("tracking.ordered_funnels", false)

	viper.SetDefault("tracking.lists.search_engines", []string{
		"google.", "bing.com", "duckduckgo.com", "yahoo.", "yandex.",
		"baidu.com", "ecosia.org", "qwant.com", "startpage.com", "brave.com",
	})
	viper.SetDefault("tracking.lists.social_networks", []string{
		"facebook.com", "fb.com", "instagram.com", "twitter.com", "t.co",
		"x.com", "linkedin.com", "lnkd.in", "pinterest.", "reddit.com",
		"tiktok.com", "youtube.com", "youtu.be", "mastodon.", "threads.net",
	})
	viper.SetDefault("tracking.lists.paid_mediums", []string{
		"cpc", "ppc", "paid", "display", "banner", "cpm", "retargeting",
	})
	viper.SetDefault("tracking.lists.email_mediums", []string{
		"email", "e-mail", "newsletter",
	})
	viper.SetDefault("tracking.lists.bot_signatures", []string{
		"bot", "crawler", "spider", "slurp", "curl", "wget", "python-requests",
		"headlesschrome", "phantomjs", "lighthouse", "pingdom", "uptimerobot",
		"facebookexternalhit", "semrush", "ahrefs", "mj12bot", "dotbot",
	})

	// Queue defaults
	viper.SetDefault("queue.workers", 4)
	viper.SetDefault("queue.poll_interval", "1s")
	viper.SetDefault("queue.max_retries", 3)
	viper.SetDefault("queue.webhook_timeout", "5s")

	// WebSocket defaults
	viper.SetDefault("websocket.ping_interval", 30)
	viper.SetDefault("websocket.pong_timeout", 60)
	viper.SetDefault("websocket.write_timeout", 10)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
}
