// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Resolver strategies.
const (
	StrategyPostgres = "postgres"
	StrategyRemote   = "remote"
	StrategyMemory   = "memory"
)

// Preview error modes.
const (
	ErrorModeFallback = "fallback"
	ErrorModeStrict   = "strict"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sitemap   SitemapConfig   `mapstructure:"sitemap"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
}

// SiteConfig describes the public site previews point back to.
type SiteConfig struct {
	Name         string `mapstructure:"name"`
	Origin       string `mapstructure:"origin"`
	AppPath      string `mapstructure:"app_path"`
	DefaultImage string `mapstructure:"default_image"`
}

// PreviewConfig governs the preview handler.
type PreviewConfig struct {
	ErrorMode       string   `mapstructure:"error_mode"`
	RedirectHumans  bool     `mapstructure:"redirect_humans"`
	RedirectDelayMs int      `mapstructure:"redirect_delay_ms"`
	CacheControl    string   `mapstructure:"cache_control"`
	ExtraBotTokens  []string `mapstructure:"extra_bot_tokens"`
}

// ResolverConfig selects and tunes the metadata strategy.
type ResolverConfig struct {
	Strategy         string       `mapstructure:"strategy"`
	TimeoutMs        int          `mapstructure:"timeout_ms"`
	MaxAttempts      int          `mapstructure:"max_attempts"`
	BackoffInitialMs int          `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int          `mapstructure:"backoff_max_ms"`
	Remote           RemoteConfig `mapstructure:"remote"`
	FixturePath      string       `mapstructure:"fixture_path"`
}

// RemoteConfig points at the deployed edge functions.
type RemoteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Token     string `mapstructure:"token"`
	Mode      string `mapstructure:"mode"`
	UserAgent string `mapstructure:"user_agent"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// AnalyticsConfig tunes the event hub.
type AnalyticsConfig struct {
	Enabled       bool        `mapstructure:"enabled"`
	LogEnabled    bool        `mapstructure:"log_enabled"`
	BufferSize    int         `mapstructure:"buffer_size"`
	SinkTimeoutMs int         `mapstructure:"sink_timeout_ms"`
	Batch         BatchConfig `mapstructure:"batch"`
}

// BatchConfig bounds hub batches.
type BatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// PubSubConfig holds metadata for analytics fan-out.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StorageConfig selects the blob backend used for published sitemaps.
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Bucket  string      `mapstructure:"bucket"`
	Local   LocalConfig `mapstructure:"local"`
}

// LocalConfig configures the filesystem blob store.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// SitemapConfig tunes sitemap generation.
type SitemapConfig struct {
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	BatchSize  int           `mapstructure:"batch_size"`
	ObjectPath string        `mapstructure:"object_path"`
}

// AuthConfig carries shared secrets.
type AuthConfig struct {
	APIKey    string `mapstructure:"api_key"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// RateLimitConfig bounds per-client event ingestion.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SMARTLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("site.name", "Soundraiser")
	v.SetDefault("site.origin", "https://soundraiser.io")
	v.SetDefault("site.app_path", "/link/")
	v.SetDefault("site.default_image", "/og-default.png")
	v.SetDefault("preview.error_mode", ErrorModeFallback)
	v.SetDefault("preview.redirect_humans", false)
	v.SetDefault("preview.redirect_delay_ms", 0)
	v.SetDefault("preview.cache_control", "public, max-age=3600, stale-while-revalidate=86400")
	v.SetDefault("preview.extra_bot_tokens", []string{})
	v.SetDefault("resolver.strategy", StrategyMemory)
	v.SetDefault("resolver.timeout_ms", 3000)
	v.SetDefault("resolver.max_attempts", 2)
	v.SetDefault("resolver.backoff_initial_ms", 100)
	v.SetDefault("resolver.backoff_max_ms", 1000)
	v.SetDefault("resolver.fixture_path", "")
	v.SetDefault("resolver.remote.base_url", "")
	v.SetDefault("resolver.remote.token", "")
	v.SetDefault("resolver.remote.mode", "json")
	v.SetDefault("resolver.remote.user_agent", "smartlink-preview/1.0")
	// Keys without a meaningful default are still registered so AutomaticEnv
	// can populate them during Unmarshal.
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("analytics.enabled", true)
	v.SetDefault("analytics.log_enabled", false)
	v.SetDefault("analytics.buffer_size", 4096)
	v.SetDefault("analytics.sink_timeout_ms", 10000)
	v.SetDefault("analytics.batch.max_events", 500)
	v.SetDefault("analytics.batch.max_wait_ms", 1000)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local.base_dir", "")
	v.SetDefault("sitemap.cache_ttl", 6*time.Hour)
	v.SetDefault("sitemap.batch_size", 1000)
	v.SetDefault("sitemap.object_path", "sitemap.xml")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 5.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if strings.TrimSpace(c.Site.Name) == "" {
		return fmt.Errorf("site.name is required")
	}
	if !strings.HasPrefix(c.Site.Origin, "http://") && !strings.HasPrefix(c.Site.Origin, "https://") {
		return fmt.Errorf("site.origin must be an absolute http(s) URL")
	}
	switch c.Preview.ErrorMode {
	case ErrorModeFallback, ErrorModeStrict:
	default:
		return fmt.Errorf("preview.error_mode must be %q or %q", ErrorModeFallback, ErrorModeStrict)
	}
	if c.Preview.RedirectDelayMs < 0 {
		return fmt.Errorf("preview.redirect_delay_ms must be >= 0")
	}
	if c.Resolver.TimeoutMs <= 0 {
		return fmt.Errorf("resolver.timeout_ms must be > 0")
	}
	if c.Resolver.MaxAttempts <= 0 {
		return fmt.Errorf("resolver.max_attempts must be > 0")
	}
	switch c.Resolver.Strategy {
	case StrategyPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres strategy")
		}
	case StrategyRemote:
		if c.Resolver.Remote.BaseURL == "" {
			return fmt.Errorf("resolver.remote.base_url is required for the remote strategy")
		}
		if c.Resolver.Remote.Mode != "json" && c.Resolver.Remote.Mode != "html" {
			return fmt.Errorf("resolver.remote.mode must be json or html")
		}
	case StrategyMemory:
	default:
		return fmt.Errorf("unknown resolver.strategy %q", c.Resolver.Strategy)
	}
	switch c.Storage.Backend {
	case "memory", "":
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Sitemap.BatchSize <= 0 {
		return fmt.Errorf("sitemap.batch_size must be > 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be > 0 when rate limiting is enabled")
	}
	return nil
}

// ResolverTimeout is the per-attempt upstream deadline.
func (c Config) ResolverTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutMs) * time.Millisecond
}

// RedirectDelay converts preview.redirect_delay_ms to a duration.
func (c Config) RedirectDelay() time.Duration {
	return time.Duration(c.Preview.RedirectDelayMs) * time.Millisecond
}

// RequestTimeout bounds each HTTP request end to end.
func (c Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Server.RequestTimeout) * time.Second
}
