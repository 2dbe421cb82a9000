// Package config provides unified configuration loading for the PDF viewer.
// Supports YAML files, environment variables (optionally from a .env file), and
// programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the PDF viewer.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Cache         CacheConfig         `yaml:"cache"`
	Render        RenderConfig        `yaml:"render"`
	Viewport      ViewportConfig      `yaml:"viewport"`
	Viewer        ViewerConfig        `yaml:"viewer"`
	Chat          ChatConfig          `yaml:"chat"`
	Events        EventsConfig        `yaml:"events"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// StorageConfig holds settings for the upload folder.
type StorageConfig struct {
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	// RemoteBaseURL, when set, fetches documents over HTTP instead of from UploadDir.
	RemoteBaseURL string `yaml:"remote_base_url"`
	// ValidateUploads runs a structural PDF check before storing an upload.
	ValidateUploads bool `yaml:"validate_uploads"`
}

// CatalogConfig selects how the document list is produced.
type CatalogConfig struct {
	Driver   string         `yaml:"driver"` // none, sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds rendered page cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// RenderConfig holds page rendering settings.
type RenderConfig struct {
	Scale         float64       `yaml:"scale"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"` // 0 waits indefinitely for a render slot
}

// ViewportConfig holds viewport proximity observation settings.
type ViewportConfig struct {
	Margin            int     `yaml:"margin"`
	Threshold         float64 `yaml:"threshold"`
	PlaceholderHeight int     `yaml:"placeholder_height"`
	// Mode is "client" (browser reports intersections), "geometry" (server computes
	// them from scroll positions) or "none" (render every page eagerly).
	Mode string `yaml:"mode"`
}

// ViewerConfig holds session manager settings.
type ViewerConfig struct {
	StrictTransitions bool          `yaml:"strict_transitions"`
	MaxViewers        int           `yaml:"max_viewers"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

// ChatConfig holds assistant backend settings.
type ChatConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// EventsConfig holds upload event publishing settings.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Channel string `yaml:"channel"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Storage: StorageConfig{
			UploadDir:       "data",
			MaxUploadBytes:  100 * 1024 * 1024,
			ValidateUploads: true,
		},
		Catalog: CatalogConfig{
			Driver: "none",
			SQLite: SQLiteConfig{
				Path:         "data/catalog.db",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 512,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "pv:",
			},
		},
		Render: RenderConfig{
			Scale:         1.0,
			MaxConcurrent: 4,
		},
		Viewport: ViewportConfig{
			Margin:            100,
			Threshold:         0.1,
			PlaceholderHeight: 800,
			Mode:              "client",
		},
		Viewer: ViewerConfig{
			MaxViewers:  256,
			IdleTimeout: 30 * time.Minute,
		},
		Chat: ChatConfig{
			Endpoint:   "http://localhost:8085/api/v1/chat",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
		},
		Events: EventsConfig{
			Channel: "document.uploaded",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "pdf-viewer",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}

	switch c.Catalog.Driver {
	case "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid catalog driver: %s", c.Catalog.Driver)
	}

	if c.Catalog.Driver == "postgres" && c.Catalog.Postgres.DSN == "" {
		return fmt.Errorf("catalog.postgres.dsn is required for the postgres driver")
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Render.Scale <= 0 || c.Render.Scale > 8 {
		return fmt.Errorf("render.scale must be in (0, 8], got %v", c.Render.Scale)
	}

	if c.Render.MaxConcurrent < 1 {
		return fmt.Errorf("render.max_concurrent must be at least 1")
	}

	if c.Viewport.Threshold < 0 || c.Viewport.Threshold > 1 {
		return fmt.Errorf("viewport.threshold must be between 0 and 1")
	}

	if c.Viewport.Margin < 0 {
		return fmt.Errorf("viewport.margin must not be negative")
	}

	if c.Viewport.PlaceholderHeight < 1 {
		return fmt.Errorf("viewport.placeholder_height must be positive")
	}

	switch c.Viewport.Mode {
	case "client", "geometry", "none":
	default:
		return fmt.Errorf("invalid viewport mode: %s", c.Viewport.Mode)
	}

	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Cache.Driver == "redis" || c.Events.Enabled
}

// CatalogDSN returns the appropriate database connection string.
func (c *Config) CatalogDSN() string {
	if c.Catalog.Driver == "sqlite" {
		return c.Catalog.SQLite.Path
	}
	return c.Catalog.Postgres.DSN
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}

	if v := os.Getenv("DOCUMENT_BASE_URL"); v != "" {
		cfg.Storage.RemoteBaseURL = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Catalog.Driver = "sqlite"
			cfg.Catalog.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Catalog.Driver = "postgres"
			cfg.Catalog.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("RENDER_SCALE"); v != "" {
		if scale, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Render.Scale = scale
		}
	}

	if v := os.Getenv("RENDER_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Render.MaxConcurrent = n
		}
	}

	if v := os.Getenv("VIEWPORT_MODE"); v != "" {
		cfg.Viewport.Mode = v
	}

	if v := os.Getenv("CHAT_ENDPOINT"); v != "" {
		cfg.Chat.Endpoint = v
	}

	if v := os.Getenv("CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}

	if v := os.Getenv("EVENTS_ENABLED"); v == "true" {
		cfg.Events.Enabled = true
	}

	if v := os.Getenv("STRICT_TRANSITIONS"); v == "true" {
		cfg.Viewer.StrictTransitions = true
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
