package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Viewport.Margin)
	assert.Equal(t, 0.1, cfg.Viewport.Threshold)
	assert.Equal(t, 800, cfg.Viewport.PlaceholderHeight)
	assert.Equal(t, 1.0, cfg.Render.Scale)
	assert.Equal(t, int64(100*1024*1024), cfg.Storage.MaxUploadBytes)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.yaml")
	yamlData := `
server:
  port: 9090
render:
  scale: 1.5
  max_concurrent: 2
viewport:
  margin: 200
  mode: geometry
cache:
  ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("UPLOAD_DIR", "/srv/pdfs")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "sqlite:/tmp/catalog.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 1.5, cfg.Render.Scale)
	assert.Equal(t, 2, cfg.Render.MaxConcurrent)
	assert.Equal(t, 200, cfg.Viewport.Margin)
	assert.Equal(t, "geometry", cfg.Viewport.Mode)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "/srv/pdfs", cfg.Storage.UploadDir)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "sqlite", cfg.Catalog.Driver)
	assert.Equal(t, "/tmp/catalog.db", cfg.CatalogDSN())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"port":            func(c *Config) { c.Server.Port = 0 },
		"catalog driver":  func(c *Config) { c.Catalog.Driver = "mysql" },
		"postgres dsn":    func(c *Config) { c.Catalog.Driver = "postgres" },
		"cache driver":    func(c *Config) { c.Cache.Driver = "memcached" },
		"scale":           func(c *Config) { c.Render.Scale = 0 },
		"concurrency":     func(c *Config) { c.Render.MaxConcurrent = 0 },
		"threshold":       func(c *Config) { c.Viewport.Threshold = 1.5 },
		"margin":          func(c *Config) { c.Viewport.Margin = -1 },
		"placeholder":     func(c *Config) { c.Viewport.PlaceholderHeight = 0 },
		"viewport mode":   func(c *Config) { c.Viewport.Mode = "magic" },
		"no storage root": func(c *Config) { c.Storage.UploadDir = " " },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestUsesRedis(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.UsesRedis())
	cfg.Events.Enabled = true
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("../../config.example.yaml")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Catalog.Driver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 800, cfg.Viewport.PlaceholderHeight)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}
