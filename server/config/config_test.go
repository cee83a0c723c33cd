package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Engine.PoseHistoryCap)
	assert.Equal(t, 10, cfg.Engine.PoseErrorCap)
	assert.Equal(t, 300, cfg.Monitor.HistoryCap)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.RetentionWindow)
	assert.Equal(t, 20.0, cfg.Monitor.MinFPS)
	assert.Equal(t, "sqlite", cfg.Persistence.Backend)
	assert.Equal(t, "http://localhost:5000", cfg.Pipeline.BaseURL)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)

	require.NoError(t, cfg.ValidateConfig())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENGINE_POSE_HISTORY_CAP", "50")
	t.Setenv("MONITOR_RETENTION_WINDOW", "2m")
	t.Setenv("MONITOR_MIN_FPS", "24.5")
	t.Setenv("PERSIST_BACKEND", "memory")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Engine.PoseHistoryCap)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.RetentionWindow)
	assert.Equal(t, 24.5, cfg.Monitor.MinFPS)
	assert.Equal(t, "memory", cfg.Persistence.Backend)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.AllowedOrigins)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("MONITOR_RETENTION_WINDOW", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.RetentionWindow)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero pose cap", func(c *Config) { c.Engine.PoseHistoryCap = 0 }},
		{"zero workers", func(c *Config) { c.Engine.IngestWorkers = 0 }},
		{"zero retention", func(c *Config) { c.Monitor.RetentionWindow = 0 }},
		{"empty pipeline url", func(c *Config) { c.Pipeline.BaseURL = "" }},
		{"unknown backend", func(c *Config) { c.Persistence.Backend = "etcd" }},
		{"sqlite without path", func(c *Config) { c.Persistence.Path = "" }},
		{"bad request size", func(c *Config) { c.Security.MaxRequestSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.ValidateConfig())
		})
	}
}
