package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected HTTP port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected 30s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Collaborators.Timeout != 3*time.Second {
		t.Errorf("expected 3s collaborator timeout, got %v", cfg.Collaborators.Timeout)
	}
	if cfg.Collaborators.Weather.Provider != "static" {
		t.Errorf("expected static weather provider, got %q", cfg.Collaborators.Weather.Provider)
	}
	if cfg.MessageBus.Enabled {
		t.Error("message bus should be disabled by default")
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("TEST_REDIS_URL", "redis://cache:6379/0")

	content := `
server:
  http_port: 9000
logging:
  level: debug
cache:
  backend: redis
  redis_url: ${TEST_REDIS_URL}
collaborators:
  timeout: 500ms
  weather:
    provider: open-meteo
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}
	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.IdleTimeout != 120*time.Second {
		t.Errorf("unset values should keep defaults, got idle timeout %v", cfg.Server.IdleTimeout)
	}
	if cfg.Cache.RedisURL != "redis://cache:6379/0" {
		t.Errorf("env var not expanded, got %q", cfg.Cache.RedisURL)
	}
	if cfg.Collaborators.Timeout != 500*time.Millisecond {
		t.Errorf("expected 500ms timeout, got %v", cfg.Collaborators.Timeout)
	}
	if _, ok := cfg.Collaborators.Weather.Locations["kerala"]; !ok {
		t.Error("default locations should survive a partial weather section")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("KRISHI_HTTP_PORT", "9191")
	t.Setenv("KRISHI_LOG_LEVEL", "warn")
	t.Setenv("KRISHI_NATS_URL", "nats://bus:4222")
	t.Setenv("KRISHI_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Server.HTTPPort != 9191 {
		t.Errorf("got port %d", cfg.Server.HTTPPort)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("got level %q", cfg.Logging.Level)
	}
	if !cfg.MessageBus.Enabled || cfg.MessageBus.URL != "nats://bus:4222" {
		t.Errorf("message bus not configured from env: %+v", cfg.MessageBus)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisURL != "redis://cache:6379/1" {
		t.Errorf("cache not configured from env: %+v", cfg.Cache)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "collector:4317" {
		t.Errorf("telemetry not configured from env: %+v", cfg.Telemetry)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"zero timeout", func(c *Config) { c.Collaborators.Timeout = 0 }},
		{"bad weather provider", func(c *Config) { c.Collaborators.Weather.Provider = "almanac" }},
		{"redis without url", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisURL = "" }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "disk" }},
		{"bus without url", func(c *Config) { c.MessageBus.Enabled = true; c.MessageBus.URL = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
