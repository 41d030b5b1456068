package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration for the krishi advisory service.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge" json:"knowledge"`
	Collaborators CollaboratorsConfig `yaml:"collaborators" json:"collaborators"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	MessageBus    MessageBusConfig    `yaml:"message_bus" json:"message_bus"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" json:"telemetry"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port" json:"http_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
}

// LoggingConfig configures the zap logger and the in-memory log buffer
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"` // debug, info, warn, error
	JSON       bool   `yaml:"json" json:"json"`
	BufferSize int    `yaml:"buffer_size" json:"buffer_size"` // entries kept for /api/v1/logs
}

// KnowledgeConfig points at an optional knowledge base override file.
// The compiled-in knowledge base is used when Path is empty.
type KnowledgeConfig struct {
	Path string `yaml:"path" json:"path,omitempty"`
}

// CollaboratorsConfig configures the external signal providers
type CollaboratorsConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"` // per-call bound on every collaborator
	Weather WeatherConfig `yaml:"weather" json:"weather"`
}

// WeatherConfig selects and configures the weather provider
type WeatherConfig struct {
	Provider  string                 `yaml:"provider" json:"provider"` // "static" or "open-meteo"
	BaseURL   string                 `yaml:"base_url" json:"base_url,omitempty"`
	CacheTTL  time.Duration          `yaml:"cache_ttl" json:"cache_ttl"`
	Locations map[string]Coordinates `yaml:"locations" json:"locations,omitempty"`
}

// Coordinates is a latitude/longitude pair
type Coordinates struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// CacheConfig configures the weather response cache
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Backend       string        `yaml:"backend" json:"backend"` // "memory" or "redis"
	DefaultTTL    time.Duration `yaml:"default_ttl" json:"default_ttl"`
	MaxSize       int           `yaml:"max_size" json:"max_size"`
	CleanupPeriod time.Duration `yaml:"cleanup_period" json:"cleanup_period"`
	RedisURL      string        `yaml:"redis_url" json:"redis_url,omitempty"`
}

// MessageBusConfig configures NATS event publishing
type MessageBusConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	URL        string        `yaml:"url" json:"url"`
	StreamName string        `yaml:"stream_name" json:"stream_name"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// TelemetryConfig configures OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
}

// LoadConfigFromFile loads configuration from a YAML file at the specified path.
// Values missing from the file keep their defaults.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${REDIS_URL}) before parsing YAML
	expanded := os.ExpandEnv(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			JSON:       true,
			BufferSize: 1000,
		},
		Collaborators: CollaboratorsConfig{
			Timeout: 3 * time.Second,
			Weather: WeatherConfig{
				Provider: "static",
				BaseURL:  "https://api.open-meteo.com/v1/forecast",
				CacheTTL: 30 * time.Minute,
				Locations: map[string]Coordinates{
					"kerala":     {Lat: 10.8505, Lon: 76.2711},
					"tamil nadu": {Lat: 11.1271, Lon: 78.6569},
					"karnataka":  {Lat: 15.3173, Lon: 75.7139},
					"punjab":     {Lat: 31.1471, Lon: 75.3412},
				},
			},
		},
		Cache: CacheConfig{
			Enabled:       true,
			Backend:       "memory",
			DefaultTTL:    30 * time.Minute,
			MaxSize:       1000,
			CleanupPeriod: 5 * time.Minute,
		},
		MessageBus: MessageBusConfig{
			Enabled:    false,
			URL:        "nats://localhost:4222",
			StreamName: "KRISHI",
			Timeout:    10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "krishi",
			Endpoint:    "otel-collector:4317",
		},
	}
}

// ApplyEnv overrides configuration values from KRISHI_* environment variables
func (c *Config) ApplyEnv() {
	if port := os.Getenv("KRISHI_HTTP_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.HTTPPort = n
		}
	}
	if level := os.Getenv("KRISHI_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if url := os.Getenv("KRISHI_NATS_URL"); url != "" {
		c.MessageBus.URL = url
		c.MessageBus.Enabled = true
	}
	if url := os.Getenv("KRISHI_REDIS_URL"); url != "" {
		c.Cache.RedisURL = url
		c.Cache.Backend = "redis"
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Telemetry.Endpoint = endpoint
		c.Telemetry.Enabled = true
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Collaborators.Timeout <= 0 {
		errs = append(errs, errors.New("collaborators.timeout must be positive"))
	}
	switch c.Collaborators.Weather.Provider {
	case "static", "open-meteo":
	default:
		errs = append(errs, fmt.Errorf("collaborators.weather.provider %q is not one of static, open-meteo", c.Collaborators.Weather.Provider))
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "memory":
		case "redis":
			if c.Cache.RedisURL == "" {
				errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("cache.backend %q is not one of memory, redis", c.Cache.Backend))
		}
	}
	if c.MessageBus.Enabled && c.MessageBus.URL == "" {
		errs = append(errs, errors.New("message_bus.url is required when the message bus is enabled"))
	}
	return errors.Join(errs...)
}
