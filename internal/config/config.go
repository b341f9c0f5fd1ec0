package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gc-eligibility-server/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g.
// GC_ASSESS_SERVER_PORT.
const EnvPrefix = "GC_ASSESS"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

var _ domain.ConfigManager = (*Manager)(nil)

// NewManager creates a new configuration manager. Extra search paths are
// consulted before the defaults.
func NewManager(searchPaths ...string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(searchPaths); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// NewManagerFromFile loads configuration from an explicit file path.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	m.v.SetConfigFile(path)
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig(searchPaths []string) error {
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")
	for _, p := range searchPaths {
		m.v.AddConfigPath(p)
	}
	m.v.AddConfigPath(".")
	m.v.AddConfigPath("./config")
	m.v.AddConfigPath("/etc/gc-eligibility-server/")
	return m.load()
}

func (m *Manager) load() error {
	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	setDefaults(m.v)

	// Config file is optional; defaults and environment variables suffice.
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.mode", "release")

	v.SetDefault("assessment.max_input_bytes", 512*1024)

	// Extraction service defaults (disabled unless configured)
	v.SetDefault("extraction.enabled", false)
	v.SetDefault("extraction.base_url", "")
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.timeout", "5s")
	v.SetDefault("extraction.rate_limit", 5)
	v.SetDefault("extraction.failure_threshold", 0.6)
	v.SetDefault("extraction.breaker_timeout", "60s")

	v.SetDefault("document.base_url", "")
	v.SetDefault("document.timeout", "30s")

	// Cache defaults
	v.SetDefault("cache.memory_size", 512)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Feedback store defaults
	v.SetDefault("feedback.driver", "sqlite")
	v.SetDefault("feedback.sqlite_path", filepath.Join(defaultDataDir(), "feedback.db"))
	v.SetDefault("feedback.postgres_url", "")
	v.SetDefault("feedback.migrations_path", "migrations")
	v.SetDefault("feedback.max_open_conns", 10)
	v.SetDefault("feedback.max_idle_conns", 2)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("mcp.server_name", "gc-eligibility-server")
	v.SetDefault("mcp.server_version", "1.0.0")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".gc-eligibility")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// IsAIEnabled reports whether the external extraction stage is configured.
func (m *Manager) IsAIEnabled() bool {
	return m.config.Extraction.Enabled && m.config.Extraction.BaseURL != ""
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server max_upload_bytes must be positive")
	}
	switch config.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server mode: %s", config.Server.Mode)
	}

	if config.Assessment.MaxInputBytes <= 0 {
		return fmt.Errorf("assessment max_input_bytes must be positive")
	}

	if config.Extraction.Enabled {
		if config.Extraction.BaseURL == "" {
			return fmt.Errorf("extraction base URL is required when extraction is enabled")
		}
		if config.Extraction.Timeout <= 0 {
			return fmt.Errorf("extraction timeout must be positive")
		}
		if config.Extraction.FailureThreshold <= 0 || config.Extraction.FailureThreshold > 1 {
			return fmt.Errorf("extraction failure_threshold must be in (0, 1]")
		}
	}

	switch config.Feedback.Driver {
	case "sqlite":
		if config.Feedback.SQLitePath == "" {
			return fmt.Errorf("feedback sqlite_path is required")
		}
	case "postgres":
		if config.Feedback.PostgresURL == "" {
			return fmt.Errorf("feedback postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid feedback driver: %s", config.Feedback.Driver)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit requests_per_second must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	if f := strings.ToLower(config.Logging.Format); f != "json" && f != "text" {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}
