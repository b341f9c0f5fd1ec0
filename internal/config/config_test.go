package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gc-eligibility-server/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 512*1024, cfg.Assessment.MaxInputBytes)
	assert.Equal(t, 5*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 0.6, cfg.Extraction.FailureThreshold)
	assert.Equal(t, "sqlite", cfg.Feedback.Driver)
	assert.NotEmpty(t, cfg.Feedback.SQLitePath)
	assert.Equal(t, 24*time.Hour, cfg.Cache.DefaultTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, m.IsAIEnabled())
	assert.NoError(t, m.Validate())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GC_ASSESS_SERVER_PORT", "9090")
	t.Setenv("GC_ASSESS_EXTRACTION_ENABLED", "true")
	t.Setenv("GC_ASSESS_EXTRACTION_BASE_URL", "http://extractor.internal")
	t.Setenv("GC_ASSESS_EXTRACTION_TIMEOUT", "3s")
	t.Setenv("GC_ASSESS_LOGGING_LEVEL", "debug")

	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, 3*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, m.IsAIEnabled())
	assert.NoError(t, m.Validate())
}

func TestNewManagerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 7000
feedback:
  driver: postgres
  postgres_url: postgres://gc:gc@localhost:5432/gc?sslmode=disable
cache:
  memory_size: 64
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	m, err := NewManagerFromFile(path)
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Feedback.Driver)
	assert.Equal(t, 64, cfg.Cache.MemorySize)
	assert.Equal(t, "json", cfg.Logging.Format, "unset keys keep defaults")
	assert.NoError(t, m.Validate())
}

func TestNewManagerFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := NewManagerFromFile(path)
	assert.Error(t, err)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"port", func(c *domain.Config) { c.Server.Port = 0 }},
		{"server mode", func(c *domain.Config) { c.Server.Mode = "prod" }},
		{"max input", func(c *domain.Config) { c.Assessment.MaxInputBytes = 0 }},
		{"extraction without url", func(c *domain.Config) { c.Extraction.Enabled = true; c.Extraction.BaseURL = "" }},
		{"failure threshold", func(c *domain.Config) {
			c.Extraction.Enabled = true
			c.Extraction.BaseURL = "http://x"
			c.Extraction.FailureThreshold = 1.5
		}},
		{"feedback driver", func(c *domain.Config) { c.Feedback.Driver = "mysql" }},
		{"postgres without url", func(c *domain.Config) { c.Feedback.Driver = "postgres" }},
		{"rate limit", func(c *domain.Config) { c.RateLimit.RequestsPerSecond = 0 }},
		{"log level", func(c *domain.Config) { c.Logging.Level = "verbose" }},
		{"log format", func(c *domain.Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(t.TempDir())
			require.NoError(t, err)
			tt.mutate(m.GetConfig())
			assert.Error(t, m.Validate())
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(domain.LoggingConfig{Level: "warn", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logPath := filepath.Join(t.TempDir(), "server.log")
	logger, err = NewLogger(domain.LoggingConfig{Level: "info", Format: "json", Output: logPath})
	require.NoError(t, err)
	logger.Info("hello")
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"hello"`)

	_, err = NewLogger(domain.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
