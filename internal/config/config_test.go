package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "lessons.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "localhost:8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Empty(t, cfg.Session.Path)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
  requests_per_minute: 120
client:
  base_url: http://localhost:9090
  timeout: 2s
logging:
  level: debug
  format: json
session:
  path: /tmp/lessons.db
auth:
  token_secret: s3cret
  token_ttl: 30m
`)

	cfg, err := load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Server:  ServerConfig{Addr: ":9090", RequestsPerMinute: 120},
		Client:  ClientConfig{BaseURL: "http://localhost:9090", Timeout: 2 * time.Second},
		Logging: LoggingConfig{Level: "debug", Format: "json"},
		Session: SessionConfig{Path: "/tmp/lessons.db"},
		Auth:    AuthConfig{TokenSecret: "s3cret", TokenTTL: 30 * time.Minute},
	}, cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := load(writeFile(t, "logging:\n  level: warn\n"), env(nil))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := load(writeFile(t, ""), env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Env(t *testing.T) {
	cfg, err := load(writeFile(t, "client:\n  base_url: http://file:8080\n"), env(map[string]string{
		EnvAddr:              "0.0.0.0:7070",
		EnvRequestsPerMinute: "30",
		EnvBaseURL:           "http://env:7070",
		EnvTimeout:           "500ms",
		EnvLogLevel:          "error",
		EnvLogFormat:         "json",
		EnvSessionPath:       "session.db",
		EnvTokenSecret:       "from-env",
		EnvTokenTTL:          "2h",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7070", cfg.Server.Addr)
	assert.Equal(t, 30, cfg.Server.RequestsPerMinute)
	assert.Equal(t, "http://env:7070", cfg.Client.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Client.Timeout)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "session.db", cfg.Session.Path)
	assert.Equal(t, "from-env", cfg.Auth.TokenSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_EnvFromProcess(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		env      map[string]string
		expected string
	}{
		{name: "unknown_key", file: "server:\n  port: 8080\n", expected: "parsing config"},
		{name: "bad_yaml", file: "server: [", expected: "parsing config"},
		{name: "bad_env_duration", env: map[string]string{EnvTimeout: "soon"}, expected: "parsing FETCHSTATE_TIMEOUT"},
		{name: "bad_env_int", env: map[string]string{EnvRequestsPerMinute: "lots"}, expected: "parsing FETCHSTATE_REQUESTS_PER_MINUTE"},
		{name: "negative_rate", env: map[string]string{EnvRequestsPerMinute: "-1"}, expected: "invalid config"},
		{name: "bad_addr", env: map[string]string{EnvAddr: "localhost"}, expected: "invalid config"},
		{name: "bad_base_url", env: map[string]string{EnvBaseURL: "not a url"}, expected: "invalid config"},
		{name: "bad_level", env: map[string]string{EnvLogLevel: "loud"}, expected: "invalid config"},
		{name: "bad_format", env: map[string]string{EnvLogFormat: "xml"}, expected: "invalid config"},
		{name: "zero_timeout", env: map[string]string{EnvTimeout: "0s"}, expected: "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := load(path, env(tt.env))
			assert.ErrorContains(t, err, tt.expected)
		})
	}

	t.Run("missing_file", func(t *testing.T) {
		_, err := load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
		assert.ErrorContains(t, err, "reading config")
	})
}

func TestLoggingConfig(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{level: "debug", expected: slog.LevelDebug},
		{level: "info", expected: slog.LevelInfo},
		{level: "warn", expected: slog.LevelWarn},
		{level: "error", expected: slog.LevelError},
		{level: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, (&LoggingConfig{Level: tt.level}).SlogLevel())
		})
	}

	t.Run("json_logger", func(t *testing.T) {
		var buf bytes.Buffer
		(&LoggingConfig{Level: "warn", Format: "json"}).Logger(&buf).Info("hidden")
		assert.Empty(t, buf.String())

		(&LoggingConfig{Level: "warn", Format: "json"}).Logger(&buf).Warn("shown")
		assert.Contains(t, buf.String(), `"msg":"shown"`)
	})

	t.Run("text_logger", func(t *testing.T) {
		var buf bytes.Buffer
		(&LoggingConfig{Level: "info", Format: "text"}).Logger(&buf).Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}
