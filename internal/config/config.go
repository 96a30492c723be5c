// Package config loads the lessons configuration from a YAML file and
// FETCHSTATE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Logging LoggingConfig `yaml:"logging"`
	Session SessionConfig `yaml:"session"`
	Auth    AuthConfig    `yaml:"auth"`
}

// ServerConfig holds the lesson backend settings. A zero
// RequestsPerMinute leaves clients unlimited.
type ServerConfig struct {
	Addr              string `yaml:"addr" validate:"required,hostname_port"`
	RequestsPerMinute int    `yaml:"requests_per_minute" validate:"gte=0"`
}

// ClientConfig holds the settings of requests made by the CLI
type ClientConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// SessionConfig holds where the signed-in session is kept. An empty path
// keeps it in memory only.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds how the lesson backend issues ID tokens. An empty
// secret makes the server pick a random one at startup.
type AuthConfig struct {
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl" validate:"gt=0"`
}

// Environment variables overriding file values.
const (
	EnvAddr              = "FETCHSTATE_ADDR"
	EnvRequestsPerMinute = "FETCHSTATE_REQUESTS_PER_MINUTE"
	EnvBaseURL           = "FETCHSTATE_BASE_URL"
	EnvTimeout           = "FETCHSTATE_TIMEOUT"
	EnvLogLevel          = "FETCHSTATE_LOG_LEVEL"
	EnvLogFormat         = "FETCHSTATE_LOG_FORMAT"
	EnvSessionPath       = "FETCHSTATE_SESSION_PATH"
	EnvTokenSecret       = "FETCHSTATE_TOKEN_SECRET"
	EnvTokenTTL          = "FETCHSTATE_TOKEN_TTL"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "localhost:8080",
		},
		Client: ClientConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
		},
	}
}

// Load reads the file at path over the defaults, applies the environment
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decode rejects unknown keys. An empty file leaves cfg unchanged.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvAddr:        &c.Server.Addr,
		EnvBaseURL:     &c.Client.BaseURL,
		EnvLogLevel:    &c.Logging.Level,
		EnvLogFormat:   &c.Logging.Format,
		EnvSessionPath: &c.Session.Path,
		EnvTokenSecret: &c.Auth.TokenSecret,
	}
	for key, target := range strs {
		if value, ok := lookup(key); ok {
			*target = value
		}
	}

	durations := map[string]*time.Duration{
		EnvTimeout:  &c.Client.Timeout,
		EnvTokenTTL: &c.Auth.TokenTTL,
	}
	for key, target := range durations {
		value, ok := lookup(key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*target = d
	}

	if value, ok := lookup(EnvRequestsPerMinute); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvRequestsPerMinute, err)
		}
		c.Server.RequestsPerMinute = n
	}

	return nil
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel returns the configured level.
func (c *LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Level))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Logger builds a logger writing to w in the configured format.
func (c *LoggingConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
