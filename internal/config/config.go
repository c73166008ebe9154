// Package config loads the acorn node configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the node configuration. Command-line flags override it.
type Config struct {
	// DB is the SQLite ledger path.
	DB string `yaml:"db" validate:"required"`

	// KeyFile holds the hex ed25519 seed of the local agent.
	KeyFile string `yaml:"key_file" validate:"required"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Serve Serve `yaml:"serve"`
}

// Serve configures the serve command.
type Serve struct {
	// Listen is the websocket and metrics listen address.
	Listen string `yaml:"listen" validate:"required,hostname_port"`

	// Peers are websocket URLs dialled at startup.
	Peers []string `yaml:"peers" validate:"dive,url"`

	// Metrics enables the /metrics endpoint.
	Metrics bool `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DB:       "acorn.db",
		KeyFile:  "acorn.key",
		LogLevel: "info",
		Serve: Serve{
			Listen:  "127.0.0.1:7777",
			Metrics: true,
		},
	}
}

var validate = validator.New()

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, rejecting unknown fields, and
// validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level maps LogLevel to a slog level. Unknown values are info.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
