// Package config loads client configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML string parsing ("30s", "2m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the client configuration.
type Config struct {
	BaseURL           string    `yaml:"base_url"`
	RequestTimeout    Duration  `yaml:"request_timeout"`
	StreamIdleTimeout Duration  `yaml:"stream_idle_timeout"`
	Log               LogConfig `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:        "http://localhost:4000",
		RequestTimeout: Duration(30 * time.Second),
		Log:            LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".eduforge/config.yaml"
	}
	return filepath.Join(home, ".eduforge", "config.yaml")
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides, and validates. A missing file yields the
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("EDUFORGE_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("EDUFORGE_REQUEST_TIMEOUT"); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = Duration(dur)
		}
	}
	if v := os.Getenv("EDUFORGE_STREAM_IDLE_TIMEOUT"); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			c.StreamIdleTimeout = Duration(dur)
		}
	}
	if v := os.Getenv("EDUFORGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("EDUFORGE_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q must be an http(s) URL", c.BaseURL)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.StreamIdleTimeout < 0 {
		return fmt.Errorf("stream_idle_timeout must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log level %q not recognized", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q must be \"text\" or \"json\"", c.Log.Format)
	}
	return nil
}
