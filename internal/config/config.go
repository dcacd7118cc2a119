// Package config holds dayflow user configuration, loaded from
// .dayflow/config.yaml in the workspace. Appearance and logging sections
// support hot reload through the Watcher; transport changes require a
// restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dayflow configuration.
type Config struct {
	// Transport configures the assistant backend connection.
	Transport TransportConfig `yaml:"transport"`

	// Appearance configures the rendering layer. Injected into the UI at
	// construction; never read as ambient global state.
	Appearance AppearanceConfig `yaml:"appearance"`

	// Session configures transcript snapshot storage.
	Session SessionConfig `yaml:"session"`

	// Logging configures the category file logger.
	Logging LoggingConfig `yaml:"logging"`
}

// TransportConfig configures the streaming assistant client.
type TransportConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
	// Offline switches to the scripted in-process transport.
	Offline bool `yaml:"offline"`
}

// AppearanceConfig configures the chat UI.
type AppearanceConfig struct {
	AccentColor     string `yaml:"accent_color"`
	UserDisplayName string `yaml:"user_display_name"`
}

// SessionConfig configures transcript persistence.
type SessionConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig mirrors internal/logging's expectations.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			BaseURL: "http://localhost:8700",
			Model:   "dayflow-assistant-1",
			Timeout: "120s",
		},
		Appearance: AppearanceConfig{
			AccentColor:     "#7D56F4",
			UserDisplayName: "You",
		},
		Session: SessionConfig{
			Dir: "sessions",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".dayflow", "config.yaml")
}

// Load reads the config for a workspace, falling back to defaults when no
// file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the workspace, creating .dayflow if needed.
func (c *Config) Save(workspace string) error {
	dir := filepath.Dir(Path(workspace))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(Path(workspace), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks field values that would fail later in worse places.
func (c *Config) Validate() error {
	if c.Transport.Timeout != "" {
		if _, err := time.ParseDuration(c.Transport.Timeout); err != nil {
			return fmt.Errorf("invalid transport timeout %q: %w", c.Transport.Timeout, err)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}

// TransportTimeout parses the configured timeout, defaulting to 120s.
func (c *Config) TransportTimeout() time.Duration {
	if c.Transport.Timeout == "" {
		return 120 * time.Second
	}
	d, err := time.ParseDuration(c.Transport.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}
