// Package config loads and validates YAML configuration for jetconsole
// binaries. ${VAR} references in the file are expanded from the
// environment before parsing, so tokens can stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a jetconsole client instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Console    ConsoleConfig    `yaml:"console"`
	Connection ConnectionConfig `yaml:"connection"`
}

// InstanceConfig identifies this client instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ConsoleConfig holds console backend settings.
type ConsoleConfig struct {
	WSURL    string   `yaml:"ws_url"`   // realtime WebSocket endpoint
	Token    string   `yaml:"token"`    // access token; usually ${JETCONSOLE_TOKEN}
	Channels []string `yaml:"channels"` // channels to subscribe on startup
}

// ConnectionConfig holds realtime connection settings.
type ConnectionConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
