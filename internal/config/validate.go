package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Console.WSURL == "" {
		return errors.New("console.ws_url is required")
	}
	if !strings.HasPrefix(c.Console.WSURL, "ws://") && !strings.HasPrefix(c.Console.WSURL, "wss://") {
		return fmt.Errorf("console.ws_url must be a ws:// or wss:// URL, got %q", c.Console.WSURL)
	}

	if c.Connection.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be positive")
	}
	if c.Connection.MaxReconnectAttempts < 0 {
		return errors.New("connection.max_reconnect_attempts must be >= 0")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	for _, ch := range c.Console.Channels {
		if ch == "" {
			return errors.New("console.channels must not contain empty entries")
		}
	}

	return nil
}
