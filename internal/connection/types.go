package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// State is the connection lifecycle state. Exactly one is active at a
// time, owned by the Manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Frame is an outbound control frame. Subscribe and unsubscribe frames
// carry the channel; arbitrary payloads go through Manager.Send directly.
type Frame struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

// ClientConfig configures a single WebSocket transport client.
type ClientConfig struct {
	URL              string        // fully-formed dial URL including query parameters
	HandshakeTimeout time.Duration // WebSocket handshake deadline
	PingTimeout      time.Duration // max time without ping/pong before the connection is stale
	WriteTimeout     time.Duration // write deadline for sends
	BufferSize       int           // inbound message channel capacity
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      30 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the connection Manager.
type ManagerConfig struct {
	URL                  string        // base WebSocket URL; token and client_id are appended at dial time
	ReconnectBaseDelay   time.Duration // first retry delay; doubles per attempt
	MaxReconnectAttempts int           // automatic retries per disconnect episode
	HandshakeTimeout     time.Duration
	PingTimeout          time.Duration
	WriteTimeout         time.Duration
	BufferSize           int
}

// DefaultManagerConfig returns sensible defaults: retries at 1s, 2s, 4s,
// 8s, 16s, then the manager settles in the disconnected state.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseDelay:   1 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
		PingTimeout:          30 * time.Second,
		WriteTimeout:         5 * time.Second,
		BufferSize:           1000,
	}
}

func (c ManagerConfig) clientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:              url,
		HandshakeTimeout: c.HandshakeTimeout,
		PingTimeout:      c.PingTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}
}
