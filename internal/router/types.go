package router

import "encoding/json"

// Message types on the wire.
const (
	// TypeMessage is the only inbound type that participates in dispatch.
	TypeMessage = "message"
	// TypeSubscribe and TypeUnsubscribe are outbound frame types.
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Event is a parsed inbound frame. Frames with Type "message" and a
// non-empty Channel are dispatched; anything else (connection acks,
// server notices) is only recorded as the last received message.
type Event struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Stats contains runtime routing statistics.
type Stats struct {
	FramesReceived int64
	FramesRouted   int64
	ParseErrors    int64
	HandlerPanics  int64
}
