package router

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/natsops/jetconsole/internal/subscription"
)

// Router dispatches inbound frames to registered handlers. Dispatch is
// synchronous: frames are delivered to handlers in the order the transport
// delivers them, with no buffering or batching.
type Router struct {
	registry *subscription.Registry
	logger   *slog.Logger

	mu            sync.RWMutex
	last          *Event
	received      int64
	routed        int64
	parseErrors   int64
	handlerPanics int64
}

// NewRouter creates a Router dispatching against the given registry.
func NewRouter(registry *subscription.Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		logger:   logger,
	}
}

// Dispatch parses a single inbound frame and fans it out. Malformed frames
// are logged and dropped; a bad frame never closes the connection. Every
// successfully parsed frame updates the last-message slot, but only frames
// with type "message" and a channel reach handlers.
func (r *Router) Dispatch(frame []byte) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		r.logger.Warn("dropping malformed frame", "error", err)
		r.mu.Lock()
		r.parseErrors++
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	r.last = &ev
	r.mu.Unlock()

	if ev.Type != TypeMessage || ev.Channel == "" {
		return
	}

	// Exact-channel handlers first, then wildcard handlers. Wildcard
	// handlers still receive the real channel. Zero handlers is a no-op,
	// not an error.
	for _, h := range r.registry.HandlersFor(ev.Channel) {
		r.invoke(h, ev.Data, ev.Channel)
	}

	r.mu.Lock()
	r.routed++
	r.mu.Unlock()
}

// invoke runs a single handler, isolating panics so one misbehaving
// handler cannot suppress siblings or later messages.
func (r *Router) invoke(h subscription.Handler, data json.RawMessage, channel string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic", "channel", channel, "panic", rec)
			r.mu.Lock()
			r.handlerPanics++
			r.mu.Unlock()
		}
	}()
	h(data, channel)
}

// LastMessage returns the most recently parsed inbound frame, or nil if
// nothing has been received yet.
func (r *Router) LastMessage() *Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Stats returns current routing statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		FramesReceived: r.received,
		FramesRouted:   r.routed,
		ParseErrors:    r.parseErrors,
		HandlerPanics:  r.handlerPanics,
	}
}
