package subscription

import (
	"encoding/json"
	"sort"
	"sync"
)

// Wildcard is the reserved channel whose handlers receive every routed
// message regardless of its real channel.
const Wildcard = "*"

// Handler is a caller-supplied callback for routed messages. It receives
// the message payload and the real channel the message arrived on (never
// the wildcard token).
type Handler func(data json.RawMessage, channel string)

// Registry is the channel-subscription bookkeeping for the realtime client.
// It records which channels should be subscribed whenever a connection
// exists, and which handlers receive messages for each channel. The intent
// set and the handler map may disagree: a channel can be kept "warm" with
// zero handlers.
type Registry struct {
	mu       sync.Mutex
	intents  map[string]struct{}
	handlers map[string]map[uint64]Handler
	nextID   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		intents:  make(map[string]struct{}),
		handlers: make(map[string]map[uint64]Handler),
	}
}

// Subscribe adds channel to the intent set and, if handler is non-nil,
// registers it for that channel. The returned cancel function removes only
// this registration; the channel intent and any other handlers remain.
// Cancel is safe to call more than once.
func (r *Registry) Subscribe(channel string, handler Handler) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.intents[channel] = struct{}{}

	if handler == nil {
		return func() {}
	}

	id := r.nextID
	r.nextID++

	set := r.handlers[channel]
	if set == nil {
		set = make(map[uint64]Handler)
		r.handlers[channel] = set
	}
	set[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if set, ok := r.handlers[channel]; ok {
				delete(set, id)
				if len(set) == 0 {
					delete(r.handlers, channel)
				}
			}
		})
	}
}

// Unsubscribe removes the channel from the intent set and discards all of
// its handlers. It is a no-op for unknown channels.
func (r *Registry) Unsubscribe(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.intents, channel)
	delete(r.handlers, channel)
}

// Subscribed reports whether the channel is in the intent set.
func (r *Registry) Subscribed(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.intents[channel]
	return ok
}

// Channels returns a sorted snapshot of the intent set. The connection
// manager replays this after every successful (re)connect.
func (r *Registry) Channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.intents))
	for ch := range r.intents {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// HandlersFor returns the handlers to invoke for a message on channel:
// the channel's own handlers followed by the wildcard handlers. Invocation
// order within each group is unspecified.
func (r *Registry) HandlersFor(channel string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Handler
	for _, h := range r.handlers[channel] {
		out = append(out, h)
	}
	if channel != Wildcard {
		for _, h := range r.handlers[Wildcard] {
			out = append(out, h)
		}
	}
	return out
}

// HandlerCount returns the number of registrations for channel. Used by
// tests and stats reporting.
func (r *Registry) HandlerCount(channel string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[channel])
}
