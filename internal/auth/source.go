// Package auth exposes the console's credential state to the realtime
// client. The client only observes: it reads the current access token at
// dial time and reacts to changes, it never mints or refreshes tokens.
package auth

import "sync"

// Status is a snapshot of the credential state.
type Status struct {
	Token         string // current access token, empty when absent
	Authenticated bool
}

// Source provides the current credential and change notification.
// The realtime client re-reads Status on every connection attempt rather
// than caching a token across reconnects.
type Source interface {
	// Status returns the current credential snapshot.
	Status() Status

	// OnChange registers fn to be called after every credential change.
	// The returned cancel function removes the registration.
	OnChange(fn func(Status)) (cancel func())
}

// MemorySource is an in-memory Source. The console shell updates it when
// the user signs in or out; tests drive it directly.
type MemorySource struct {
	mu        sync.Mutex
	status    Status
	listeners map[uint64]func(Status)
	nextID    uint64
}

// NewMemorySource creates a MemorySource. A non-empty token starts it in
// the authenticated state.
func NewMemorySource(token string) *MemorySource {
	return &MemorySource{
		status:    Status{Token: token, Authenticated: token != ""},
		listeners: make(map[uint64]func(Status)),
	}
}

// Status returns the current credential snapshot.
func (s *MemorySource) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetToken replaces the token and notifies listeners. An empty token marks
// the source unauthenticated.
func (s *MemorySource) SetToken(token string) {
	s.mu.Lock()
	s.status = Status{Token: token, Authenticated: token != ""}
	st := s.status
	fns := make([]func(Status), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Listeners run without the lock held; they may call back into Status.
	for _, fn := range fns {
		fn(st)
	}
}

// Clear drops the credential, marking the source unauthenticated.
func (s *MemorySource) Clear() {
	s.SetToken("")
}

// OnChange registers a change listener.
func (s *MemorySource) OnChange(fn func(Status)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
