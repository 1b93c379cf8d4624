package router

import (
	"encoding/json"
	"testing"

	"github.com/natsops/jetconsole/internal/subscription"
)

func TestRouter_DispatchToChannelAndWildcard(t *testing.T) {
	reg := subscription.NewRegistry()
	r := NewRouter(reg, nil)

	type call struct {
		data    string
		channel string
	}
	var exact, wild, other []call

	reg.Subscribe("cluster.abc", func(data json.RawMessage, ch string) {
		exact = append(exact, call{string(data), ch})
	})
	reg.Subscribe(subscription.Wildcard, func(data json.RawMessage, ch string) {
		wild = append(wild, call{string(data), ch})
	})
	reg.Subscribe("cluster.other", func(data json.RawMessage, ch string) {
		other = append(other, call{string(data), ch})
	})

	r.Dispatch([]byte(`{"type":"message","channel":"cluster.abc","data":{"status":"connected"}}`))

	if len(exact) != 1 {
		t.Fatalf("exact handler called %d times, want 1", len(exact))
	}
	if exact[0].data != `{"status":"connected"}` || exact[0].channel != "cluster.abc" {
		t.Errorf("exact handler got %+v", exact[0])
	}
	if len(wild) != 1 {
		t.Fatalf("wildcard handler called %d times, want 1", len(wild))
	}
	// The wildcard handler must see the real channel, not the wildcard token.
	if wild[0].channel != "cluster.abc" {
		t.Errorf("wildcard handler got channel %q, want cluster.abc", wild[0].channel)
	}
	if len(other) != 0 {
		t.Errorf("unrelated handler called %d times, want 0", len(other))
	}
}

func TestRouter_MalformedFrameDropped(t *testing.T) {
	reg := subscription.NewRegistry()
	r := NewRouter(reg, nil)

	called := false
	reg.Subscribe(subscription.Wildcard, func(json.RawMessage, string) { called = true })

	r.Dispatch([]byte(`{not json`))

	if called {
		t.Error("handler called for malformed frame")
	}
	if r.LastMessage() != nil {
		t.Error("malformed frame must not update last message")
	}
	stats := r.Stats()
	if stats.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", stats.ParseErrors)
	}
	if stats.FramesRouted != 0 {
		t.Errorf("FramesRouted = %d, want 0", stats.FramesRouted)
	}
}

func TestRouter_NonMessageTypesNotDispatched(t *testing.T) {
	reg := subscription.NewRegistry()
	r := NewRouter(reg, nil)

	called := false
	reg.Subscribe(subscription.Wildcard, func(json.RawMessage, string) { called = true })

	r.Dispatch([]byte(`{"type":"connected","timestamp":1705328200}`))

	if called {
		t.Error("handler called for non-message frame")
	}
	last := r.LastMessage()
	if last == nil || last.Type != "connected" {
		t.Fatalf("LastMessage = %+v, want type connected", last)
	}
	if last.Timestamp != 1705328200 {
		t.Errorf("Timestamp = %d, want 1705328200", last.Timestamp)
	}
}

func TestRouter_MessageWithoutChannelNotDispatched(t *testing.T) {
	reg := subscription.NewRegistry()
	r := NewRouter(reg, nil)

	called := false
	reg.Subscribe(subscription.Wildcard, func(json.RawMessage, string) { called = true })

	r.Dispatch([]byte(`{"type":"message","data":{"x":1}}`))

	if called {
		t.Error("handler called for message frame without channel")
	}
	if r.LastMessage() == nil {
		t.Error("parsed frame must still update last message")
	}
}

func TestRouter_HandlerPanicIsolated(t *testing.T) {
	reg := subscription.NewRegistry()
	r := NewRouter(reg, nil)

	var survived int
	reg.Subscribe("streams", func(json.RawMessage, string) { panic("caller bug") })
	reg.Subscribe("streams", func(json.RawMessage, string) { survived++ })
	reg.Subscribe(subscription.Wildcard, func(json.RawMessage, string) { survived++ })

	frame := []byte(`{"type":"message","channel":"streams","data":1}`)
	r.Dispatch(frame)
	// A later message must also still go through.
	r.Dispatch(frame)

	if survived != 4 {
		t.Errorf("surviving handlers called %d times, want 4", survived)
	}
	if got := r.Stats().HandlerPanics; got != 2 {
		t.Errorf("HandlerPanics = %d, want 2", got)
	}
}

func TestRouter_NoHandlersIsNoop(t *testing.T) {
	reg := subscription.NewRegistry()
	r := NewRouter(reg, nil)

	reg.Subscribe("warm.channel", nil)

	r.Dispatch([]byte(`{"type":"message","channel":"warm.channel","data":{}}`))

	stats := r.Stats()
	if stats.FramesRouted != 1 {
		t.Errorf("FramesRouted = %d, want 1", stats.FramesRouted)
	}
	if stats.ParseErrors != 0 {
		t.Errorf("ParseErrors = %d, want 0", stats.ParseErrors)
	}
}

func TestRouter_OrderPreserved(t *testing.T) {
	reg := subscription.NewRegistry()
	r := NewRouter(reg, nil)

	var got []string
	reg.Subscribe("seq", func(data json.RawMessage, _ string) {
		got = append(got, string(data))
	})

	for _, payload := range []string{`1`, `2`, `3`} {
		r.Dispatch([]byte(`{"type":"message","channel":"seq","data":` + payload + `}`))
	}

	want := []string{"1", "2", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order %v, want %v", got, want)
		}
	}
}
