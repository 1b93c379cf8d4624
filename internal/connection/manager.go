package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/natsops/jetconsole/internal/auth"
	"github.com/natsops/jetconsole/internal/router"
	"github.com/natsops/jetconsole/internal/subscription"
)

// Manager maintains at most one live realtime connection and keeps it
// aligned with the subscription registry: every channel in the intent set
// is resubscribed after each successful (re)connect, without caller
// involvement. Expected failure modes surface as state changes, never as
// returned errors, so callers need no error handling around Connect,
// Subscribe, or Send.
//
// A Manager is constructed once at the application root and passed to
// consumers; there is no package-level instance.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	source   auth.Source
	registry *subscription.Registry
	router   *router.Router

	// newClient is replaceable so tests can inject transports.
	newClient func(ClientConfig, *slog.Logger) Client

	authCancel func()

	mu       sync.Mutex
	state    State
	client   Client
	attempts int
	timer    *time.Timer
	// gen invalidates in-flight dials and pending reconnect timers. It is
	// bumped on every explicit Disconnect, so a timer that already fired
	// cannot resurrect a connection the caller tore down.
	gen uint64
}

// Stats is a point-in-time snapshot of the manager and its router.
type Stats struct {
	State              State
	ReconnectAttempts  int
	SubscribedChannels int
	Router             router.Stats
}

// NewManager creates a Manager observing the given credential source.
// It starts watching the source immediately: gaining a credential triggers
// Connect, losing it triggers Disconnect. Call Close to detach.
func NewManager(cfg ManagerConfig, source auth.Source, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("client_id", uuid.NewString())

	registry := subscription.NewRegistry()
	m := &Manager{
		cfg:       cfg,
		logger:    logger,
		source:    source,
		registry:  registry,
		router:    router.NewRouter(registry, logger),
		newClient: NewClient,
		state:     StateDisconnected,
	}
	m.authCancel = source.OnChange(m.onAuthChange)
	return m
}

// Status returns the current connection state.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the connection is currently open.
func (m *Manager) IsConnected() bool {
	return m.Status() == StateConnected
}

// LastMessage returns the most recently parsed inbound frame.
func (m *Manager) LastMessage() *router.Event {
	return m.router.LastMessage()
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	state := m.state
	attempts := m.attempts
	m.mu.Unlock()

	return Stats{
		State:              state,
		ReconnectAttempts:  attempts,
		SubscribedChannels: len(m.registry.Channels()),
		Router:             m.router.Stats(),
	}
}

// Connect starts a connection attempt. It is a no-op while connecting or
// connected, and a no-op without an authenticated, non-empty credential.
// A pending reconnect timer is superseded: the dial happens now. Connect
// never blocks on the network; the dial runs in the background.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}

	st := m.source.Status()
	if !st.Authenticated || st.Token == "" {
		m.mu.Unlock()
		m.logger.Debug("connect skipped, no credential")
		return
	}

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()

	go m.dial(gen)
}

// Disconnect tears the connection down: any pending reconnect timer is
// cancelled, the transport is closed, and the attempt counter resets.
// Idempotent; no automatic reconnection happens until Connect is called
// again or the credential source reports a fresh sign-in.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.attempts = 0
	cli := m.client
	m.client = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if cli != nil {
		cli.Close()
	}
}

// Close detaches the credential watcher and disconnects. The Manager must
// not be used afterwards.
func (m *Manager) Close() {
	if m.authCancel != nil {
		m.authCancel()
	}
	m.Disconnect()
}

// Subscribe records intent for channel and registers handler (which may be
// nil to keep the channel warm without delivery). If connected, a subscribe
// frame is sent immediately; otherwise the channel is picked up by the bulk
// resubscription of the next successful connect. The returned cancel
// removes only this handler registration.
func (m *Manager) Subscribe(channel string, handler subscription.Handler) (cancel func()) {
	cancel = m.registry.Subscribe(channel, handler)
	m.Send(Frame{Type: router.TypeSubscribe, Channel: channel})
	return cancel
}

// Unsubscribe drops the channel from the intent set along with all of its
// handlers, and tells the server if connected.
func (m *Manager) Unsubscribe(channel string) {
	m.registry.Unsubscribe(channel)
	m.Send(Frame{Type: router.TypeUnsubscribe, Channel: channel})
}

// Send marshals payload and writes it to the connection. Sending while not
// connected is a silent no-op: this is a best-effort channel and callers
// cannot assume delivery. Write errors are logged, never returned.
func (m *Manager) Send(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("unmarshalable payload, not sent", "error", err)
		return
	}

	m.mu.Lock()
	cli := m.client
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || cli == nil {
		m.logger.Debug("send skipped, not connected")
		return
	}
	if err := cli.Send(data); err != nil {
		m.logger.Warn("send failed", "error", err)
	}
}

// onAuthChange reacts to credential changes. Losing the credential is a
// hard stop: unconditional disconnect, timer cleared, counter reset.
func (m *Manager) onAuthChange(st auth.Status) {
	if st.Authenticated && st.Token != "" {
		m.Connect()
		return
	}
	m.logger.Info("credential lost, disconnecting")
	m.Disconnect()
}

// dial performs one connection attempt. The credential is re-read from the
// source here, on every attempt, so reconnects never reuse a stale token.
func (m *Manager) dial(gen uint64) {
	st := m.source.Status()
	if !st.Authenticated || st.Token == "" {
		m.mu.Lock()
		if gen == m.gen && m.state == StateConnecting {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		return
	}

	dialURL, err := m.dialURL(st.Token)
	if err != nil {
		m.logger.Error("invalid websocket url", "url", m.cfg.URL, "error", err)
		m.mu.Lock()
		if gen == m.gen && m.state == StateConnecting {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		return
	}

	logger := m.logger.With("attempt_id", uuid.NewString())
	cli := m.newClient(m.cfg.clientConfig(dialURL), logger)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	err = cli.Connect(ctx)
	cancel()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			cli.Close()
		}
		return
	}

	if err != nil {
		m.mu.Unlock()
		logger.Warn("connect failed", "error", err)
		m.scheduleReconnect(gen)
		return
	}

	m.client = cli
	m.state = StateConnected
	m.attempts = 0

	// Bulk resubscription: one subscribe frame per distinct channel in the
	// intent set, before any caller-initiated sends for this connection.
	channels := m.registry.Channels()
	for _, ch := range channels {
		frame, _ := json.Marshal(Frame{Type: router.TypeSubscribe, Channel: ch})
		if err := cli.Send(frame); err != nil {
			logger.Warn("resubscribe failed", "channel", ch, "error", err)
		}
	}
	m.mu.Unlock()

	logger.Info("connected", "resubscribed_channels", len(channels))

	go m.readLoop(cli, gen)
}

// readLoop pumps inbound frames into the router until the transport fails
// or closes. Transport errors are logged; the close of the message channel
// is what drives the state transition.
func (m *Manager) readLoop(cli Client, gen uint64) {
	for {
		select {
		case err := <-cli.Errors():
			m.logger.Warn("connection error", "error", err)
			// Errors from this transport are terminal. Closing it makes the
			// message channel close, which is what moves the state machine.
			cli.Close()
		case frame, ok := <-cli.Messages():
			if !ok {
				m.handleClose(gen)
				return
			}
			m.router.Dispatch(frame)
		}
	}
}

// handleClose runs when the transport closes out from under us. If the
// caller is still authenticated and attempts remain, schedule a retry;
// otherwise settle in the disconnected state.
func (m *Manager) handleClose(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.mu.Unlock()

	m.logger.Info("connection closed")
	m.scheduleReconnect(gen)
}

// scheduleReconnect applies the backoff policy after a failed dial or a
// transport close: delay base*2^attempts, at most MaxReconnectAttempts
// automatic retries per disconnect episode.
func (m *Manager) scheduleReconnect(gen uint64) {
	st := m.source.Status()

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	if !st.Authenticated || st.Token == "" || m.attempts >= m.cfg.MaxReconnectAttempts {
		m.state = StateDisconnected
		if m.attempts >= m.cfg.MaxReconnectAttempts {
			m.logger.Warn("reconnect attempts exhausted", "attempts", m.attempts)
		}
		return
	}

	delay := backoffDelay(m.cfg.ReconnectBaseDelay, m.attempts)
	m.attempts++
	m.state = StateReconnecting
	m.logger.Info("scheduling reconnect", "attempt", m.attempts, "delay", delay)

	m.timer = time.AfterFunc(delay, func() {
		m.retry(gen)
	})
}

// retry fires from the reconnect timer. The generation guard makes a timer
// that outraces Disconnect harmless.
func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.timer = nil

	st := m.source.Status()
	if !st.Authenticated || st.Token == "" {
		m.state = StateDisconnected
		m.mu.Unlock()
		return
	}

	m.state = StateConnecting
	m.mu.Unlock()

	go m.dial(gen)
}

// dialURL appends the current access token to the configured URL. The
// token is a query parameter; the server authenticates the upgrade from it.
func (m *Manager) dialURL(token string) (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// backoffDelay returns the reconnect delay for the given 0-indexed attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << attempt
}
