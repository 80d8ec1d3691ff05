// Package client keeps one realtime connection alive from the consumer side:
// it dials, reconnects with exponential backoff and dispatches inbound events
// to subscribed listeners.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
	"github.com/yashUcr773/task-management-app-sub001/config"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// State is the connection manager state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

const outboundBuffer = 64

// Notifier surfaces connection status to the user.
type Notifier interface {
	Connected()
	TransientError(err error)
	PermanentFailure(attempts int)
}

// LogNotifier reports status through a logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Connected() {
	n.Logger.Info().Msg("realtime connected")
}

func (n LogNotifier) TransientError(err error) {
	n.Logger.Warn().Err(err).Msg("realtime connection error, retrying")
}

func (n LogNotifier) PermanentFailure(attempts int) {
	n.Logger.Error().Int("attempts", attempts).Msg("realtime connection failed permanently")
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the default WSDialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithClock replaces the system clock used for reconnect timers.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithNotifier replaces the default LogNotifier.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// link is one dialed transport and its writer queue.
type link struct {
	gen       uint64
	transport Transport
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.transport.Close()
	})
}

// Manager owns the client side of one realtime connection.
type Manager struct {
	cfg        config.ClientConfig
	dialer     Dialer
	clock      Clock
	notifier   Notifier
	dispatcher *Dispatcher
	logger     zerolog.Logger

	mu             sync.Mutex
	state          State
	attempts       int
	gen            uint64
	current        *link
	timer          Timer
	timerSeq       uint64
	userID         string
	organizationID string
	cancelDial     context.CancelFunc
}

// NewManager creates an idle manager. A nil cfg uses DefaultClientConfig.
func NewManager(cfg *config.ClientConfig, logger zerolog.Logger, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.DefaultClientConfig()
	}
	logger = logger.With().Str("component", "realtime-client").Logger()
	m := &Manager{
		cfg:        *cfg,
		dialer:     WSDialer{},
		clock:      systemClock{},
		notifier:   LogNotifier{Logger: logger},
		dispatcher: NewDispatcher(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the reconnect attempts made since the last successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Subscribe registers fn for eventType or Wildcard.
func (m *Manager) Subscribe(eventType types.EventType, fn Listener) func() {
	return m.dispatcher.Subscribe(eventType, fn)
}

// Connect dials the endpoint for userID. It does nothing while a transport
// is connecting or open. Otherwise any pending reconnect is cancelled and
// the attempt counter starts over.
func (m *Manager) Connect(userID, organizationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnecting || m.state == StateOpen {
		return nil
	}
	if _, err := EndpointURL(m.cfg.URL, userID, organizationID); err != nil {
		return err
	}

	m.stopTimerLocked()
	m.attempts = 0
	m.userID = userID
	m.organizationID = organizationID
	m.dialLocked()
	return nil
}

// Disconnect closes the transport and prevents any further reconnects
// until Connect is called again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.state = StateDisconnected
	m.stopTimerLocked()
	m.gen++
	cur := m.current
	m.current = nil
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	m.mu.Unlock()

	if cur != nil {
		cur.close()
	}
	m.logger.Info().Msg("realtime disconnected")
}

// Send writes evt to the open transport without blocking. While not open
// the event is dropped. The server assigns the timestamp.
func (m *Manager) Send(evt types.Event) {
	m.mu.Lock()
	state, cur := m.state, m.current
	m.mu.Unlock()

	if state != StateOpen || cur == nil {
		m.logger.Warn().Str("state", state.String()).Str("event_type", string(evt.Type)).
			Msg("not connected, dropping outbound event")
		return
	}

	evt.Timestamp = ""
	data, err := json.Marshal(evt)
	if err != nil {
		m.logger.Warn().Err(err).Str("event_type", string(evt.Type)).Msg("failed to encode outbound event")
		return
	}

	select {
	case cur.out <- data:
	case <-cur.done:
		m.logger.Warn().Str("event_type", string(evt.Type)).Msg("transport closing, dropping outbound event")
	default:
		m.logger.Warn().Str("event_type", string(evt.Type)).Msg("outbound buffer full, dropping event")
	}
}

// dialLocked starts a new transport generation. m.mu must be held.
func (m *Manager) dialLocked() {
	m.gen++
	gen := m.gen
	m.state = StateConnecting

	rawURL, _ := EndpointURL(m.cfg.URL, m.userID, m.organizationID)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel

	go m.run(ctx, cancel, gen, rawURL)
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, gen uint64, rawURL string) {
	tr, err := m.dialer.Dial(ctx, rawURL)
	cancel()
	if err != nil {
		m.transportError(gen, err)
		m.transportClosed(gen)
		return
	}

	l := &link{
		gen:       gen,
		transport: tr,
		out:       make(chan []byte, outboundBuffer),
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		tr.Close()
		return
	}
	m.current = l
	m.state = StateOpen
	m.attempts = 0
	m.cancelDial = nil
	m.mu.Unlock()

	m.notifier.Connected()

	go m.writePump(l)
	m.readPump(l)
}

func (m *Manager) readPump(l *link) {
	defer func() {
		l.close()
		m.transportClosed(l.gen)
	}()

	for {
		_, data, err := l.transport.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
			default:
				if !isNormalClose(err) {
					m.transportError(l.gen, err)
				}
			}
			return
		}

		var evt types.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			m.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if err := evt.Validate(); err != nil {
			m.logger.Warn().Err(err).Msg("dropping invalid frame")
			continue
		}
		if !m.isCurrent(l) {
			return
		}
		m.dispatcher.Dispatch(evt)
	}
}

// isCurrent reports whether l is still the open transport. Frames read from
// a replaced or disconnected link are not dispatched.
func (m *Manager) isCurrent(l *link) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return l.gen == m.gen && m.state == StateOpen
}

func (m *Manager) writePump(l *link) {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.out:
			if err := l.transport.WriteMessage(websocket.TextMessage, data); err != nil {
				m.logger.Warn().Err(err).Msg("write failed")
				l.close()
				return
			}
		}
	}
}

func (m *Manager) transportError(gen uint64, err error) {
	m.mu.Lock()
	stale := gen != m.gen || m.state == StateDisconnected
	m.mu.Unlock()
	if stale {
		return
	}
	m.notifier.TransientError(err)
}

// transportClosed moves to Closed and schedules at most one reconnect.
func (m *Manager) transportClosed(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	m.current = nil
	m.cancelDial = nil

	if m.timer != nil {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.cfg.MaxAttempts {
		attempts := m.attempts
		m.mu.Unlock()
		m.notifier.PermanentFailure(attempts)
		return
	}

	m.attempts++
	delay := m.backoff(m.attempts)
	m.timerSeq++
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(delay, func() { m.reconnect(seq) })
	attempts := m.attempts
	m.mu.Unlock()

	m.logger.Info().Int("attempt", attempts).Dur("delay", delay).Msg("reconnect scheduled")
}

func (m *Manager) reconnect(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.timerSeq {
		return
	}
	m.timer = nil
	if m.state != StateClosed {
		return
	}
	m.dialLocked()
}

// backoff doubles BaseDelay per attempt and stops growing at MaxDelay.
func (m *Manager) backoff(attempt int) time.Duration {
	limit := m.cfg.MaxDelay
	if limit <= 0 {
		limit = config.DefaultMaxDelay
	}
	delay := m.cfg.BaseDelay
	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}
