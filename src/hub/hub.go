package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yashUcr773/task-management-app-sub001/config"
	"github.com/yashUcr773/task-management-app-sub001/src/metrics"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// ErrTooManyConnections is returned by Register when the hub is at capacity.
var ErrTooManyConnections = errors.New("too many connections")

// MessageBridge publishes events to other server instances.
// Defined here to avoid circular imports with the bridge package.
type MessageBridge interface {
	Publish(evt types.Event) error
	Available() bool
}

// Hub owns the connection registry and routes events to matching clients.
type Hub struct {
	registry *Registry

	incoming  chan inbound
	localCast chan types.Event // events from the bridge, no re-publish

	handlers  map[types.EventType]types.MessageHandler
	onConnect []func(types.ClientInfo)
	onDisconn []func(types.ClientInfo)

	policy         string
	maxConnections int
	pingPeriod     time.Duration
	writeWait      time.Duration

	now       func() time.Time
	stampMu   sync.Mutex
	lastStamp time.Time

	bridge   MessageBridge
	metrics  *metrics.Metrics
	mu       sync.RWMutex
	logger   zerolog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

type inbound struct {
	sender *Client
	evt    types.Event
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics records hub activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithInboundPolicy sets how client-originated frames are treated.
func WithInboundPolicy(policy string) Option {
	return func(h *Hub) { h.policy = policy }
}

// WithClock replaces the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithSocketConfig applies capacity and keepalive settings.
func WithSocketConfig(cfg *config.SocketConfig) Option {
	return func(h *Hub) {
		h.maxConnections = cfg.MaxConnections
		h.pingPeriod = cfg.PingPeriod()
		h.writeWait = cfg.WriteWait()
		h.policy = cfg.InboundPolicy
	}
}

// New creates a new Hub instance.
func New(logger zerolog.Logger, opts ...Option) *Hub {
	h := &Hub{
		registry:  NewRegistry(),
		incoming:  make(chan inbound, 256),
		localCast: make(chan types.Event, 256),
		handlers:  make(map[types.EventType]types.MessageHandler),
		policy:    config.InboundScoped,
		now:       time.Now,
		logger:    logger.With().Str("component", "hub").Logger(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetBridge attaches a cross-instance message bridge to the hub.
// When set, published events are also forwarded to other instances.
func (h *Hub) SetBridge(b MessageBridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// BroadcastToLocal delivers an event from the bridge to local clients only.
// It does not re-publish to Redis, preventing infinite loops.
func (h *Hub) BroadcastToLocal(evt types.Event) {
	select {
	case h.localCast <- evt:
	case <-h.done:
	}
}

// Run starts the hub loop for inbound client frames and bridge relays.
// Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case in := <-h.incoming:
			h.handleMessage(in.sender, in.evt)
		case evt := <-h.localCast:
			if evt.Timestamp == "" {
				evt.Timestamp = types.FormatTimestamp(h.stamp())
			}
			h.fanOut(evt)
		case <-h.done:
			return
		}
	}
}

// Stop halts the hub loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a connection to the registry and greets it with a
// connection_established frame. Registering the same transport twice returns
// the client created the first time.
func (h *Hub) Register(conn types.Conn, userID, organizationID string) (*Client, error) {
	c, added, err := h.registry.AddWithin(NewClient(uuid.New().String(), conn, userID, organizationID, h), h.maxConnections)
	if err != nil {
		return nil, err
	}
	if !added {
		return c, nil
	}
	h.metrics.ConnectionOpened()

	h.logger.Info().
		Str("client_id", c.ID).
		Str("user_id", userID).
		Str("organization_id", organizationID).
		Msg("client registered")

	greeting, err := types.NewEvent(types.ConnectionEstablishedPayload{
		UserID:         userID,
		OrganizationID: organizationID,
	}, types.Scope{UserID: userID, OrganizationID: organizationID})
	if err == nil {
		h.sendTo(c, greeting)
	}

	info := c.Info()
	h.mu.RLock()
	callbacks := append([]func(types.ClientInfo){}, h.onConnect...)
	h.mu.RUnlock()
	for _, cb := range callbacks {
		cb(info)
	}
	return c, nil
}

// Unregister removes a client. Calls after the first are no-ops.
func (h *Hub) Unregister(c *Client) {
	if _, ok := h.registry.Remove(c.ID); !ok {
		return
	}
	c.Close()
	h.metrics.ConnectionClosed()
	h.logger.Info().Str("client_id", c.ID).Msg("client unregistered")

	info := c.Info()
	h.mu.RLock()
	callbacks := append([]func(types.ClientInfo){}, h.onDisconn...)
	h.mu.RUnlock()
	for _, cb := range callbacks {
		cb(info)
	}
}
