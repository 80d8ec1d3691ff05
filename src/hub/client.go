package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID             string
	UserID         string
	OrganizationID string

	conn        types.Conn
	hub         *Hub
	send        chan []byte
	connectedAt time.Time
	done        chan struct{}
	closeOnce   sync.Once
}

// NewClient creates a new WebSocket client wrapper.
func NewClient(id string, conn types.Conn, userID, organizationID string, h *Hub) *Client {
	return &Client{
		ID:             id,
		UserID:         userID,
		OrganizationID: organizationID,
		conn:           conn,
		hub:            h,
		send:           make(chan []byte, 256),
		connectedAt:    h.now(),
		done:           make(chan struct{}),
	}
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	return types.ClientInfo{
		ID:             c.ID,
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		ConnectedAt:    c.connectedAt,
	}
}

// ReadPump reads frames from the WebSocket and routes them to the hub.
// It returns when the transport closes or fails, and unregisters the client
// on the way out; close and error share this path.
func (c *Client) ReadPump() {
	defer c.hub.Unregister(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("read failed")
			}
			return
		}

		var evt types.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			c.hub.logger.Warn().Err(err).Str("client_id", c.ID).Msg("dropping malformed frame")
			c.hub.metrics.Rejected("malformed")
			continue
		}
		if err := evt.Validate(); err != nil {
			c.hub.logger.Warn().Err(err).Str("client_id", c.ID).Msg("dropping invalid frame")
			c.hub.metrics.Rejected("invalid")
			continue
		}

		select {
		case c.hub.incoming <- inbound{sender: c, evt: evt}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump writes queued frames to the WebSocket and keeps it alive with pings.
func (c *Client) WritePump() {
	defer c.conn.Close()

	var ping <-chan time.Time
	if c.hub.pingPeriod > 0 {
		ticker := time.NewTicker(c.hub.pingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.hub.logger.Debug().Err(err).Str("client_id", c.ID).Msg("write failed")
				return
			}
		case <-ping:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if c.hub.writeWait > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(messageType, data)
}

// enqueue hands a frame to the write pump without blocking. It reports false
// when the client is closed or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close signals the client to stop its pumps and closes the transport.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
