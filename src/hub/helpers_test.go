package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// mockConn implements types.Conn for testing without a real WebSocket.
type mockConn struct {
	mu       sync.Mutex
	written  [][]byte
	readCh   chan []byte
	closed   bool
	closedCh chan struct{}
	writeErr error
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-m.readCh:
		return websocket.TextMessage, data, nil
	case <-m.closedCh:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	if messageType == websocket.TextMessage {
		m.written = append(m.written, append([]byte(nil), data...))
	}
	return nil
}

func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closedCh)
	}
	return nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// events decodes every text frame written so far.
func (m *mockConn) events(t *testing.T) []types.Event {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Event, 0, len(m.written))
	for _, frame := range m.written {
		var evt types.Event
		require.NoError(t, json.Unmarshal(frame, &evt))
		out = append(out, evt)
	}
	return out
}

// eventsOfType returns the decoded frames of one type.
func (m *mockConn) eventsOfType(t *testing.T, et types.EventType) []types.Event {
	t.Helper()
	var out []types.Event
	for _, evt := range m.events(t) {
		if evt.Type == et {
			out = append(out, evt)
		}
	}
	return out
}

// send pushes a raw inbound frame as if the peer had written it.
func (m *mockConn) send(frame string) {
	m.readCh <- []byte(frame)
}

var errBrokenPipe = errors.New("broken pipe")

// newTestHub creates a hub and starts its loop in a goroutine.
func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := New(zerolog.Nop(), opts...)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// registerClient registers a mock connection and starts its write pump.
func registerClient(t *testing.T, h *Hub, userID, orgID string) (*Client, *mockConn) {
	t.Helper()
	conn := newMockConn()
	client, err := h.Register(conn, userID, orgID)
	require.NoError(t, err)
	go client.WritePump()
	t.Cleanup(func() { h.Unregister(client) })
	return client, conn
}

// startReading runs the client's read pump in the background.
func startReading(c *Client) {
	go c.ReadPump()
}

func taskEvent(t *testing.T, orgID string) types.Event {
	t.Helper()
	evt, err := types.NewEvent(types.TaskUpdatedPayload{
		Task:   types.Task{ID: "task-1", OrganizationID: orgID, Title: "Write docs", Status: "todo"},
		Change: types.ChangeUpdated,
	}, types.Scope{UserID: "u-actor", OrganizationID: orgID})
	require.NoError(t, err)
	return evt
}

const settle = 50 * time.Millisecond

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}
