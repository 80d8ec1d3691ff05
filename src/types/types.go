package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType identifies the kind of update carried by an Event.
type EventType string

const (
	EventTaskUpdated           EventType = "task_updated"
	EventTaskCreated           EventType = "task_created"
	EventTaskDeleted           EventType = "task_deleted"
	EventCommentAdded          EventType = "comment_added"
	EventNotificationCreated   EventType = "notification_created"
	EventUserJoined            EventType = "user_joined"
	EventUserLeft              EventType = "user_left"
	EventConnectionEstablished EventType = "connection_established"
)

// Known reports whether t is one of the enumerated event types.
func (t EventType) Known() bool {
	switch t {
	case EventTaskUpdated, EventTaskCreated, EventTaskDeleted, EventCommentAdded,
		EventNotificationCreated, EventUserJoined, EventUserLeft, EventConnectionEstablished:
		return true
	}
	return false
}

// TimestampLayout is the ISO-8601 form used for server-assigned timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Event is the wire record exchanged over the realtime socket.
// Payload is kept raw so unknown event types pass through untouched.
type Event struct {
	Type           EventType       `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	UserID         string          `json:"userId,omitempty"`
	OrganizationID string          `json:"organizationId,omitempty"`
	TeamID         string          `json:"teamId,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
}

// ErrInvalidEvent is returned by Validate for frames that do not match the wire shape.
var ErrInvalidEvent = errors.New("invalid event")

// Validate checks the wire shape of an event.
func (e Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}
	if len(e.Payload) > 0 && !json.Valid(e.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidEvent)
	}
	return nil
}

// Scope carries attribution and routing fields for a new event.
type Scope struct {
	UserID         string
	OrganizationID string
	TeamID         string
}

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId,omitempty"`
	ConnectedAt    time.Time `json:"connectedAt"`
}

// MessageHandler handles inbound client events of one type.
type MessageHandler func(sender ClientInfo, evt Event) error

// Conn abstracts a WebSocket connection for testability.
// *websocket.Conn from fasthttp/websocket satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}
