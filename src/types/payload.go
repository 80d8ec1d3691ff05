package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Task is the task record carried by task events.
type Task struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	TeamID         string    `json:"teamId,omitempty"`
	SprintID       string    `json:"sprintId,omitempty"`
	EpicID         string    `json:"epicId,omitempty"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority,omitempty"`
	AssigneeID     string    `json:"assigneeId,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Comment is a comment attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is a per-user notification.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task change kinds reported in TaskUpdatedPayload.Change.
const (
	ChangeUpdated       = "updated"
	ChangeStatusChanged = "status_changed"
)

// Payload is implemented by each typed event body. The method ties the
// body to exactly one EventType.
type Payload interface {
	EventType() EventType
}

type TaskCreatedPayload struct {
	Task Task `json:"task"`
}

type TaskUpdatedPayload struct {
	Task   Task   `json:"task"`
	Change string `json:"change"`
}

type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}

type CommentAddedPayload struct {
	Comment Comment `json:"comment"`
}

type NotificationCreatedPayload struct {
	Notification Notification `json:"notification"`
}

type UserJoinedPayload struct {
	UserID string `json:"userId"`
}

type UserLeftPayload struct {
	UserID string `json:"userId"`
}

type ConnectionEstablishedPayload struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId,omitempty"`
}

func (TaskCreatedPayload) EventType() EventType           { return EventTaskCreated }
func (TaskUpdatedPayload) EventType() EventType           { return EventTaskUpdated }
func (TaskDeletedPayload) EventType() EventType           { return EventTaskDeleted }
func (CommentAddedPayload) EventType() EventType          { return EventCommentAdded }
func (NotificationCreatedPayload) EventType() EventType   { return EventNotificationCreated }
func (UserJoinedPayload) EventType() EventType            { return EventUserJoined }
func (UserLeftPayload) EventType() EventType              { return EventUserLeft }
func (ConnectionEstablishedPayload) EventType() EventType { return EventConnectionEstablished }

// ErrUnknownEventType is returned by DecodePayload for types outside the enumeration.
var ErrUnknownEventType = errors.New("unknown event type")

// NewEvent builds an unstamped event from a typed payload.
func NewEvent(p Payload, scope Scope) (Event, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", p.EventType(), err)
	}
	return Event{
		Type:           p.EventType(),
		Payload:        data,
		UserID:         scope.UserID,
		OrganizationID: scope.OrganizationID,
		TeamID:         scope.TeamID,
	}, nil
}

// DecodePayload unmarshals the event body into the variant selected by its type.
func DecodePayload(e Event) (Payload, error) {
	var p Payload
	switch e.Type {
	case EventTaskCreated:
		p = &TaskCreatedPayload{}
	case EventTaskUpdated:
		p = &TaskUpdatedPayload{}
	case EventTaskDeleted:
		p = &TaskDeletedPayload{}
	case EventCommentAdded:
		p = &CommentAddedPayload{}
	case EventNotificationCreated:
		p = &NotificationCreatedPayload{}
	case EventUserJoined:
		p = &UserJoinedPayload{}
	case EventUserLeft:
		p = &UserLeftPayload{}
	case EventConnectionEstablished:
		p = &ConnectionEstablishedPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if len(e.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s has no payload", ErrInvalidEvent, e.Type)
	}
	if err := json.Unmarshal(e.Payload, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return p, nil
}
