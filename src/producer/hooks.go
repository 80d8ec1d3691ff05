// Package producer feeds domain events into the realtime hub, either from
// committed mutations or from a synthetic generator.
package producer

import (
	"github.com/rs/zerolog"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// Publisher fans a typed payload out within a scope. *service.Service implements it.
type Publisher interface {
	Publish(payload types.Payload, scope types.Scope) error
}

// Hooks turns committed mutations into events. Each method must be called
// only after the mutation is durable.
type Hooks struct {
	pub    Publisher
	logger zerolog.Logger
}

// NewHooks creates mutation hooks publishing through pub.
func NewHooks(pub Publisher, logger zerolog.Logger) *Hooks {
	return &Hooks{
		pub:    pub,
		logger: logger.With().Str("component", "mutation-hooks").Logger(),
	}
}

func (h *Hooks) TaskCreated(actorID string, task types.Task) {
	h.publish(types.TaskCreatedPayload{Task: task}, taskScope(actorID, task))
}

func (h *Hooks) TaskUpdated(actorID string, task types.Task, change string) {
	h.publish(types.TaskUpdatedPayload{Task: task, Change: change}, taskScope(actorID, task))
}

func (h *Hooks) TaskDeleted(actorID string, task types.Task) {
	h.publish(types.TaskDeletedPayload{TaskID: task.ID}, taskScope(actorID, task))
}

// CommentAdded scopes the comment by the task it belongs to.
func (h *Hooks) CommentAdded(actorID string, task types.Task, comment types.Comment) {
	h.publish(types.CommentAddedPayload{Comment: comment}, taskScope(actorID, task))
}

func (h *Hooks) NotificationCreated(actorID, organizationID string, n types.Notification) {
	h.publish(types.NotificationCreatedPayload{Notification: n}, types.Scope{
		UserID:         actorID,
		OrganizationID: organizationID,
	})
}

// publish never reports failure to the caller; the mutation has already committed.
func (h *Hooks) publish(p types.Payload, scope types.Scope) {
	if err := h.pub.Publish(p, scope); err != nil {
		h.logger.Error().
			Err(err).
			Str("type", string(p.EventType())).
			Str("organization_id", scope.OrganizationID).
			Msg("failed to publish mutation event")
	}
}

func taskScope(actorID string, task types.Task) types.Scope {
	return types.Scope{
		UserID:         actorID,
		OrganizationID: task.OrganizationID,
		TeamID:         task.TeamID,
	}
}
