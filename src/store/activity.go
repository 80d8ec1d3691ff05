package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// AddComment attaches a comment to an existing task and publishes
// comment_added into the task's organization.
func (s *Store) AddComment(ctx context.Context, actorID, taskID, content string) (types.Comment, error) {
	if content == "" {
		return types.Comment{}, oops.In("store").Errorf("comment content is required")
	}
	c := types.Comment{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		AuthorID:  actorID,
		Content:   content,
		CreatedAt: s.stamp(),
	}

	var task types.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if task, err = getTask(ctx, tx, taskID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO comments (id, task_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.TaskID, c.AuthorID, c.Content, c.CreatedAt.UnixMilli()); err != nil {
			return oops.In("store").With("task_id", taskID).Wrapf(err, "insert comment")
		}
		return nil
	})
	if err != nil {
		return types.Comment{}, err
	}

	s.hooks.CommentAdded(actorID, task, c)
	return c, nil
}

// CreateNotification stores a notification for n.UserID and publishes
// notification_created into organizationID.
func (s *Store) CreateNotification(ctx context.Context, actorID, organizationID string, n types.Notification) (types.Notification, error) {
	if organizationID == "" || n.UserID == "" || n.Title == "" {
		return types.Notification{}, oops.In("store").Errorf("notification requires organization, user and title")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = s.stamp()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO notifications (id, user_id, organization_id, kind, title, message, read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.UserID, organizationID, n.Kind, n.Title, n.Message, n.Read, n.CreatedAt.UnixMilli())
		if err != nil {
			return oops.In("store").With("notification_id", n.ID).Wrapf(err, "insert notification")
		}
		return nil
	})
	if err != nil {
		return types.Notification{}, err
	}

	s.hooks.NotificationCreated(actorID, organizationID, n)
	return n, nil
}
