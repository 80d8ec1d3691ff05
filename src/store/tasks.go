package store

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// Statuses accepted by UpdateTaskStatus.
var Statuses = []string{"todo", "in_progress", "review", "done"}

const taskColumns = `id, organization_id, team_id, sprint_id, epic_id, title, status, priority, assignee_id, updated_at`

// CreateTask inserts a task and publishes task_created once committed.
func (s *Store) CreateTask(ctx context.Context, actorID string, t types.Task) (types.Task, error) {
	if t.OrganizationID == "" || t.Title == "" {
		return types.Task{}, oops.In("store").Errorf("task requires organization and title")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = Statuses[0]
	}
	t.UpdatedAt = s.stamp()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.OrganizationID, t.TeamID, t.SprintID, t.EpicID, t.Title, t.Status, t.Priority, t.AssigneeID,
			t.UpdatedAt.UnixMilli())
		if err != nil {
			return oops.In("store").With("task_id", t.ID).Wrapf(err, "insert task")
		}
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}

	s.hooks.TaskCreated(actorID, t)
	return t, nil
}

// GetTask loads one task.
func (s *Store) GetTask(ctx context.Context, id string) (types.Task, error) {
	return getTask(ctx, s.db, id)
}

// UpdateTask rewrites the editable fields of a task and publishes
// task_updated with change "updated".
func (s *Store) UpdateTask(ctx context.Context, actorID string, t types.Task) (types.Task, error) {
	var updated types.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTask(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		current.Title = t.Title
		current.Priority = t.Priority
		current.AssigneeID = t.AssigneeID
		current.SprintID = t.SprintID
		current.EpicID = t.EpicID
		current.UpdatedAt = s.stamp()

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET title = ?, priority = ?, assignee_id = ?, sprint_id = ?, epic_id = ?, updated_at = ? WHERE id = ?`,
			current.Title, current.Priority, current.AssigneeID, current.SprintID, current.EpicID,
			current.UpdatedAt.UnixMilli(), current.ID)
		if err != nil {
			return oops.In("store").With("task_id", t.ID).Wrapf(err, "update task")
		}
		updated = current
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}

	s.hooks.TaskUpdated(actorID, updated, types.ChangeUpdated)
	return updated, nil
}

// UpdateTaskStatus moves a task to status and publishes task_updated with
// change "status_changed".
func (s *Store) UpdateTaskStatus(ctx context.Context, actorID, id, status string) (types.Task, error) {
	if !slices.Contains(Statuses, status) {
		return types.Task{}, oops.In("store").With("status", status).Errorf("unknown status")
	}

	var updated types.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		current.Status = status
		current.UpdatedAt = s.stamp()
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
			status, current.UpdatedAt.UnixMilli(), id); err != nil {
			return oops.In("store").With("task_id", id).Wrapf(err, "update status")
		}
		updated = current
		return nil
	})
	if err != nil {
		return types.Task{}, err
	}

	s.hooks.TaskUpdated(actorID, updated, types.ChangeStatusChanged)
	return updated, nil
}

// DeleteTask removes a task with its comments and publishes task_deleted.
func (s *Store) DeleteTask(ctx context.Context, actorID, id string) error {
	var deleted types.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return oops.In("store").With("task_id", id).Wrapf(err, "delete task")
		}
		deleted = current
		return nil
	})
	if err != nil {
		return err
	}

	s.hooks.TaskDeleted(actorID, deleted)
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryer, id string) (types.Task, error) {
	var (
		t         types.Task
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id).Scan(
		&t.ID, &t.OrganizationID, &t.TeamID, &t.SprintID, &t.EpicID, &t.Title, &t.Status, &t.Priority,
		&t.AssigneeID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Task{}, oops.In("store").With("task_id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return types.Task{}, oops.In("store").With("task_id", id).Wrapf(err, "load task")
	}
	t.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return t, nil
}
