// Package store persists tasks, comments and notifications in SQLite and
// reports each committed mutation to the realtime hooks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// MutationHooks receives committed mutations. *producer.Hooks implements it.
type MutationHooks interface {
	TaskCreated(actorID string, task types.Task)
	TaskUpdated(actorID string, task types.Task, change string)
	TaskDeleted(actorID string, task types.Task)
	CommentAdded(actorID string, task types.Task, comment types.Comment)
	NotificationCreated(actorID, organizationID string, n types.Notification)
}

// Store is the SQLite-backed mutation source.
type Store struct {
	db    *sql.DB
	hooks MutationHooks
	now   func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, hooks MutationHooks) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.In("store").With("path", path).Wrapf(err, "open db")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, oops.In("store").Wrapf(err, "exec %q", pragma)
		}
	}

	s := &Store{db: db, hooks: hooks, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			team_id         TEXT NOT NULL DEFAULT '',
			sprint_id       TEXT NOT NULL DEFAULT '',
			epic_id         TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'todo',
			priority        TEXT NOT NULL DEFAULT '',
			assignee_id     TEXT NOT NULL DEFAULT '',
			updated_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			author_id  TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			organization_id TEXT NOT NULL DEFAULT '',
			kind            TEXT NOT NULL DEFAULT '',
			title           TEXT NOT NULL,
			message         TEXT NOT NULL DEFAULT '',
			read            INTEGER NOT NULL DEFAULT 0,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_org ON tasks(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return oops.In("store").Wrapf(err, "migrate")
		}
	}
	return nil
}

// withTx runs fn in a transaction. A nil return means the transaction committed.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.In("store").Wrapf(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return oops.In("store").Wrapf(err, "commit")
	}
	return nil
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
