// Package store persists capture groups and their per-task state in an
// embedded sqlite database, backing the progress and download endpoints.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marqueewinq/shooter/api/schemas"
)

// ErrGroupNotFound reports a progress or download query for an unknown group.
var ErrGroupNotFound = errors.New("capture group not found")

// Task states.
const (
	StatePending = "PENDING"
	StateSuccess = "SUCCESS"
	StateFailure = "FAILURE"
)

const schema = `
CREATE TABLE IF NOT EXISTS groups (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	group_id    TEXT NOT NULL REFERENCES groups(id),
	url         TEXT NOT NULL,
	state       TEXT NOT NULL,
	output_path TEXT,
	error       TEXT,
	updated_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_group ON tasks(group_id);
`

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// sqlite allows one writer; serialize access through a single conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateGroup registers a group and its tasks, all pending.
func (s *Store) CreateGroup(ctx context.Context, groupID string, tasks map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `INSERT INTO groups (id, created_at) VALUES (?, ?)`, groupID, now); err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	for taskID, url := range tasks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, group_id, url, state, updated_at) VALUES (?, ?, ?, ?, ?)`,
			taskID, groupID, url, StatePending, now); err != nil {
			return fmt.Errorf("inserting task: %w", err)
		}
	}
	return tx.Commit()
}

// CompleteTask marks a task successful and records its output directory.
func (s *Store) CompleteTask(ctx context.Context, taskID, outputPath string) error {
	return s.finish(ctx, taskID, StateSuccess, outputPath, "")
}

// FailTask marks a task failed with its error message.
func (s *Store) FailTask(ctx context.Context, taskID, message string) error {
	return s.finish(ctx, taskID, StateFailure, "", message)
}

func (s *Store) finish(ctx context.Context, taskID, state, outputPath, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, output_path = ?, error = ?, updated_at = ? WHERE id = ?`,
		state, outputPath, message, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown task %q", taskID)
	}
	return nil
}

// GroupProgress aggregates the group's task states.
func (s *Store) GroupProgress(ctx context.Context, groupID string) (schemas.TaskProgress, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups WHERE id = ?`, groupID).Scan(&exists)
	if err != nil {
		return schemas.TaskProgress{}, err
	}
	if exists == 0 {
		return schemas.TaskProgress{}, ErrGroupNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM tasks WHERE group_id = ? GROUP BY state`, groupID)
	if err != nil {
		return schemas.TaskProgress{}, err
	}
	defer rows.Close()

	var completed, failed, pending int
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return schemas.TaskProgress{}, err
		}
		switch state {
		case StateSuccess:
			completed = count
		case StateFailure:
			failed = count
		default:
			pending = count
		}
	}
	if err := rows.Err(); err != nil {
		return schemas.TaskProgress{}, err
	}
	return schemas.NewTaskProgress(completed, failed, pending), nil
}

// GroupOutputPaths lists the output directories of the group's successful
// tasks, for the archive download.
func (s *Store) GroupOutputPaths(ctx context.Context, groupID string) ([]string, error) {
	if _, err := s.GroupProgress(ctx, groupID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT output_path FROM tasks WHERE group_id = ? AND state = ? AND output_path != ''`, groupID, StateSuccess)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
