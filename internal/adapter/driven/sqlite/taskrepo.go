package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TaskStore = (*TaskRepo)(nil)

// TaskRepo is the SQLite implementation of the TaskStore port interface.
type TaskRepo struct {
	conn conn
}

// NewTaskRepo creates a new TaskRepo backed by the given DB.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{conn: db.conn()}
}

type taskRow struct {
	ID        int64     `db:"id"`
	Key       string    `db:"task_key"`
	Title     string    `db:"title"`
	Status    string    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r taskRow) toModel() model.Task {
	return model.Task{
		ID:        r.ID,
		Key:       r.Key,
		Title:     r.Title,
		Status:    model.TaskStatus(r.Status),
		UpdatedAt: r.UpdatedAt,
	}
}

// Add inserts a task and returns it with its assigned ID.
func (r *TaskRepo) Add(ctx context.Context, task model.Task) (model.Task, error) {
	const query = `INSERT INTO tasks (task_key, title, status, updated_at) VALUES (?, ?, ?, ?)`

	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	task.UpdatedAt = time.Now().UTC()

	result, err := r.conn.writer.ExecContext(ctx, query, task.Key, task.Title, string(task.Status), task.UpdatedAt)
	if err != nil {
		return model.Task{}, fmt.Errorf("add task %s: %w", task.Key, err)
	}

	task.ID, err = result.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("read task id: %w", err)
	}

	return task, nil
}

// GetByKey retrieves a task by key. Returns nil, nil if it does not exist.
func (r *TaskRepo) GetByKey(ctx context.Context, key string) (*model.Task, error) {
	const query = `SELECT id, task_key, title, status, updated_at FROM tasks WHERE task_key = ?`

	task, err := r.getOne(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", key, err)
	}
	return task, nil
}

// GetByID retrieves a task by ID. Returns nil, nil if it does not exist.
func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	const query = `SELECT id, task_key, title, status, updated_at FROM tasks WHERE id = ?`

	task, err := r.getOne(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// UpdateStatus sets the task status to `to` only while it still reads `from`.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id int64, from, to model.TaskStatus) error {
	const query = `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	result, err := r.conn.writer.ExecContext(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("update task %d status: %w", id, err)
	}
	return requireRow(result, fmt.Errorf("update task %d status %s -> %s: %w", id, from, to, driven.ErrTaskStatusConflict))
}

func (r *TaskRepo) getOne(ctx context.Context, query string, args ...any) (*model.Task, error) {
	var row taskRow
	err := sqlx.GetContext(ctx, r.conn.reader, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	task := row.toModel()
	return &task, nil
}
