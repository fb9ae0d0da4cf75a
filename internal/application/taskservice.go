package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

var (
	// ErrTaskNotFound is returned when a task key does not resolve.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnknownTaskStatus is returned for a status outside the board's set.
	ErrUnknownTaskStatus = errors.New("unknown task status")
)

// TaskService applies status changes through the transition table. It is the
// only path by which task status is written, for manual edits and automated
// cascades alike.
type TaskService struct {
	tasks  driven.TaskStore
	logger *slog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks driven.TaskStore, logger *slog.Logger) *TaskService {
	return &TaskService{tasks: tasks, logger: orDefault(logger)}
}

// Transition moves the task identified by key to next. It returns an
// *model.InvalidTransitionError when the move is not in the transition table
// and driven.ErrTaskStatusConflict when the task changed concurrently.
func (s *TaskService) Transition(ctx context.Context, key string, next model.TaskStatus) (model.Task, error) {
	if !next.IsValid() {
		return model.Task{}, fmt.Errorf("%q: %w", next, ErrUnknownTaskStatus)
	}

	task, err := s.tasks.GetByKey(ctx, key)
	if err != nil {
		return model.Task{}, err
	}
	if task == nil {
		return model.Task{}, fmt.Errorf("task %s: %w", key, ErrTaskNotFound)
	}

	moved, err := transitionTask(ctx, s.tasks, *task, next)
	if err != nil {
		return *task, err
	}

	s.logger.Info("task status changed", "task", key, "from", task.Status, "to", next)
	return moved, nil
}

// transitionTask validates and persists one status move using store, which
// may be bound to an enclosing transaction.
func transitionTask(ctx context.Context, store driven.TaskStore, task model.Task, next model.TaskStatus) (model.Task, error) {
	moved, err := task.Transition(next)
	if err != nil {
		return task, err
	}

	if err := store.UpdateStatus(ctx, task.ID, task.Status, next); err != nil {
		return task, err
	}

	return moved, nil
}

// cascadeTransition is transitionTask for automated side effects: an illegal
// move or a lost race is logged and reported as not applied. Other errors
// are returned.
func cascadeTransition(ctx context.Context, logger *slog.Logger, store driven.TaskStore, task model.Task, next model.TaskStatus, cause string) (bool, error) {
	_, err := transitionTask(ctx, store, task, next)
	switch {
	case err == nil:
		logger.Info("task status cascaded", "task", task.Key, "from", task.Status, "to", next, "cause", cause)
		return true, nil
	case errors.Is(err, model.ErrInvalidStatusTransition), errors.Is(err, driven.ErrTaskStatusConflict):
		logger.Warn("task status cascade skipped", "task", task.Key, "from", task.Status, "to", next, "cause", cause, "error", err)
		return false, nil
	default:
		return false, err
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
