package model

import (
	"errors"
	"fmt"
	"time"
)

// TaskStatus represents the position of a task on the board.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusReview     TaskStatus = "REVIEW"
	TaskStatusQA         TaskStatus = "QA"
	TaskStatusBug        TaskStatus = "BUG"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
)

// AllTaskStatuses returns every known task status.
func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusTodo,
		TaskStatusInProgress,
		TaskStatusReview,
		TaskStatusQA,
		TaskStatusBug,
		TaskStatusDone,
		TaskStatusBlocked,
	}
}

// taskTransitions defines the allowed status transitions. BUG and DONE have no
// outbound transitions.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusTodo:       {TaskStatusInProgress, TaskStatusBlocked},
	TaskStatusInProgress: {TaskStatusReview, TaskStatusBlocked},
	TaskStatusReview:     {TaskStatusQA, TaskStatusInProgress},
	TaskStatusQA:         {TaskStatusDone, TaskStatusInProgress, TaskStatusBug},
	TaskStatusBug:        {},
	TaskStatusDone:       {},
	TaskStatusBlocked:    {TaskStatusTodo, TaskStatusInProgress},
}

// AllowedNext returns the statuses reachable from s in one step.
func (s TaskStatus) AllowedNext() []TaskStatus {
	allowed := taskTransitions[s]
	out := make([]TaskStatus, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	for _, t := range taskTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsValid returns true if the status is a known value.
func (s TaskStatus) IsValid() bool {
	_, ok := taskTransitions[s]
	return ok
}

// ErrInvalidStatusTransition matches any InvalidTransitionError via errors.Is.
var ErrInvalidStatusTransition = errors.New("invalid status transition")

// InvalidTransitionError is returned when a task status change is not in the
// transition table.
type InvalidTransitionError struct {
	TaskKey string
	From    TaskStatus
	To      TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid status transition %s -> %s", e.TaskKey, e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidStatusTransition) match.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

// Task is a tracked work item identified by a human-readable key.
type Task struct {
	ID        int64
	Key       string // e.g. "PROJ-123"
	Title     string
	Status    TaskStatus
	UpdatedAt time.Time
}

// Transition validates a move to next and returns the updated task.
func (t Task) Transition(next TaskStatus) (Task, error) {
	if !t.Status.CanTransitionTo(next) {
		return t, &InvalidTransitionError{TaskKey: t.Key, From: t.Status, To: next}
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return t, nil
}
