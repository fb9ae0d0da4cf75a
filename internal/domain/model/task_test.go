package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	allowed := map[TaskStatus][]TaskStatus{
		TaskStatusTodo:       {TaskStatusInProgress, TaskStatusBlocked},
		TaskStatusInProgress: {TaskStatusReview, TaskStatusBlocked},
		TaskStatusReview:     {TaskStatusQA, TaskStatusInProgress},
		TaskStatusQA:         {TaskStatusDone, TaskStatusInProgress, TaskStatusBug},
		TaskStatusBug:        {},
		TaskStatusDone:       {},
		TaskStatusBlocked:    {TaskStatusTodo, TaskStatusInProgress},
	}

	for _, from := range AllTaskStatuses() {
		for _, to := range AllTaskStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, want, from.CanTransitionTo(to))
			})
		}
	}
}

func TestTaskStatus_TerminalStatusesHaveNoExits(t *testing.T) {
	assert.Empty(t, TaskStatusDone.AllowedNext())
	assert.Empty(t, TaskStatusBug.AllowedNext())
}

func TestTaskStatus_UnknownStatus(t *testing.T) {
	unknown := TaskStatus("ARCHIVED")
	assert.False(t, unknown.IsValid())
	assert.False(t, unknown.CanTransitionTo(TaskStatusTodo))
	assert.False(t, TaskStatusTodo.CanTransitionTo(unknown))
}

func TestTaskStatus_AllowedNextReturnsCopy(t *testing.T) {
	next := TaskStatusTodo.AllowedNext()
	next[0] = TaskStatusDone

	assert.True(t, TaskStatusTodo.CanTransitionTo(TaskStatusInProgress))
	assert.False(t, TaskStatusTodo.CanTransitionTo(TaskStatusDone))
}

func TestTask_Transition(t *testing.T) {
	task := Task{ID: 1, Key: "PROJ-7", Status: TaskStatusReview}

	moved, err := task.Transition(TaskStatusQA)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusQA, moved.Status)
	assert.False(t, moved.UpdatedAt.IsZero())
	assert.Equal(t, TaskStatusReview, task.Status, "receiver must not change")
}

func TestTask_Transition_Invalid(t *testing.T) {
	task := Task{ID: 1, Key: "PROJ-7", Status: TaskStatusInProgress}

	got, err := task.Transition(TaskStatusQA)
	require.Error(t, err)
	assert.Equal(t, TaskStatusInProgress, got.Status)
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))

	var transitionErr *InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "PROJ-7", transitionErr.TaskKey)
	assert.Equal(t, TaskStatusInProgress, transitionErr.From)
	assert.Equal(t, TaskStatusQA, transitionErr.To)
}
