package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tracklink/internal/application"
	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

func TestTaskService_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    model.TaskStatus
		to      model.TaskStatus
		wantErr bool
	}{
		{name: "todo to in progress", from: model.TaskStatusTodo, to: model.TaskStatusInProgress},
		{name: "qa to bug", from: model.TaskStatusQA, to: model.TaskStatusBug},
		{name: "blocked to todo", from: model.TaskStatusBlocked, to: model.TaskStatusTodo},
		{name: "todo to done is illegal", from: model.TaskStatusTodo, to: model.TaskStatusDone, wantErr: true},
		{name: "bug is terminal", from: model.TaskStatusBug, to: model.TaskStatusTodo, wantErr: true},
		{name: "done is terminal", from: model.TaskStatusDone, to: model.TaskStatusInProgress, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.task(t, "PROJ-1", tt.from)
			svc := application.NewTaskService(env.tasks, nil)

			got, err := svc.Transition(context.Background(), "PROJ-1", tt.to)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
				var invalid *model.InvalidTransitionError
				assert.ErrorAs(t, err, &invalid)
				assert.Equal(t, tt.from, env.taskStatus(t, "PROJ-1"))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			assert.Equal(t, tt.to, env.taskStatus(t, "PROJ-1"))
		})
	}
}

func TestTaskService_Transition_UnknownTask(t *testing.T) {
	env := newTestEnv(t)
	svc := application.NewTaskService(env.tasks, nil)

	_, err := svc.Transition(context.Background(), "PROJ-404", model.TaskStatusInProgress)
	assert.ErrorIs(t, err, application.ErrTaskNotFound)
}

func TestTaskService_Transition_UnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	env.task(t, "PROJ-1", model.TaskStatusTodo)
	svc := application.NewTaskService(env.tasks, nil)

	_, err := svc.Transition(context.Background(), "PROJ-1", "ARCHIVED")
	assert.ErrorIs(t, err, application.ErrUnknownTaskStatus)
	assert.Equal(t, model.TaskStatusTodo, env.taskStatus(t, "PROJ-1"))
}
