package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

func TestTaskRepo_AddAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTaskRepo(db)
	ctx := context.Background()

	task, err := repo.Add(ctx, model.Task{Key: "PROJ-7", Title: "Login"})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusTodo, task.Status)

	byKey, err := repo.GetByKey(ctx, "PROJ-7")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, task.ID, byKey.ID)

	byID, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Login", byID.Title)

	missing, err := repo.GetByKey(ctx, "PROJ-999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTaskRepo_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	task := seedTask(t, db, "PROJ-7", model.TaskStatusReview)
	repo := NewTaskRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.UpdateStatus(ctx, task.ID, model.TaskStatusReview, model.TaskStatusQA))

	got, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQA, got.Status)
}

func TestTaskRepo_UpdateStatus_Conflict(t *testing.T) {
	db := setupTestDB(t)
	task := seedTask(t, db, "PROJ-7", model.TaskStatusQA)
	repo := NewTaskRepo(db)
	ctx := context.Background()

	err := repo.UpdateStatus(ctx, task.ID, model.TaskStatusReview, model.TaskStatusQA)
	assert.ErrorIs(t, err, driven.ErrTaskStatusConflict)

	got, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQA, got.Status)
}

func TestTaskRepo_RejectsUnknownStatus(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewTaskRepo(db).Add(context.Background(), model.Task{Key: "PROJ-1", Status: "ARCHIVED"})
	assert.Error(t, err, "status CHECK constraint")
}
