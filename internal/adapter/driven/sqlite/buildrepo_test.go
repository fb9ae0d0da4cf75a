package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
	"github.com/ericfisherdev/tracklink/internal/domain/port/driven"
)

func TestBuildRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	r := seedRepo(t, db, "octocat/hello-world")
	repo := NewBuildRepo(db)
	ctx := context.Background()

	build, err := repo.Create(ctx, model.Build{RepoID: r.ID, CommitHash: "deadbeef", JobName: "hello-world"})
	require.NoError(t, err)
	assert.Equal(t, model.BuildStatusRunning, build.Status)

	got, err := repo.Get(ctx, build.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "deadbeef", got.CommitHash)
	assert.Nil(t, got.BuildNumber)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.TriggeredBy)

	missing, err := repo.Get(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBuildRepo_Finish(t *testing.T) {
	db := setupTestDB(t)
	r := seedRepo(t, db, "octocat/hello-world")
	repo := NewBuildRepo(db)
	ctx := context.Background()

	build, err := repo.Create(ctx, model.Build{RepoID: r.ID, CommitHash: "deadbeef", JobName: "job"})
	require.NoError(t, err)

	number := 17
	console := "ok"
	finishedAt := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)
	finished, err := repo.Finish(ctx, build.ID, model.BuildResult{
		Status:        model.BuildStatusSuccess,
		BuildNumber:   &number,
		FinishedAt:    &finishedAt,
		ConsoleOutput: &console,
	})
	require.NoError(t, err)
	assert.Equal(t, model.BuildStatusSuccess, finished.Status)
	require.NotNil(t, finished.BuildNumber)
	assert.Equal(t, 17, *finished.BuildNumber)
	require.NotNil(t, finished.FinishedAt)
	assert.True(t, finished.FinishedAt.Equal(finishedAt))
	require.NotNil(t, finished.ConsoleOutput)
	assert.Equal(t, "ok", *finished.ConsoleOutput)
}

func TestBuildRepo_FinishTwice(t *testing.T) {
	db := setupTestDB(t)
	r := seedRepo(t, db, "octocat/hello-world")
	repo := NewBuildRepo(db)
	ctx := context.Background()

	build, err := repo.Create(ctx, model.Build{RepoID: r.ID, CommitHash: "deadbeef", JobName: "job"})
	require.NoError(t, err)

	_, err = repo.Finish(ctx, build.ID, model.BuildResult{Status: model.BuildStatusFailed})
	require.NoError(t, err)

	got, err := repo.Finish(ctx, build.ID, model.BuildResult{Status: model.BuildStatusSuccess})
	assert.ErrorIs(t, err, driven.ErrBuildFinalized)
	assert.Equal(t, model.BuildStatusFailed, got.Status, "first terminal status wins")
}

func TestBuildRepo_FinishMissing(t *testing.T) {
	db := setupTestDB(t)

	_, err := NewBuildRepo(db).Finish(context.Background(), 9999, model.BuildResult{Status: model.BuildStatusSuccess})
	assert.ErrorIs(t, err, driven.ErrBuildNotFound)
}

func TestBuildRepo_ListUnfinished(t *testing.T) {
	db := setupTestDB(t)
	r := seedRepo(t, db, "octocat/hello-world")
	repo := NewBuildRepo(db)
	ctx := context.Background()

	done, err := repo.Create(ctx, model.Build{RepoID: r.ID, CommitHash: "a", JobName: "job"})
	require.NoError(t, err)
	_, err = repo.Finish(ctx, done.ID, model.BuildResult{Status: model.BuildStatusSuccess})
	require.NoError(t, err)

	running, err := repo.Create(ctx, model.Build{RepoID: r.ID, CommitHash: "b", JobName: "job"})
	require.NoError(t, err)

	unfinished, err := repo.ListUnfinished(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, running.ID, unfinished[0].ID)
}

func TestBuildRepo_DeploymentUniquePerBuild(t *testing.T) {
	db := setupTestDB(t)
	r := seedRepo(t, db, "octocat/hello-world")
	repo := NewBuildRepo(db)
	ctx := context.Background()

	build, err := repo.Create(ctx, model.Build{RepoID: r.ID, CommitHash: "a", JobName: "job"})
	require.NoError(t, err)

	d, err := repo.CreateDeployment(ctx, model.Deployment{BuildID: build.ID})
	require.NoError(t, err)
	assert.Equal(t, model.DeploymentStatusSuccess, d.Status)

	_, err = repo.CreateDeployment(ctx, model.Deployment{BuildID: build.ID})
	assert.ErrorIs(t, err, driven.ErrDeploymentExists)

	got, err := repo.GetDeploymentByBuild(ctx, build.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)

	none, err := repo.GetDeploymentByBuild(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, none)
}
