package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseRepo_AcquireExclusive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaseRepo(db)
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, "reconcile", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Acquire(ctx, "reconcile", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "unexpired lease held by another holder")

	ok, err = repo.Acquire(ctx, "reconcile", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "holder may renew")
}

func TestLeaseRepo_ExpiredLeaseTakenOver(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaseRepo(db)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	ok, err := repo.Acquire(ctx, "reconcile", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = repo.Acquire(ctx, "reconcile", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseRepo_Release(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaseRepo(db)
	ctx := context.Background()

	ok, err := repo.Acquire(ctx, "reconcile", "a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Release(ctx, "reconcile", "b"), "releasing a lease you do not hold is a no-op")
	ok, err = repo.Acquire(ctx, "reconcile", "b", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Release(ctx, "reconcile", "a"))
	ok, err = repo.Acquire(ctx, "reconcile", "b", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}
