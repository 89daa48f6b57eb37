package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/storage"
)

func testRun(kind string) *domain.PullRun {
	return &domain.PullRun{
		Kind:       kind,
		PolicyName: "imputed",
		StartDate:  time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		StartedAt:  time.Now().UTC(),
		Status:     domain.PullStatusRunning,
	}
}

func TestPullRunStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPullRunStore(pool)
	ctx := context.Background()

	id, err := store.Insert(ctx, testRun(domain.PullKindStock))
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	run, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PullKindStock, run.Kind)
	assert.Equal(t, "imputed", run.PolicyName)
	assert.Equal(t, domain.PullStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)
	assert.Nil(t, run.ErrorText)
}

func TestPullRunStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPullRunStore(pool)

	_, err := store.Insert(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Insert(context.Background(), &domain.PullRun{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestPullRunStore_CompleteAndFail(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPullRunStore(pool)
	ctx := context.Background()

	id, err := store.Insert(ctx, testRun(domain.PullKindStock))
	require.NoError(t, err)

	require.NoError(t, store.Complete(ctx, id, 4096))

	run, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PullStatusCompleted, run.Status)
	assert.Equal(t, int64(4096), run.RecordCount)
	require.NotNil(t, run.CompletedAt)

	id2, err := store.Insert(ctx, testRun(domain.PullKindIndex))
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, id2, "wrds: connection refused"))

	run2, err := store.GetByID(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, domain.PullStatusFailed, run2.Status)
	require.NotNil(t, run2.ErrorText)
	assert.Equal(t, "wrds: connection refused", *run2.ErrorText)
}

func TestPullRunStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPullRunStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, 999999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Complete(ctx, 999999, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Fail(ctx, 999999, "boom")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPullRunStore_GetLastCompleted(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPullRunStore(pool)
	ctx := context.Background()

	_, err := store.GetLastCompleted(ctx, domain.PullKindStock)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	id1, err := store.Insert(ctx, testRun(domain.PullKindStock))
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, id1, 10))

	id2, err := store.Insert(ctx, testRun(domain.PullKindStock))
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, id2, 20))

	run, err := store.GetLastCompleted(ctx, domain.PullKindStock)
	require.NoError(t, err)
	assert.Equal(t, id2, run.ID)
	assert.Equal(t, int64(20), run.RecordCount)
}

func TestPullRunStore_GetRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPullRunStore(pool)
	ctx := context.Background()

	for range [4]struct{}{} {
		_, err := store.Insert(ctx, testRun(domain.PullKindCDS))
		require.NoError(t, err)
	}

	runs, err := store.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, !runs[0].StartedAt.Before(runs[1].StartedAt), "runs should be newest first")
}
