package data

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/testutil"
)

func newRedisStore(t *testing.T) *RedisJobStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisJobStore(RedisJobStoreOptions{
		Client:       client,
		KeyPrefix:    "test:",
		TimeProvider: NewFixedTimeProvider(testutil.TestTime()),
	})
}

func TestRedisJobStore_RoundTrip(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	job := testutil.NewJob().WithID("job-1").WithProblem("pets get bored").Build()

	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Input, got.Input)
	assert.Equal(t, job.Progress, got.Progress)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Get(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRedisJobStore_UpdateMovesStatusIndex(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	base := testutil.TestTime()
	require.NoError(t, store.Put(ctx, testutil.NewJob().WithID("job-1").CreatedAt(base.Add(-2*time.Hour)).Build()))

	failed := model.JobStatusFailed
	msg := "Classification failed"
	merged, err := store.Update(ctx, model.JobPatch{
		ID:       "job-1",
		Status:   &failed,
		Error:    &msg,
		Progress: map[model.StepName]model.StepState{model.StepClassification: model.StepFailed},
		Results:  map[model.StepName]json.RawMessage{model.StepClassification: json.RawMessage(`{"status":"error"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, merged.Status)
	assert.Equal(t, model.StepPending, merged.Progress[model.StepSegmentation])

	processing, err := store.ListExpired(ctx, model.ExpiredJobsQuery{Before: base, Status: model.JobStatusProcessing})
	require.NoError(t, err)
	assert.Empty(t, processing)

	// The update stamped updated_at with the store clock, so the job is no longer stale.
	stale, err := store.ListExpired(ctx, model.ExpiredJobsQuery{Before: base.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, stale)

	failedIDs, err := store.ListExpired(ctx, model.ExpiredJobsQuery{Before: base.Add(time.Second), Status: model.JobStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, failedIDs)
}

func TestRedisJobStore_ConcurrentUpdates(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testutil.NewJob().WithID("job-1").Build()))

	var wg sync.WaitGroup
	for _, step := range model.AllSteps() {
		wg.Add(1)
		go func(step model.StepName) {
			defer wg.Done()
			_, err := store.Update(ctx, model.JobPatch{
				ID:       "job-1",
				Progress: map[model.StepName]model.StepState{step: model.StepComplete},
			})
			assert.NoError(t, err)
		}(step)
	}
	wg.Wait()

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	for _, step := range model.AllSteps() {
		assert.Equal(t, model.StepComplete, got.Progress[step], step)
	}
}

func TestRedisJobStore_DeleteAndListExpired(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	base := testutil.TestTime()

	require.NoError(t, store.Put(ctx, testutil.NewJob().WithID("old").CreatedAt(base.Add(-48*time.Hour)).Build()))
	require.NoError(t, store.Put(ctx, testutil.NewJob().WithID("new").CreatedAt(base).Build()))

	ids, err := store.ListExpired(ctx, model.ExpiredJobsQuery{Before: base.Add(-24 * time.Hour), Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)

	deleted, err := store.Delete(ctx, "old")
	require.NoError(t, err)
	assert.True(t, deleted)

	ids, err = store.ListExpired(ctx, model.ExpiredJobsQuery{Before: base.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids)

	deleted, err = store.Delete(ctx, "old")
	require.NoError(t, err)
	assert.False(t, deleted)
}
