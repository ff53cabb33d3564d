package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/observability/statsd"
	"github.com/target/marketlens/internal/testutil"
)

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:         5 * time.Minute,
		ProcessingMaxAge: 30 * time.Minute,
		Retention:        24 * time.Hour,
		BatchSize:        2,
	}
}

// flakyStore fails selected store operations and counts ListExpired calls.
type flakyStore struct {
	core.JobStore

	mu         sync.Mutex
	listCalls  int
	listErr    error
	deleteErr  error
	listFilter func(model.ExpiredJobsQuery) bool
}

func (s *flakyStore) ListExpired(ctx context.Context, q model.ExpiredJobsQuery) ([]string, error) {
	s.mu.Lock()
	s.listCalls++
	err := s.listErr
	filter := s.listFilter
	s.mu.Unlock()
	if err != nil && (filter == nil || filter(q)) {
		return nil, err
	}
	return s.JobStore.ListExpired(ctx, q)
}

func (s *flakyStore) Delete(ctx context.Context, id string) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return s.JobStore.Delete(ctx, id)
}

func (s *flakyStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Store:  newRecordingStore(t),
			Config: testReaperConfig(),
			Logger: slog.Default(),
		})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when store is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "job store is required")
	})

	t.Run("returns error when interval is unset", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Store: newRecordingStore(t)})
		require.Error(t, err)
	})
}

func TestReaperService_Sweep(t *testing.T) {
	// The recording store stamps updated_at with testutil.TestTime.
	now := testutil.TestTime()

	t.Run("fails stale processing jobs and deletes expired ones", func(t *testing.T) {
		stale := testutil.NewJob().WithID("stale").
			WithStep(model.StepClassification, model.StepComplete, map[string]string{"industry": "pets"}).
			WithStep(model.StepSegmentation, model.StepComplete, nil).
			WithStep(model.StepMarketSizing, model.StepProcessingAPI, nil).
			WithStep(model.StepCompetition, model.StepSkipped, nil).
			CreatedAt(now.Add(-2 * time.Hour)).Build()
		fresh := testutil.NewJob().WithID("fresh").CreatedAt(now.Add(-time.Minute)).Build()
		expired := make([]*model.Job, 0, 5)
		for _, id := range []string{"old-1", "old-2", "old-3", "old-4", "old-5"} {
			expired = append(expired, testutil.NewJob().WithID(id).
				WithStatus(model.JobStatusComplete).
				CreatedAt(now.Add(-30*time.Hour)).Build())
		}
		store := newRecordingStore(t, append([]*model.Job{stale, fresh}, expired...)...)
		rec := &statsd.Recorder{}

		svc := MustNewReaperService(ReaperServiceOptions{
			Store:   store,
			Config:  testReaperConfig(),
			Metrics: rec,
			Now:     testutil.FixedTimeFunc(now),
		})

		report, err := svc.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), report.FailedStale)
		assert.Equal(t, int64(5), report.Deleted, "deletes across several batches")

		got := store.load(t, "stale")
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Contains(t, *got.Error, "did not finish within 30m0s")
		assert.Equal(t, model.StepFailed, got.Progress[model.StepMarketSizing])
		assert.Equal(t, model.StepComplete, got.Progress[model.StepClassification], "finished steps keep their state")
		assert.Equal(t, model.StepPending, got.Progress[model.StepRecommendation], "pending steps never ran")
		require.NotNil(t, got.Summary)
		assert.Equal(t, []model.StepName{model.StepClassification, model.StepSegmentation}, got.Summary.CompletedAnalyses)
		assert.Equal(t, []model.StepName{model.StepMarketSizing}, got.Summary.FailedAnalyses)
		assert.Equal(t, []model.StepName{model.StepCompetition}, got.Summary.SkippedAnalyses)
		require.NotNil(t, got.CompletedAt)

		fresh = store.load(t, "fresh")
		assert.Equal(t, model.JobStatusProcessing, fresh.Status)

		for _, job := range expired {
			_, err := store.Get(context.Background(), job.ID)
			assert.Error(t, err, "job %s should be deleted", job.ID)
		}

		cleanup := rec.Named("reaper.cleanup")
		require.Len(t, cleanup, 1)
		assert.Equal(t, "success", cleanup[0].Tags["result"])
		require.Len(t, rec.Named("reaper.last_success_epoch"), 1)

		ops := map[string]string{}
		for _, m := range rec.Named("reaper.cleanup_operation") {
			ops[m.Tags["operation"]] = m.Tags["result"]
		}
		assert.Equal(t, map[string]string{"fail_processing": "success", "delete_expired": "success"}, ops)
	})

	t.Run("retention counts from the last update", func(t *testing.T) {
		ancient := testutil.NewJob().WithID("ancient").CreatedAt(now.Add(-40 * time.Hour)).Build()
		store := newRecordingStore(t, ancient)

		svc := MustNewReaperService(ReaperServiceOptions{
			Store:  store,
			Config: testReaperConfig(),
			Now:    testutil.FixedTimeFunc(now),
		})

		report, err := svc.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, SweepReport{FailedStale: 1, Deleted: 0, Elapsed: report.Elapsed}, report)

		got := store.load(t, "ancient")
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.True(t, now.Equal(got.UpdatedAt))

		later := MustNewReaperService(ReaperServiceOptions{
			Store:  store,
			Config: testReaperConfig(),
			Now:    testutil.FixedTimeFunc(now.Add(25 * time.Hour)),
		})
		report, err = later.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), report.Deleted)
	})

	t.Run("noop sweep reports noop", func(t *testing.T) {
		rec := &statsd.Recorder{}
		svc := MustNewReaperService(ReaperServiceOptions{
			Store:   newRecordingStore(t),
			Config:  testReaperConfig(),
			Metrics: rec,
			Now:     testutil.FixedTimeFunc(now),
		})

		report, err := svc.Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, report.FailedStale+report.Deleted)
		assert.Equal(t, "noop", rec.Named("reaper.cleanup")[0].Tags["result"])
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		expired := testutil.NewJob().WithID("old").WithStatus(model.JobStatusFailed).
			CreatedAt(now.Add(-30 * time.Hour)).Build()
		store := &flakyStore{
			JobStore: newRecordingStore(t, expired),
			listErr:  errors.New("list failed"),
			listFilter: func(q model.ExpiredJobsQuery) bool {
				return q.Status == model.JobStatusProcessing
			},
		}
		rec := &statsd.Recorder{}

		svc := MustNewReaperService(ReaperServiceOptions{
			Store:   store,
			Config:  testReaperConfig(),
			Metrics: rec,
			Now:     testutil.FixedTimeFunc(now),
		})

		report, err := svc.Sweep(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "fail stale processing jobs: list failed")
		assert.Equal(t, int64(1), report.Deleted, "later operations still run")
		assert.Equal(t, "error", rec.Named("reaper.cleanup")[0].Tags["result"])
		assert.Empty(t, rec.Named("reaper.last_success_epoch"))
	})

	t.Run("delete errors are joined", func(t *testing.T) {
		expired := testutil.NewJob().WithID("old").WithStatus(model.JobStatusComplete).
			CreatedAt(now.Add(-30 * time.Hour)).Build()
		store := &flakyStore{JobStore: newRecordingStore(t, expired), deleteErr: errors.New("delete failed")}

		svc := MustNewReaperService(ReaperServiceOptions{
			Store:  store,
			Config: testReaperConfig(),
			Now:    testutil.FixedTimeFunc(now),
		})

		_, err := svc.Sweep(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delete expired jobs: delete failed")
	})

	t.Run("canceled context reports cancellation", func(t *testing.T) {
		store := &flakyStore{JobStore: newRecordingStore(t), listErr: context.Canceled}
		svc := MustNewReaperService(ReaperServiceOptions{
			Store:  store,
			Config: testReaperConfig(),
			Now:    testutil.FixedTimeFunc(now),
		})

		_, err := svc.Sweep(context.Background())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		store := &flakyStore{JobStore: newRecordingStore(t)}
		cfg := testReaperConfig()
		cfg.Interval = 100 * time.Millisecond

		svc := MustNewReaperService(ReaperServiceOptions{Store: store, Config: cfg})

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- svc.Run(ctx)
		}()

		// Wait a bit to ensure at least one sweep runs
		time.Sleep(150 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}

		// Each sweep lists at least once per operation.
		assert.GreaterOrEqual(t, store.calls(), 2)
	})

	t.Run("continues running despite sweep errors", func(t *testing.T) {
		store := &flakyStore{JobStore: newRecordingStore(t), listErr: errors.New("test error")}
		cfg := testReaperConfig()
		cfg.Interval = 50 * time.Millisecond

		svc := MustNewReaperService(ReaperServiceOptions{Store: store, Config: cfg})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := svc.Run(ctx)

		// Should return context deadline exceeded, not the sweep error
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, store.calls(), 4, "sweeps kept running after failures")
	})
}
