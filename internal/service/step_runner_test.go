package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/observability/statsd"
	"github.com/target/marketlens/internal/testutil"
)

func newTestRunner(t *testing.T, store *recordingStore, jobID string, sink statsd.Sink) *StepRunner {
	t.Helper()
	clock := testutil.NewClock(testutil.TestTime())
	runner, err := NewStepRunner(StepRunnerOptions{
		Store:   store,
		JobID:   jobID,
		Metrics: sink,
		Now: func() time.Time {
			clock.Advance(time.Second)
			return clock.Now()
		},
	})
	require.NoError(t, err)
	return runner
}

func TestNewStepRunner_Validation(t *testing.T) {
	_, err := NewStepRunner(StepRunnerOptions{JobID: "job"})
	require.Error(t, err)

	_, err = NewStepRunner(StepRunnerOptions{Store: newRecordingStore(t)})
	require.Error(t, err)
}

func TestStepRunner_RunSuccess(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	rec := &statsd.Recorder{}
	runner := newTestRunner(t, store, job.ID, rec)

	var seenWhileRunning model.StepState
	out, err := runner.Run(context.Background(), model.StepClassification, func(ctx context.Context) (any, error) {
		seenWhileRunning = store.load(t, job.ID).Progress[model.StepClassification]
		return &model.Classification{Industry: "pet care", Confidence: 0.9}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, model.StepProcessing, seenWhileRunning, "processing marker is persisted before the step runs")
	assert.Equal(t, []model.StepState{model.StepProcessing, model.StepComplete}, store.statesFor(model.StepClassification))
	assert.Equal(t, model.StepComplete, runner.State(model.StepClassification))

	stored := store.load(t, job.ID)
	got := decodeResult[model.Classification](t, stored, model.StepClassification)
	assert.Equal(t, "pet care", got.Industry)

	steps := rec.Named("analysis.step")
	require.Len(t, steps, 1)
	assert.Equal(t, "success", steps[0].Tags["result"])
	assert.Equal(t, "classification", steps[0].Tags["step"])
	require.Len(t, rec.Named("analysis.step_duration"), 1)
}

func TestStepRunner_RunFailure(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	rec := &statsd.Recorder{}
	runner := newTestRunner(t, store, job.ID, rec)

	cause := apperrors.Unavailable("research service is down")
	_, err := runner.Run(context.Background(), model.StepCompetition, func(context.Context) (any, error) {
		return nil, cause
	})
	require.ErrorIs(t, err, cause)

	assert.Equal(t, model.StepFailed, runner.State(model.StepCompetition))
	assert.ErrorIs(t, runner.Err(model.StepCompetition), cause)

	result := decodeResult[model.StepErrorResult](t, store.load(t, job.ID), model.StepCompetition)
	assert.Equal(t, model.ResultStatusError, result.Status)
	assert.Equal(t, "unavailable", result.ErrorCode)
	assert.Equal(t, MsgServiceUnavailable, result.DisplayMessage)
	assert.Contains(t, result.Error, "research service is down")

	steps := rec.Named("analysis.step")
	require.Len(t, steps, 1)
	assert.Equal(t, "error", steps[0].Tags["result"])
	assert.Equal(t, "unavailable", steps[0].Tags["error_class"])
}

func TestStepRunner_RecoversPanic(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	runner := newTestRunner(t, store, job.ID, nil)

	_, err := runner.Run(context.Background(), model.StepRecommendation, func(context.Context) (any, error) {
		panic("nil map write")
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "nil map write")

	result := decodeResult[model.StepErrorResult](t, store.load(t, job.ID), model.StepRecommendation)
	assert.Equal(t, "internal", result.ErrorCode)
	assert.Equal(t, MsgGenericFailure, result.DisplayMessage)
}

func TestRunStep_NilResultFails(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	runner := newTestRunner(t, store, job.ID, nil)

	out, err := runStep(context.Background(), runner, model.StepSegmentation,
		func(context.Context) (*model.Segmentation, error) { return nil, nil })
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, model.StepFailed, runner.State(model.StepSegmentation))
}

func TestRunStep_TypedResult(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	runner := newTestRunner(t, store, job.ID, nil)

	out, err := runStep(context.Background(), runner, model.StepSegmentation,
		func(context.Context) (*model.Segmentation, error) {
			return &model.Segmentation{PrimarySegments: []model.Segment{{Name: "Dog owners", Percentage: 40}}}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dog owners"}, out.SegmentNames())
}

func TestStepRunner_Skip(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	rec := &statsd.Recorder{}
	runner := newTestRunner(t, store, job.ID, rec)

	ctx := context.Background()

	require.NoError(t, runner.Skip(ctx, model.StepProblemValidation,
		apperrors.ValidationField("problem_statement", "no problem statement was supplied")))
	require.NoError(t, runner.Skip(ctx, model.StepCompetition,
		apperrors.Unavailable("competition analysis service is not configured")))

	assert.Equal(t, model.StepSkipped, runner.State(model.StepProblemValidation))
	stored := store.load(t, job.ID)

	missing := decodeResult[model.StepSkippedResult](t, stored, model.StepProblemValidation)
	assert.Equal(t, model.ResultStatusSkipped, missing.Status)
	assert.Equal(t, "no problem statement was supplied", missing.Reason)
	assert.Equal(t, MsgSkippedMissingInput, missing.DisplayMessage)

	unconfigured := decodeResult[model.StepSkippedResult](t, stored, model.StepCompetition)
	assert.Equal(t, "competition analysis service is not configured", unconfigured.Reason)
	assert.Equal(t, MsgServiceUnavailable, unconfigured.DisplayMessage)

	steps := rec.Named("analysis.step")
	require.Len(t, steps, 2)
	assert.Equal(t, "skipped", steps[0].Tags["result"])
	assert.Empty(t, rec.Named("analysis.step_duration"))
}

func TestStepRunner_PersistFailureDoesNotAbort(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	store.failWrite = true
	runner := newTestRunner(t, store, job.ID, nil)

	out, err := runner.Run(context.Background(), model.StepClassification, func(context.Context) (any, error) {
		return &model.Classification{Industry: "fintech"}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, model.StepComplete, runner.State(model.StepClassification))
}

func TestStepRunner_PersistsAfterCancellation(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	runner := newTestRunner(t, store, job.ID, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := runner.Run(ctx, model.StepCompetition, func(ctx context.Context) (any, error) {
		cancel()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	stored := store.load(t, job.ID)
	assert.Equal(t, model.StepFailed, stored.Progress[model.StepCompetition])
	result := decodeResult[model.StepErrorResult](t, stored, model.StepCompetition)
	assert.Equal(t, "canceled", result.ErrorCode)
}

func TestStepRunner_Summary(t *testing.T) {
	job := testutil.NewJob().Build()
	store := newRecordingStore(t, job)
	runner := newTestRunner(t, store, job.ID, nil)
	ctx := context.Background()

	ok := func(context.Context) (any, error) { return map[string]string{"ok": "yes"}, nil }
	fail := func(context.Context) (any, error) { return nil, errors.New("boom") }

	_, _ = runner.Run(ctx, model.StepClassification, ok)
	_, _ = runner.Run(ctx, model.StepSegmentation, ok)
	_, _ = runner.Run(ctx, model.StepCompetition, fail)
	_ = runner.Skip(ctx, model.StepProblemValidation, apperrors.Unavailable("not configured"))
	_ = runner.Transition(ctx, model.StepMarketSizing, model.StepProcessingAPI)

	summary := runner.Summary()
	assert.Equal(t, []model.StepName{model.StepClassification, model.StepSegmentation}, summary.CompletedAnalyses)
	assert.Equal(t, []model.StepName{model.StepCompetition, model.StepMarketSizing}, summary.FailedAnalyses)
	assert.Equal(t, []model.StepName{model.StepProblemValidation}, summary.SkippedAnalyses)
}
