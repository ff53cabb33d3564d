package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/observability/metrics"
	"github.com/target/marketlens/internal/observability/statsd"
)

const persistTimeout = 5 * time.Second

// StepFunc performs the work of one analysis step.
type StepFunc func(ctx context.Context) (any, error)

// StepRunnerOptions configures a StepRunner for a single job.
type StepRunnerOptions struct {
	Store   core.JobStore
	JobID   string
	Logger  *slog.Logger
	Metrics statsd.Sink
	Now     func() time.Time
}

// StepRunner records step progress and results for one job. Every transition is written
// through to the store; a failed write is logged and the in-memory state still advances so
// the pipeline can finish and summarize.
type StepRunner struct {
	store   core.JobStore
	jobID   string
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time

	mu      sync.Mutex
	states  map[model.StepName]model.StepState
	errs    map[model.StepName]error
	started map[model.StepName]time.Time
}

// NewStepRunner creates a runner with every step pending.
func NewStepRunner(opts StepRunnerOptions) (*StepRunner, error) {
	if opts.Store == nil {
		return nil, errors.New("step runner: store is required")
	}
	if opts.JobID == "" {
		return nil, errors.New("step runner: job id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	r := &StepRunner{
		store:   opts.Store,
		jobID:   opts.JobID,
		logger:  logger.With("component", "step_runner", "job_id", opts.JobID),
		metrics: opts.Metrics,
		now:     now,
		states:  make(map[model.StepName]model.StepState, len(model.AllSteps())),
		errs:    make(map[model.StepName]error),
		started: make(map[model.StepName]time.Time),
	}
	for _, step := range model.AllSteps() {
		r.states[step] = model.StepPending
	}
	return r, nil
}

// Run marks the step processing, invokes fn, and records the outcome as complete or failed.
// A panic inside fn is converted into an internal error for that step.
func (r *StepRunner) Run(ctx context.Context, step model.StepName, fn StepFunc) (any, error) {
	_ = r.Transition(ctx, step, model.StepProcessing)

	result, err := r.invoke(ctx, step, fn)
	if err == nil {
		var raw json.RawMessage
		if raw, err = encodeResult(step, result); err == nil {
			_ = r.completeRaw(ctx, step, raw)
			return result, nil
		}
	}
	_ = r.Fail(ctx, step, err)
	return nil, err
}

func (r *StepRunner) invoke(ctx context.Context, step model.StepName, fn StepFunc) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.ErrorContext(ctx, "analysis step panicked",
				"step", step,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			result = nil
			err = apperrors.Internalf("%s panicked: %v", step, p)
		}
	}()
	return fn(ctx)
}

// runStep is the typed form of Run. A nil result without an error counts as a failure.
func runStep[T any](ctx context.Context, r *StepRunner, step model.StepName, fn func(context.Context) (*T, error)) (*T, error) {
	out, err := r.Run(ctx, step, func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, apperrors.Internalf("%s returned no result", step)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	v, ok := out.(*T)
	if !ok {
		return nil, apperrors.Internalf("%s returned %T", step, out)
	}
	return v, nil
}

// Transition records a non-terminal progress state without touching the result.
func (r *StepRunner) Transition(ctx context.Context, step model.StepName, state model.StepState) error {
	r.mu.Lock()
	r.states[step] = state
	if _, ok := r.started[step]; !ok && state != model.StepPending {
		r.started[step] = r.now()
	}
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "analysis step transition", "step", step, "state", state)
	return r.persist(ctx, step, state, nil)
}

// Complete stores result as the step output and marks it complete.
func (r *StepRunner) Complete(ctx context.Context, step model.StepName, result any) error {
	raw, err := encodeResult(step, result)
	if err != nil {
		_ = r.Fail(ctx, step, err)
		return err
	}
	return r.completeRaw(ctx, step, raw)
}

func encodeResult(step model.StepName, result any) (json.RawMessage, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "encode %s result", step)
	}
	return raw, nil
}

func (r *StepRunner) completeRaw(ctx context.Context, step model.StepName, raw json.RawMessage) error {
	duration := r.settle(step, model.StepComplete, nil)
	metrics.EmitStepTransition(r.metrics, metrics.StepMetric{
		Step:     string(step),
		State:    string(model.StepComplete),
		Result:   metrics.ResultSuccess,
		Duration: duration,
	})
	r.logger.InfoContext(ctx, "analysis step complete", "step", step, "duration_ms", duration.Milliseconds())
	return r.persist(ctx, step, model.StepComplete, raw)
}

// Fail marks the step failed and stores the error result shape.
func (r *StepRunner) Fail(ctx context.Context, step model.StepName, cause error) error {
	if cause == nil {
		cause = apperrors.Internalf("%s failed", step)
	}
	raw, err := json.Marshal(model.StepErrorResult{
		Status:         model.ResultStatusError,
		Error:          cause.Error(),
		ErrorCode:      string(ErrorCode(cause)),
		DisplayMessage: DisplayMessage(cause),
	})
	if err != nil {
		return fmt.Errorf("encode %s error result: %w", step, err)
	}

	duration := r.settle(step, model.StepFailed, cause)
	metrics.EmitStepTransition(r.metrics, metrics.StepMetric{
		Step:     string(step),
		State:    string(model.StepFailed),
		Result:   metrics.ResultError,
		Duration: duration,
		Err:      cause,
	})
	r.logger.WarnContext(ctx, "analysis step failed",
		"step", step,
		"error", cause,
		"error_code", ErrorCode(cause),
	)
	return r.persist(ctx, step, model.StepFailed, raw)
}

// Skip marks the step skipped. cause says why: Unavailable when the collaborator is not
// configured, Validation when the job lacks an input the step needs.
func (r *StepRunner) Skip(ctx context.Context, step model.StepName, cause error) error {
	if cause == nil {
		cause = apperrors.Unavailable(string(step) + " is not configured")
	}
	reason := cause.Error()
	raw, err := json.Marshal(model.StepSkippedResult{
		Status:         model.ResultStatusSkipped,
		Reason:         reason,
		DisplayMessage: SkipMessage(cause),
	})
	if err != nil {
		return fmt.Errorf("encode %s skipped result: %w", step, err)
	}

	r.settle(step, model.StepSkipped, nil)
	metrics.EmitStepTransition(r.metrics, metrics.StepMetric{
		Step:   string(step),
		State:  string(model.StepSkipped),
		Result: metrics.ResultSkipped,
	})
	r.logger.InfoContext(ctx, "analysis step skipped", "step", step, "reason", reason)
	return r.persist(ctx, step, model.StepSkipped, raw)
}

func (r *StepRunner) settle(step model.StepName, state model.StepState, cause error) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[step] = state
	if cause != nil {
		r.errs[step] = cause
	}
	if start, ok := r.started[step]; ok {
		return r.now().Sub(start)
	}
	return 0
}

func (r *StepRunner) persist(ctx context.Context, step model.StepName, state model.StepState, result json.RawMessage) error {
	patch := model.JobPatch{
		ID:       r.jobID,
		Progress: map[model.StepName]model.StepState{step: state},
	}
	if result != nil {
		patch.Results = map[model.StepName]json.RawMessage{step: result}
	}
	// Progress must land even when the job context is already canceled.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if _, err := r.store.Update(pctx, patch); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist step state",
			"step", step,
			"state", state,
			"error", err,
		)
		return err
	}
	return nil
}

// State returns the last recorded state of the step.
func (r *StepRunner) State(step model.StepName) model.StepState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[step]; ok {
		return s
	}
	return model.StepPending
}

// Err returns the error recorded when the step failed.
func (r *StepRunner) Err(step model.StepName) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[step]
}

// Summary tallies the steps by outcome in pipeline order. Steps left mid-flight count as
// failed; pending steps are not listed.
func (r *StepRunner) Summary() model.JobSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.SummarizeProgress(r.states)
}
