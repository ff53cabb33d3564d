package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	obserrors "github.com/target/marketlens/internal/observability/errors"
	"github.com/target/marketlens/internal/observability/metrics"
	"github.com/target/marketlens/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Store   core.JobStore       // Required: job store to sweep
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
	Now     func() time.Time    // Optional: clock, defaults to time.Now
}

// ReaperService sweeps the job store on an interval.
//
// Each sweep:
// - Fails jobs stuck in processing longer than ProcessingMaxAge (their process died).
// - Deletes jobs older than the retention window, whatever their status.
//
// It only talks to the store through core.JobStore so any backend can be swept.
type ReaperService struct {
	store   core.JobStore
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Store == nil {
		return nil, errors.New("job store is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"processing_max_age", opts.Config.ProcessingMaxAge,
			"retention", opts.Config.Retention,
		)
	}

	return &ReaperService{
		store:   opts.Store,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
// Use this when the options are known to be valid (e.g., in main.go).
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ReaperService: %v", err))
	}
	return svc
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps several instances sharing one store from sweeping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// Use modulo on uint64 before converting to avoid overflow
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
			}
		}
	}
}

// SweepReport counts what one sweep changed.
type SweepReport struct {
	FailedStale int64         `json:"failed_stale"`
	Deleted     int64         `json:"deleted"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Sweep runs every cleanup operation once. Operations run even when an earlier one fails;
// their errors are joined.
func (s *ReaperService) Sweep(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	var (
		report             SweepReport
		errs               []error
		allContextCanceled = true
	)

	steps := []cleanupStep{
		{fn: s.failStaleProcessingJobs, label: "fail stale processing jobs", operation: "fail_processing", count: &report.FailedStale},
		{fn: s.deleteExpiredJobs, label: "delete expired jobs", operation: "delete_expired", count: &report.Deleted},
	}

	outcomes := make([]cleanupStepOutcome, 0, len(steps))
	for _, step := range steps {
		outcome := s.executeCleanupStep(ctx, step)
		*step.count = outcome.count
		outcomes = append(outcomes, outcome)
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	report.Elapsed = time.Since(start)
	s.emitSweepMetrics(outcomes, report.Elapsed)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return report, context.Canceled
		}
		return report, fmt.Errorf("sweep failed: %w", joined)
	}
	return report, nil
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	fn        cleanupFunc
	label     string
	operation string
	count     *int64
}

type cleanupStepOutcome struct {
	operation    string
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *ReaperService) executeCleanupStep(ctx context.Context, step cleanupStep) cleanupStepOutcome {
	count, err := step.fn(ctx)
	outcome := cleanupStepOutcome{
		operation: step.operation,
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", step.label, err)
	}
	return outcome
}

// failStaleProcessingJobs marks jobs processing for longer than ProcessingMaxAge as failed.
// Loops over batches until a batch changes nothing.
func (s *ReaperService) failStaleProcessingJobs(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.ProcessingMaxAge)
	var total int64
	for {
		ids, err := s.store.ListExpired(ctx, model.ExpiredJobsQuery{
			Before: cutoff,
			Status: model.JobStatusProcessing,
			Limit:  s.config.BatchSize,
		})
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}

		var batch int64
		for _, id := range ids {
			failed, err := s.failStaleJob(ctx, id)
			if err != nil {
				return total, err
			}
			if failed {
				batch++
			}
		}
		total += batch
		if batch == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale processing jobs",
			"count", total,
			"max_age", s.config.ProcessingMaxAge,
		)
	}
	return total, nil
}

// failStaleJob fails steps that were left mid-flight and writes the final status. Jobs that
// finished or disappeared since they were listed are left alone.
func (s *ReaperService) failStaleJob(ctx context.Context, id string) (bool, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if job.Status != model.JobStatusProcessing {
		return false, nil
	}

	progress := make(map[model.StepName]model.StepState)
	final := make(map[model.StepName]model.StepState, len(job.Progress))
	for step, state := range job.Progress {
		final[step] = state
		if state != model.StepPending && !state.Terminal() {
			progress[step] = model.StepFailed
			final[step] = model.StepFailed
		}
	}

	status := model.JobStatusFailed
	msg := fmt.Sprintf("analysis did not finish within %s", s.config.ProcessingMaxAge)
	summary := model.SummarizeProgress(final)
	now := s.now()
	if _, err := s.store.Update(ctx, model.JobPatch{
		ID:          id,
		Status:      &status,
		Progress:    progress,
		Error:       &msg,
		Summary:     &summary,
		CompletedAt: &now,
	}); err != nil {
		if apperrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// deleteExpiredJobs deletes jobs not updated since the retention cutoff.
// Loops over batches until a batch deletes nothing.
func (s *ReaperService) deleteExpiredJobs(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.config.Retention)
	var total int64
	for {
		ids, err := s.store.ListExpired(ctx, model.ExpiredJobsQuery{
			Before: cutoff,
			Limit:  s.config.BatchSize,
		})
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}

		var batch int64
		for _, id := range ids {
			deleted, err := s.store.Delete(ctx, id)
			if err != nil {
				return total, err
			}
			if deleted {
				batch++
			}
		}
		total += batch
		if batch == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted expired jobs",
			"count", total,
			"retention", s.config.Retention,
		)
	}
	return total, nil
}

func (s *ReaperService) emitSweepMetrics(outcomes []cleanupStepOutcome, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var (
		total    int64
		firstErr error
	)
	for _, o := range outcomes {
		total += o.count
		if firstErr == nil {
			firstErr = o.metricErr
		}
	}

	tags := map[string]string{"result": resultFor(total, firstErr)}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, o := range outcomes {
		s.emitCleanupOperationMetric(o.operation, o.count, o.metricErr)
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(operation string, count int64, err error) {
	tags := map[string]string{
		"operation": operation,
		"result":    resultFor(count, err),
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)

	if err == nil && count > 0 {
		s.metrics.Count("reaper.jobs_processed", count, metrics.CloneTags(tags))
	}
}

func resultFor(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
