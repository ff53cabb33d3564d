package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/observability/statsd"
	"golang.org/x/sync/semaphore"
)

// Input limits for a submitted analysis.
const (
	MinIdeaLength    = 10
	MaxIdeaLength    = 5000
	MaxProblemLength = 5000

	// DefaultMaxConcurrentJobs bounds how many pipelines run at once.
	DefaultMaxConcurrentJobs = 4
)

// ErrShuttingDown is returned by Create once Shutdown has started.
var ErrShuttingDown = apperrors.Unavailable("analysis service is shutting down")

// PipelineRunner runs the pipeline for a stored job.
type PipelineRunner interface {
	Run(ctx context.Context, jobID string) error
}

// AnalysisJobServiceOptions configures the intake service.
type AnalysisJobServiceOptions struct {
	Store    core.JobStore
	Pipeline PipelineRunner

	// MaxConcurrentJobs bounds running pipelines; further jobs wait for a slot.
	MaxConcurrentJobs int64
	Logger            *slog.Logger
	Metrics           statsd.Sink
	Now               func() time.Time
}

// AnalysisJobService validates submissions, stores new jobs and runs their pipelines in the
// background with bounded concurrency.
type AnalysisJobService struct {
	store    core.JobStore
	pipeline PipelineRunner
	sem      *semaphore.Weighted
	logger   *slog.Logger
	metrics  statsd.Sink
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewAnalysisJobService creates the intake service.
func NewAnalysisJobService(opts AnalysisJobServiceOptions) (*AnalysisJobService, error) {
	if opts.Store == nil {
		return nil, errors.New("analysis job service: store is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("analysis job service: pipeline is required")
	}
	limit := opts.MaxConcurrentJobs
	if limit <= 0 {
		limit = DefaultMaxConcurrentJobs
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &AnalysisJobService{
		store:    opts.Store,
		pipeline: opts.Pipeline,
		sem:      semaphore.NewWeighted(limit),
		logger:   resolveLogger(opts.Logger).With("component", "analysis_jobs"),
		metrics:  opts.Metrics,
		now:      now,
		baseCtx:  baseCtx,
		cancel:   cancel,
	}, nil
}

// ValidateInput trims the submission and enforces the length limits.
func ValidateInput(in model.AnalysisInput) (model.AnalysisInput, error) {
	in.BusinessIdea = strings.TrimSpace(in.BusinessIdea)
	in.ProblemStatement = strings.TrimSpace(in.ProblemStatement)

	ideaLen := utf8.RuneCountInString(in.BusinessIdea)
	switch {
	case ideaLen == 0:
		return in, apperrors.ValidationField("business_idea", "business idea is required")
	case ideaLen < MinIdeaLength:
		return in, apperrors.ValidationField("business_idea",
			fmt.Sprintf("business idea must be at least %d characters", MinIdeaLength))
	case ideaLen > MaxIdeaLength:
		return in, apperrors.ValidationField("business_idea",
			fmt.Sprintf("business idea must be at most %d characters", MaxIdeaLength))
	}
	if utf8.RuneCountInString(in.ProblemStatement) > MaxProblemLength {
		return in, apperrors.ValidationField("problem_statement",
			fmt.Sprintf("problem statement must be at most %d characters", MaxProblemLength))
	}
	return in, nil
}

// Create stores a new processing job and starts its pipeline in the background.
func (s *AnalysisJobService) Create(ctx context.Context, in model.AnalysisInput) (*model.Job, error) {
	job, err := s.newJob(ctx, in)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.abandon(ctx, job.ID, ErrShuttingDown)
		return nil, ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.dispatch(job.ID)
	return job, nil
}

// RunSync stores a new job and runs its pipeline on the caller's goroutine, returning the
// finished job. Admission still goes through the concurrency limit.
func (s *AnalysisJobService) RunSync(ctx context.Context, in model.AnalysisInput) (*model.Job, error) {
	job, err := s.newJob(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.abandon(ctx, job.ID, err)
		return nil, fmt.Errorf("wait for pipeline slot: %w", err)
	}
	defer s.sem.Release(1)

	if err := s.pipeline.Run(ctx, job.ID); err != nil {
		s.logger.WarnContext(ctx, "analysis pipeline ended with error", "job_id", job.ID, "error", err)
	}
	return s.store.Get(context.WithoutCancel(ctx), job.ID)
}

func (s *AnalysisJobService) newJob(ctx context.Context, in model.AnalysisInput) (*model.Job, error) {
	in, err := ValidateInput(in)
	if err != nil {
		return nil, err
	}

	job := model.NewJob(in, s.now())
	if err := s.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("store analysis job: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Count("analysis.job_created", 1, nil)
	}
	s.logger.InfoContext(ctx, "analysis job created",
		"job_id", job.ID,
		"has_problem_statement", in.HasProblemStatement(),
	)
	return job, nil
}

func (s *AnalysisJobService) dispatch(jobID string) {
	defer s.wg.Done()
	ctx := s.baseCtx

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.abandon(ctx, jobID, err)
		return
	}
	defer s.sem.Release(1)
	if err := ctx.Err(); err != nil {
		s.abandon(ctx, jobID, err)
		return
	}

	if err := s.pipeline.Run(ctx, jobID); err != nil {
		s.logger.WarnContext(ctx, "analysis pipeline ended with error", "job_id", jobID, "error", err)
	}
}

// abandon fails a job whose pipeline never started.
func (s *AnalysisJobService) abandon(ctx context.Context, jobID string, cause error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultFinalizeTimeout)
	defer cancel()

	status := model.JobStatusFailed
	msg := fmt.Sprintf("analysis did not start: %v", cause)
	now := s.now()
	_, err := s.store.Update(wctx, model.JobPatch{
		ID:          jobID,
		Status:      &status,
		Error:       &msg,
		Summary:     &model.JobSummary{CompletedAnalyses: []model.StepName{}, FailedAnalyses: []model.StepName{}, SkippedAnalyses: []model.StepName{}},
		CompletedAt: &now,
	})
	if err != nil {
		s.logger.ErrorContext(wctx, "failed to mark abandoned job", "job_id", jobID, "error", err)
		return
	}
	s.logger.WarnContext(wctx, "analysis job abandoned", "job_id", jobID, "reason", cause)
}

// Get returns the job. Unknown IDs yield a not_found error.
func (s *AnalysisJobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.ValidationField("id", "job id is required")
	}
	return s.store.Get(ctx, id)
}

// Shutdown stops accepting jobs and waits for running pipelines. When ctx expires first the
// remaining pipelines are canceled, which makes them finalize as failed, and Shutdown waits
// for that to finish.
func (s *AnalysisJobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "canceling in-flight analyses for shutdown")
		s.cancel()
		<-done
		return ctx.Err()
	}
}
