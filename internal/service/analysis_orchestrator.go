package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/domain/sizing"
	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/observability/metrics"
	"github.com/target/marketlens/internal/observability/notify"
	"github.com/target/marketlens/internal/observability/statsd"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultResearchTimeout bounds each call to the research service.
	DefaultResearchTimeout = 3 * time.Minute

	defaultFinalizeTimeout = 10 * time.Second
	maxNotifiedIdeaLength  = 200
)

// FailureNotifier receives jobs that end failed.
type FailureNotifier interface {
	NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload)
}

// AnalysisOrchestratorOptions wires the collaborators for each pipeline step. Classifier,
// Segmenter and Store are required; a nil optional collaborator causes its step to be skipped.
type AnalysisOrchestratorOptions struct {
	Store      core.JobStore
	Classifier core.Classifier
	Segmenter  core.Segmenter

	ProblemValidator core.ProblemValidator
	Competition      core.CompetitionAnalyzer
	MarketData       core.MarketDataProvider
	Recommender      core.Recommender
	Fallback         core.FallbackSources

	Engine          *sizing.Engine
	SizingOptions   model.SizingOptions
	ResearchTimeout time.Duration
	FinalizeTimeout time.Duration

	Notifier FailureNotifier
	Metrics  statsd.Sink
	Logger   *slog.Logger
	Now      func() time.Time
}

// AnalysisOrchestrator drives one job through classification, segmentation, the research
// fan-out, market sizing and the recommendation, then decides the final job status.
type AnalysisOrchestrator struct {
	store      core.JobStore
	classifier core.Classifier
	segmenter  core.Segmenter

	problems    core.ProblemValidator
	competition core.CompetitionAnalyzer
	marketData  core.MarketDataProvider
	recommender core.Recommender
	fallback    core.FallbackSources

	engine          *sizing.Engine
	sizingOptions   model.SizingOptions
	researchTimeout time.Duration
	finalizeTimeout time.Duration

	notifier FailureNotifier
	metrics  statsd.Sink
	// base is the caller's logger before scoping; step runners add their own component.
	base     *slog.Logger
	logger   *slog.Logger
	now      func() time.Time
}

// NewAnalysisOrchestrator validates the options and applies defaults.
func NewAnalysisOrchestrator(opts AnalysisOrchestratorOptions) (*AnalysisOrchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("analysis orchestrator: store is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("analysis orchestrator: classifier is required")
	}
	if opts.Segmenter == nil {
		return nil, errors.New("analysis orchestrator: segmenter is required")
	}

	base := resolveLogger(opts.Logger)
	logger := base.With("component", "analysis_orchestrator")
	engine := opts.Engine
	if engine == nil {
		engine = sizing.NewEngine(sizing.EngineOptions{Logger: base})
	}
	researchTimeout := opts.ResearchTimeout
	if researchTimeout <= 0 {
		researchTimeout = DefaultResearchTimeout
	}
	finalizeTimeout := opts.FinalizeTimeout
	if finalizeTimeout <= 0 {
		finalizeTimeout = defaultFinalizeTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &AnalysisOrchestrator{
		store:           opts.Store,
		classifier:      opts.Classifier,
		segmenter:       opts.Segmenter,
		problems:        opts.ProblemValidator,
		competition:     opts.Competition,
		marketData:      opts.MarketData,
		recommender:     opts.Recommender,
		fallback:        opts.Fallback,
		engine:          engine,
		sizingOptions:   opts.SizingOptions,
		researchTimeout: researchTimeout,
		finalizeTimeout: finalizeTimeout,
		notifier:        opts.Notifier,
		metrics:         opts.Metrics,
		base:            base,
		logger:          logger,
		now:             now,
	}, nil
}

// MustNewAnalysisOrchestrator panics when the options are invalid.
func MustNewAnalysisOrchestrator(opts AnalysisOrchestratorOptions) *AnalysisOrchestrator {
	o, err := NewAnalysisOrchestrator(opts)
	if err != nil {
		panic(err)
	}
	return o
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// Run executes the pipeline for the stored job. The final status is written exactly once,
// including when a step panics or ctx is canceled. The returned error is the fatal pipeline
// error (if any) joined with a failure to persist the final status.
func (o *AnalysisOrchestrator) Run(ctx context.Context, jobID string) (err error) {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load analysis job %s: %w", jobID, err)
	}

	runner, err := NewStepRunner(StepRunnerOptions{
		Store:   o.store,
		JobID:   job.ID,
		Logger:  o.base,
		Metrics: o.metrics,
		Now:     o.now,
	})
	if err != nil {
		return err
	}

	run := &analysisRun{
		o:       o,
		job:     job,
		runner:  runner,
		logger:  o.logger.With("job_id", job.ID),
		started: o.now(),
	}

	defer func() {
		if p := recover(); p != nil {
			run.logger.ErrorContext(ctx, "analysis pipeline panicked",
				"panic", p,
				"stack", string(debug.Stack()),
			)
			run.fatal = apperrors.FatalPipeline(fmt.Errorf("panic: %v", p), "analysis pipeline aborted")
		}
		err = run.finalize(ctx)
	}()

	run.logger.InfoContext(ctx, "analysis pipeline started")
	run.execute(ctx)
	return nil
}

// analysisRun holds the state of a single Run call.
type analysisRun struct {
	o       *AnalysisOrchestrator
	job     *model.Job
	runner  *StepRunner
	logger  *slog.Logger
	started time.Time

	fatal     error
	finalized bool
}

func (r *analysisRun) execute(ctx context.Context) {
	input := r.job.Input

	classification, err := runStep(ctx, r.runner, model.StepClassification,
		func(ctx context.Context) (*model.Classification, error) {
			return r.o.classifier.Classify(ctx, input)
		})
	if err != nil {
		r.fatal = apperrors.FatalPipeline(err, "classification failed")
		return
	}

	segmentation, err := runStep(ctx, r.runner, model.StepSegmentation,
		func(ctx context.Context) (*model.Segmentation, error) {
			return r.o.segmenter.Segment(ctx, input, classification)
		})
	if err != nil {
		r.logger.WarnContext(ctx, "segmentation failed, continuing with remaining steps", "error", err)
	}

	req := model.ResearchRequest{
		BusinessIdea:     input.BusinessIdea,
		ProblemStatement: input.ProblemStatement,
		Industry:         classification.Industry,
		SubIndustry:      classification.SubIndustry,
		Keywords:         classification.Keywords,
		Segments:         segmentation.SegmentNames(),
	}

	var (
		problems    *model.ProblemValidationResult
		competition *model.CompetitionAnalysis
		marketData  *model.MarketDataResponse
	)

	// Settle-all: every goroutine returns nil so no sibling is canceled by another's failure.
	var g errgroup.Group
	g.Go(func() error {
		problems = r.problemValidation(ctx, req)
		return nil
	})
	g.Go(func() error {
		competition = r.competitionAnalysis(ctx, req)
		return nil
	})
	g.Go(func() error {
		marketData = r.marketSizingAPI(ctx, req)
		return nil
	})
	_ = g.Wait()

	marketSizing := r.finalizeMarketSizing(ctx, marketSizingInputs{
		classification: classification,
		segmentation:   segmentation,
		problems:       problems,
		competition:    competition,
		response:       marketData,
	})

	r.recommendation(ctx, model.RecommendationInput{
		Input:             input,
		Classification:    classification,
		Segmentation:      segmentation,
		ProblemValidation: problems,
		Competition:       competition,
		MarketSizing:      marketSizing,
	})
}

func (r *analysisRun) problemValidation(ctx context.Context, req model.ResearchRequest) *model.ProblemValidationResult {
	if r.o.problems == nil {
		_ = r.runner.Skip(ctx, model.StepProblemValidation, apperrors.Unavailable("problem validation service is not configured"))
		return nil
	}
	if !r.job.Input.HasProblemStatement() {
		_ = r.runner.Skip(ctx, model.StepProblemValidation, apperrors.ValidationField("problem_statement", "no problem statement was supplied"))
		return nil
	}

	out, err := runStep(ctx, r.runner, model.StepProblemValidation,
		func(ctx context.Context) (*model.ProblemValidationResult, error) {
			return callWithTimeout(ctx, "problem validation", r.o.researchTimeout,
				func(ctx context.Context) (*model.ProblemValidationResult, error) {
					return r.o.problems.ValidateProblem(ctx, req)
				})
		})
	if err != nil {
		return nil
	}
	return out
}

func (r *analysisRun) competitionAnalysis(ctx context.Context, req model.ResearchRequest) *model.CompetitionAnalysis {
	if r.o.competition == nil {
		_ = r.runner.Skip(ctx, model.StepCompetition, apperrors.Unavailable("competition analysis service is not configured"))
		return nil
	}

	out, err := runStep(ctx, r.runner, model.StepCompetition,
		func(ctx context.Context) (*model.CompetitionAnalysis, error) {
			return callWithTimeout(ctx, "competition analysis", r.o.researchTimeout,
				func(ctx context.Context) (*model.CompetitionAnalysis, error) {
					return r.o.competition.AnalyzeCompetition(ctx, req)
				})
		})
	if err != nil {
		return nil
	}
	return out
}

// marketSizingAPI is the first market sizing phase. It ends in api_complete only when the
// research service returned computed figures with consistent tiers; raw sources from a
// partial or rejected answer are kept for the local phase.
func (r *analysisRun) marketSizingAPI(ctx context.Context, req model.ResearchRequest) *model.MarketDataResponse {
	step := model.StepMarketSizing
	_ = r.runner.Transition(ctx, step, model.StepProcessingAPI)

	if r.o.marketData == nil {
		r.logger.InfoContext(ctx, "market data service is not configured, sizing locally")
		_ = r.runner.Transition(ctx, step, model.StepAPIFailed)
		return nil
	}

	resp, err := callWithTimeout(ctx, "market sizing", r.o.researchTimeout,
		func(ctx context.Context) (*model.MarketDataResponse, error) {
			return r.o.marketData.MarketSize(ctx, req)
		})
	switch {
	case err != nil:
		r.logger.WarnContext(ctx, "market sizing API failed",
			"error", err,
			"error_code", ErrorCode(err),
		)
		_ = r.runner.Transition(ctx, step, model.StepAPIFailed)
		return nil
	case resp == nil || !resp.Sizing.HasFigures():
		r.logger.InfoContext(ctx, "market sizing API returned no figures",
			"raw_sources", rawSourceCount(resp),
		)
		_ = r.runner.Transition(ctx, step, model.StepAPIFailed)
		return resp
	case !resp.Sizing.TiersConsistent():
		r.logger.WarnContext(ctx, "market sizing API returned inconsistent tiers, sizing locally",
			"tam", resp.Sizing.TAM.Value,
			"sam", resp.Sizing.SAM.Value,
			"som", resp.Sizing.SOM.Value,
			"raw_sources", rawSourceCount(resp),
		)
		_ = r.runner.Transition(ctx, step, model.StepAPIFailed)
		return resp
	default:
		_ = r.runner.Transition(ctx, step, model.StepAPIComplete)
		return resp
	}
}

// usableAPISizing reports whether the research service's own figures can be stored as-is.
func usableAPISizing(resp *model.MarketDataResponse) bool {
	return resp != nil && resp.Sizing.HasFigures() && resp.Sizing.TiersConsistent()
}

func rawSourceCount(resp *model.MarketDataResponse) int {
	if resp == nil {
		return 0
	}
	return len(resp.Sources)
}

type marketSizingInputs struct {
	classification *model.Classification
	segmentation   *model.Segmentation
	problems       *model.ProblemValidationResult
	competition    *model.CompetitionAnalysis
	response       *model.MarketDataResponse
}

// finalizeMarketSizing is the second phase, run after the fan-out barrier so the local
// computation can use problem validation and competition data.
func (r *analysisRun) finalizeMarketSizing(ctx context.Context, in marketSizingInputs) *model.SizingResult {
	step := model.StepMarketSizing

	if usableAPISizing(in.response) {
		result := *in.response.Sizing
		result.CalculationSource = model.CalculationSourceBackendAPI
		if err := r.runner.Complete(ctx, step, result); err != nil && r.runner.State(step) == model.StepFailed {
			return nil
		}
		return &result
	}

	_ = r.runner.Transition(ctx, step, model.StepProcessingLocal)
	out, err := r.runner.invoke(ctx, step, func(context.Context) (any, error) {
		var sources []model.RawObservation
		if in.response != nil {
			sources = in.response.Sources
		}
		if len(sources) == 0 && r.o.fallback != nil {
			sources = r.o.fallback.SourcesFor(in.classification.Industry)
		}

		result := r.o.engine.ComputeSizing(sizing.Input{
			Sources:           sources,
			Segmentation:      in.segmentation,
			ProblemValidation: in.problems,
			Competition:       in.competition,
			Options:           r.o.sizingOptions,
		})
		result.CalculationSource = model.CalculationSourceLocalFallback
		if result.Error != "" {
			r.logger.WarnContext(ctx, "local market sizing produced no figures", "reason", result.Error)
		}
		return &result, nil
	})
	if err != nil {
		_ = r.runner.Fail(ctx, step, err)
		return nil
	}

	result, _ := out.(*model.SizingResult)
	if err := r.runner.Complete(ctx, step, result); err != nil && r.runner.State(step) == model.StepFailed {
		return nil
	}
	return result
}

func (r *analysisRun) recommendation(ctx context.Context, in model.RecommendationInput) {
	if r.o.recommender == nil {
		_ = r.runner.Skip(ctx, model.StepRecommendation, apperrors.Unavailable("recommendation service is not configured"))
		return
	}
	_, _ = runStep(ctx, r.runner, model.StepRecommendation,
		func(ctx context.Context) (*model.Recommendation, error) {
			return r.o.recommender.Recommend(ctx, in)
		})
}

// finalize writes Status, Summary, Error and CompletedAt once. Steps left mid-flight by a
// panic are failed first so no progress entry stays in a processing state.
func (r *analysisRun) finalize(ctx context.Context) error {
	if r.finalized {
		return nil
	}
	r.finalized = true

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.finalizeTimeout)
	defer cancel()

	if r.fatal != nil {
		for _, step := range model.AllSteps() {
			state := r.runner.State(step)
			if state != model.StepPending && !state.Terminal() {
				_ = r.runner.Fail(wctx, step, r.fatal)
			}
		}
	}

	summary := r.runner.Summary()
	status := model.JobStatusComplete
	for _, step := range model.AllSteps() {
		if step.Critical() && r.runner.State(step) != model.StepComplete {
			status = model.JobStatusFailed
			break
		}
	}

	completedAt := r.o.now()
	patch := model.JobPatch{
		ID:          r.job.ID,
		Status:      &status,
		Summary:     &summary,
		CompletedAt: &completedAt,
	}

	failedStep, cause := r.failureCause()
	if status == model.JobStatusFailed {
		msg := cause.Error()
		patch.Error = &msg
	}

	var persistErr error
	if _, err := r.o.store.Update(wctx, patch); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist final job status",
			"status", status,
			"error", err,
		)
		persistErr = fmt.Errorf("persist final status for job %s: %w", r.job.ID, err)
	}

	duration := completedAt.Sub(r.started)
	metrics.EmitJobFinalized(r.o.metrics, metrics.JobMetric{
		Status:    string(status),
		Duration:  duration,
		Completed: len(summary.CompletedAnalyses),
		Failed:    len(summary.FailedAnalyses),
		Skipped:   len(summary.SkippedAnalyses),
	})
	r.logger.InfoContext(ctx, "analysis pipeline finished",
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"completed", len(summary.CompletedAnalyses),
		"failed", len(summary.FailedAnalyses),
		"skipped", len(summary.SkippedAnalyses),
	)

	if status == model.JobStatusFailed {
		r.notifyFailure(wctx, failedStep, cause, summary, completedAt)
	}

	return errors.Join(r.fatal, persistErr)
}

// failureCause picks the error that decided a failed status: the fatal error first, then the
// first critical step that did not complete.
func (r *analysisRun) failureCause() (model.StepName, error) {
	if r.fatal != nil {
		for _, step := range model.AllSteps() {
			if step.Critical() && r.runner.State(step) != model.StepComplete {
				return step, r.fatal
			}
		}
		return "", r.fatal
	}
	for _, step := range model.AllSteps() {
		if !step.Critical() || r.runner.State(step) == model.StepComplete {
			continue
		}
		if err := r.runner.Err(step); err != nil {
			return step, apperrors.StepFailure(err, string(step))
		}
		return step, apperrors.Internalf("%s did not complete", step)
	}
	return "", nil
}

func (r *analysisRun) notifyFailure(ctx context.Context, step model.StepName, cause error, summary model.JobSummary, at time.Time) {
	if r.o.notifier == nil || cause == nil {
		return
	}

	failed := make([]string, len(summary.FailedAnalyses))
	for i, s := range summary.FailedAnalyses {
		failed[i] = string(s)
	}

	r.o.notifier.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:          r.job.ID,
		Idea:           truncateRunes(r.job.Input.BusinessIdea, maxNotifiedIdeaLength),
		FailedStep:     string(step),
		FailedAnalyses: failed,
		Error:          cause.Error(),
		ErrorClass:     string(ErrorCode(cause)),
		Severity:       notify.SeverityCritical,
		OccurredAt:     at,
		Metadata: map[string]string{
			"completed_analyses": strconv.Itoa(len(summary.CompletedAnalyses)),
			"skipped_analyses":   strconv.Itoa(len(summary.SkippedAnalyses)),
		},
	})
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
