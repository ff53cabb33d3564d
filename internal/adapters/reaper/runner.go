// Package reaper provides adapters for running the job retention sweep.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/observability/statsd"
	"github.com/target/marketlens/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
// It constructs the reaper service over a job store and runs the sweep loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Store   core.JobStore
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Store:   opts.Store,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Store == nil {
		return errors.New("job store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// SweepOnce runs a single retention pass.
func (r *Runner) SweepOnce(ctx context.Context) (service.SweepReport, error) {
	report, err := r.reaper.Sweep(ctx)
	if err != nil {
		return report, err
	}
	r.logger.InfoContext(ctx, "reaper sweep finished",
		"failed_stale", report.FailedStale,
		"deleted", report.Deleted,
		"elapsed", report.Elapsed,
	)
	return report, nil
}
