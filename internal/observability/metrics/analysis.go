// Package metrics emits the standard StatsD metrics for the analysis pipeline.
package metrics

import (
	"time"

	obserrors "github.com/target/marketlens/internal/observability/errors"
	"github.com/target/marketlens/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
	ResultSkipped = "skipped"
)

// StepMetric captures one step transition.
type StepMetric struct {
	Step     string
	State    string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitStepTransition emits analysis.step and, when a duration is known, analysis.step_duration.
func EmitStepTransition(sink statsd.Sink, in StepMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"step":   in.Step,
		"state":  in.State,
		"result": in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("analysis.step", 1, tags)
	if in.Duration > 0 {
		sink.Timing("analysis.step_duration", in.Duration, CloneTags(tags))
	}
}

// JobMetric summarizes a finalized analysis job.
type JobMetric struct {
	Status    string
	Duration  time.Duration
	Completed int
	Failed    int
	Skipped   int
}

// EmitJobFinalized emits analysis.job with per-outcome step gauges.
func EmitJobFinalized(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"status": in.Status}
	sink.Count("analysis.job", 1, tags)
	if in.Duration > 0 {
		sink.Timing("analysis.job_duration", in.Duration, CloneTags(tags))
	}
	sink.Gauge("analysis.job_steps_completed", float64(in.Completed), CloneTags(tags))
	sink.Gauge("analysis.job_steps_failed", float64(in.Failed), CloneTags(tags))
	sink.Gauge("analysis.job_steps_skipped", float64(in.Skipped), CloneTags(tags))
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// ProviderAttempt records one call made by a provider cascade.
type ProviderAttempt struct {
	Kind     string
	Provider string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitProviderAttempt emits analysis.provider_attempt tagged by kind, provider and result.
func EmitProviderAttempt(sink statsd.Sink, in ProviderAttempt) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"kind":     in.Kind,
		"provider": in.Provider,
		"result":   in.Result,
	}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("analysis.provider_attempt", 1, tags)
	if in.Duration > 0 {
		sink.Timing("analysis.provider_attempt_duration", in.Duration, CloneTags(tags))
	}
}
