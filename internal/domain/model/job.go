// Package model defines the core data types shared by the analysis pipeline and the market sizing engine.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the overall status of an analysis job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusProcessing indicates the pipeline is still running.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusComplete indicates both critical steps completed.
	JobStatusComplete JobStatus = "complete"
	// JobStatusFailed indicates a critical step did not complete.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", v)
	}
	*s = v
	return nil
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusProcessing || s == JobStatusComplete || s == JobStatusFailed
}

// Terminal reports whether the job is read-only.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// StepName identifies one analysis step with its own progress and result slice.
type StepName string

const (
	StepClassification    StepName = "classification"
	StepSegmentation      StepName = "segmentation"
	StepProblemValidation StepName = "problemValidation"
	StepCompetition       StepName = "competition"
	StepMarketSizing      StepName = "marketSizing"
	StepRecommendation    StepName = "recommendation"
)

// AllSteps returns every known step in pipeline order.
func AllSteps() []StepName {
	return []StepName{
		StepClassification,
		StepSegmentation,
		StepProblemValidation,
		StepCompetition,
		StepMarketSizing,
		StepRecommendation,
	}
}

// Valid returns true if the step name is known.
func (n StepName) Valid() bool {
	for _, s := range AllSteps() {
		if s == n {
			return true
		}
	}
	return false
}

// Critical reports whether the step decides the final job status.
func (n StepName) Critical() bool {
	return n == StepClassification || n == StepSegmentation
}

// StepState is the progress marker for a single step.
type StepState string

const (
	StepPending    StepState = "pending"
	StepProcessing StepState = "processing"
	StepComplete   StepState = "complete"
	StepFailed     StepState = "failed"
	StepSkipped    StepState = "skipped"

	// Market sizing sub-states.
	StepProcessingAPI   StepState = "processing_api"
	StepAPIComplete     StepState = "api_complete"
	StepAPIFailed       StepState = "api_failed"
	StepProcessingLocal StepState = "processing_local"
)

// Valid returns true if the state is known.
func (s StepState) Valid() bool {
	switch s {
	case StepPending, StepProcessing, StepComplete, StepFailed, StepSkipped,
		StepProcessingAPI, StepAPIComplete, StepAPIFailed, StepProcessingLocal:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions follow this state.
func (s StepState) Terminal() bool {
	return s == StepComplete || s == StepFailed || s == StepSkipped
}

// AnalysisInput is the immutable user submission.
type AnalysisInput struct {
	BusinessIdea     string `json:"business_idea"`
	ProblemStatement string `json:"problem_statement,omitempty"`
}

// HasProblemStatement reports whether a non-blank problem statement was supplied.
func (in AnalysisInput) HasProblemStatement() bool {
	return strings.TrimSpace(in.ProblemStatement) != ""
}

// JobSummary is the post-hoc tally written once the pipeline settles.
type JobSummary struct {
	CompletedAnalyses []StepName `json:"completed_analyses"`
	FailedAnalyses    []StepName `json:"failed_analyses"`
	SkippedAnalyses   []StepName `json:"skipped_analyses"`
}

// SummarizeProgress tallies step states in pipeline order. Pending steps never ran and are
// left out; any state other than complete or skipped counts as failed.
func SummarizeProgress(progress map[StepName]StepState) JobSummary {
	summary := JobSummary{
		CompletedAnalyses: []StepName{},
		FailedAnalyses:    []StepName{},
		SkippedAnalyses:   []StepName{},
	}
	for _, step := range AllSteps() {
		switch state, ok := progress[step]; {
		case !ok || state == StepPending:
		case state == StepComplete:
			summary.CompletedAnalyses = append(summary.CompletedAnalyses, step)
		case state == StepSkipped:
			summary.SkippedAnalyses = append(summary.SkippedAnalyses, step)
		default:
			summary.FailedAnalyses = append(summary.FailedAnalyses, step)
		}
	}
	return summary
}

// Clone copies the summary, keeping empty lists non-nil so they encode as [].
func (s JobSummary) Clone() JobSummary {
	return JobSummary{
		CompletedAnalyses: cloneSteps(s.CompletedAnalyses),
		FailedAnalyses:    cloneSteps(s.FailedAnalyses),
		SkippedAnalyses:   cloneSteps(s.SkippedAnalyses),
	}
}

func cloneSteps(in []StepName) []StepName {
	if in == nil {
		return nil
	}
	return append(make([]StepName, 0, len(in)), in...)
}

// Job is one business-idea analysis run.
type Job struct {
	ID          string                       `json:"id"`
	Status      JobStatus                    `json:"status"`
	Input       AnalysisInput                `json:"input"`
	Progress    map[StepName]StepState       `json:"progress"`
	Results     map[StepName]json.RawMessage `json:"results"`
	Error       *string                      `json:"error,omitempty"`
	Summary     *JobSummary                  `json:"summary,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
}

// NullResult is the placeholder stored for steps that have not produced output yet.
var NullResult = json.RawMessage("null")

// NewJob creates a processing job with every step pending.
func NewJob(input AnalysisInput, now time.Time) *Job {
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusProcessing,
		Input:     input,
		Progress:  make(map[StepName]StepState, len(AllSteps())),
		Results:   make(map[StepName]json.RawMessage, len(AllSteps())),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, step := range AllSteps() {
		job.Progress[step] = StepPending
		job.Results[step] = NullResult
	}
	return job
}

// Clone returns a deep copy so callers never share maps with a store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Progress = make(map[StepName]StepState, len(j.Progress))
	for k, v := range j.Progress {
		cp.Progress[k] = v
	}
	cp.Results = make(map[StepName]json.RawMessage, len(j.Results))
	for k, v := range j.Results {
		cp.Results[k] = append(json.RawMessage(nil), v...)
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	if j.Summary != nil {
		s := j.Summary.Clone()
		cp.Summary = &s
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// JobPatch describes a shallow merge into an existing job.
// Nil fields are retained; Progress and Results merge per key.
type JobPatch struct {
	ID          string
	Status      *JobStatus
	Progress    map[StepName]StepState
	Results     map[StepName]json.RawMessage
	Error       *string
	Summary     *JobSummary
	CompletedAt *time.Time
}

// Apply merges the patch into the job and stamps UpdatedAt.
func (j *Job) Apply(p JobPatch, now time.Time) {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if len(p.Progress) > 0 && j.Progress == nil {
		j.Progress = make(map[StepName]StepState, len(p.Progress))
	}
	for k, v := range p.Progress {
		j.Progress[k] = v
	}
	if len(p.Results) > 0 && j.Results == nil {
		j.Results = make(map[StepName]json.RawMessage, len(p.Results))
	}
	for k, v := range p.Results {
		j.Results[k] = append(json.RawMessage(nil), v...)
	}
	if p.Error != nil {
		e := *p.Error
		j.Error = &e
	}
	if p.Summary != nil {
		s := p.Summary.Clone()
		j.Summary = &s
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		j.CompletedAt = &t
	}
	j.UpdatedAt = now
}

// StepProgress returns the job progress as an ordered slice for display.
func (j *Job) StepProgress() []StepProgressEntry {
	out := make([]StepProgressEntry, 0, len(AllSteps()))
	for _, step := range AllSteps() {
		state, ok := j.Progress[step]
		if !ok {
			state = StepPending
		}
		out = append(out, StepProgressEntry{Step: step, State: state})
	}
	return out
}

// StepProgressEntry pairs a step with its state.
type StepProgressEntry struct {
	Step  StepName  `json:"step"`
	State StepState `json:"state"`
}

// ExpiredJobsQuery selects jobs whose updated_at is before a cutoff.
type ExpiredJobsQuery struct {
	Before time.Time
	// Status optionally restricts matches; empty matches every status.
	Status JobStatus
	Limit  int
}
