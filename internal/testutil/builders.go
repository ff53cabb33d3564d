package testutil

import (
	"encoding/json"
	"time"

	"github.com/target/marketlens/internal/domain/model"
)

// JobBuilder provides a fluent interface for building analysis jobs in tests.
type JobBuilder struct {
	job *model.Job
}

// NewJob creates a JobBuilder for a processing job with every step pending.
func NewJob() *JobBuilder {
	return &JobBuilder{
		job: model.NewJob(model.AnalysisInput{
			BusinessIdea: "A subscription service delivering fresh pet food",
		}, TestTime()),
	}
}

// WithID overrides the generated job ID.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithIdea sets the business idea.
func (b *JobBuilder) WithIdea(idea string) *JobBuilder {
	b.job.Input.BusinessIdea = idea
	return b
}

// WithProblem sets the problem statement.
func (b *JobBuilder) WithProblem(problem string) *JobBuilder {
	b.job.Input.ProblemStatement = problem
	return b
}

// WithStatus sets the overall job status.
func (b *JobBuilder) WithStatus(status model.JobStatus) *JobBuilder {
	b.job.Status = status
	return b
}

// WithStep sets the state and result of a step. A nil result leaves the existing value.
func (b *JobBuilder) WithStep(step model.StepName, state model.StepState, result any) *JobBuilder {
	b.job.Progress[step] = state
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			panic(err)
		}
		b.job.Results[step] = raw
	}
	return b
}

// CreatedAt sets the creation and update times.
func (b *JobBuilder) CreatedAt(t time.Time) *JobBuilder {
	b.job.CreatedAt = t
	b.job.UpdatedAt = t
	return b
}

// UpdatedAt sets only the last-update time.
func (b *JobBuilder) UpdatedAt(t time.Time) *JobBuilder {
	b.job.UpdatedAt = t
	return b
}

// Build returns a copy of the built job.
func (b *JobBuilder) Build() *model.Job {
	return b.job.Clone()
}
