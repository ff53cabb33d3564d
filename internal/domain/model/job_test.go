package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	job := NewJob(AnalysisInput{BusinessIdea: "meal kits for climbers"}, now)

	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, now, job.CreatedAt)
	assert.Len(t, job.Progress, len(AllSteps()))
	assert.Len(t, job.Results, len(AllSteps()))
	for _, step := range AllSteps() {
		assert.Equal(t, StepPending, job.Progress[step], "step %s", step)
		assert.JSONEq(t, "null", string(job.Results[step]))
	}
}

func TestJobStatus_UnmarshalText(t *testing.T) {
	var s JobStatus
	require.NoError(t, s.UnmarshalText([]byte(" Complete ")))
	assert.Equal(t, JobStatusComplete, s)

	err := s.UnmarshalText([]byte("running"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JobStatus")
}

func TestStepName_Critical(t *testing.T) {
	critical := map[StepName]bool{
		StepClassification: true,
		StepSegmentation:   true,
	}
	for _, step := range AllSteps() {
		assert.Equal(t, critical[step], step.Critical(), "step %s", step)
		assert.True(t, step.Valid())
	}
	assert.False(t, StepName("pricing").Valid())
}

func TestStepState_Terminal(t *testing.T) {
	tests := []struct {
		state    StepState
		terminal bool
	}{
		{StepPending, false},
		{StepProcessing, false},
		{StepProcessingAPI, false},
		{StepAPIComplete, false},
		{StepAPIFailed, false},
		{StepProcessingLocal, false},
		{StepComplete, true},
		{StepFailed, true},
		{StepSkipped, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.True(t, tt.state.Valid())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
		})
	}
}

func TestJob_Apply(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	job := NewJob(AnalysisInput{BusinessIdea: "idea"}, now)

	t.Run("merges per key and keeps unspecified fields", func(t *testing.T) {
		later := now.Add(time.Minute)
		job.Apply(JobPatch{
			Progress: map[StepName]StepState{StepClassification: StepComplete},
			Results:  map[StepName]json.RawMessage{StepClassification: json.RawMessage(`{"industry":"food"}`)},
		}, later)

		assert.Equal(t, StepComplete, job.Progress[StepClassification])
		assert.Equal(t, StepPending, job.Progress[StepSegmentation])
		assert.JSONEq(t, `{"industry":"food"}`, string(job.Results[StepClassification]))
		assert.Equal(t, JobStatusProcessing, job.Status)
		assert.Nil(t, job.Error)
		assert.Equal(t, later, job.UpdatedAt)
	})

	t.Run("overwrites scalar fields when set", func(t *testing.T) {
		status := JobStatusFailed
		msg := "classification failed"
		job.Apply(JobPatch{Status: &status, Error: &msg}, now)

		assert.Equal(t, JobStatusFailed, job.Status)
		require.NotNil(t, job.Error)
		assert.Equal(t, msg, *job.Error)
	})
}

func TestJob_Clone(t *testing.T) {
	job := NewJob(AnalysisInput{BusinessIdea: "idea"}, time.Now())
	job.Summary = &JobSummary{CompletedAnalyses: []StepName{StepClassification}}

	cp := job.Clone()
	cp.Progress[StepClassification] = StepFailed
	cp.Summary.CompletedAnalyses[0] = StepSegmentation

	assert.Equal(t, StepPending, job.Progress[StepClassification])
	assert.Equal(t, StepClassification, job.Summary.CompletedAnalyses[0])
	assert.Nil(t, (*Job)(nil).Clone())
}

func TestJob_StepProgressOrder(t *testing.T) {
	job := NewJob(AnalysisInput{BusinessIdea: "idea"}, time.Now())
	entries := job.StepProgress()
	require.Len(t, entries, len(AllSteps()))
	for i, step := range AllSteps() {
		assert.Equal(t, step, entries[i].Step)
	}
}

func TestCompetitor_WellFunded(t *testing.T) {
	tests := []struct {
		funding string
		want    bool
	}{
		{"Series B, $40M", true},
		{"", false},
		{"Bootstrapped", false},
		{" unknown ", false},
		{"seed", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Competitor{Funding: tt.funding}.WellFunded(), "funding %q", tt.funding)
	}

	comp := &CompetitionAnalysis{Competitors: []Competitor{{Funding: "Series A"}, {Funding: "none"}, {Funding: "IPO"}}}
	assert.Equal(t, 2, comp.WellFundedCount())
	assert.Equal(t, 0, (*CompetitionAnalysis)(nil).WellFundedCount())
}
