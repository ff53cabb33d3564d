package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/data"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/observability/notify"
	"github.com/target/marketlens/internal/testutil"
)

type classifyFunc func(context.Context, model.AnalysisInput) (*model.Classification, error)

func (f classifyFunc) Name() string { return "test-classifier" }

func (f classifyFunc) Classify(ctx context.Context, in model.AnalysisInput) (*model.Classification, error) {
	return f(ctx, in)
}

type segmentFunc func(context.Context, model.AnalysisInput, *model.Classification) (*model.Segmentation, error)

func (f segmentFunc) Name() string { return "test-segmenter" }

func (f segmentFunc) Segment(ctx context.Context, in model.AnalysisInput, c *model.Classification) (*model.Segmentation, error) {
	return f(ctx, in, c)
}

type validateFunc func(context.Context, model.ResearchRequest) (*model.ProblemValidationResult, error)

func (f validateFunc) ValidateProblem(ctx context.Context, req model.ResearchRequest) (*model.ProblemValidationResult, error) {
	return f(ctx, req)
}

type competitionFunc func(context.Context, model.ResearchRequest) (*model.CompetitionAnalysis, error)

func (f competitionFunc) AnalyzeCompetition(ctx context.Context, req model.ResearchRequest) (*model.CompetitionAnalysis, error) {
	return f(ctx, req)
}

type marketSizeFunc func(context.Context, model.ResearchRequest) (*model.MarketDataResponse, error)

func (f marketSizeFunc) MarketSize(ctx context.Context, req model.ResearchRequest) (*model.MarketDataResponse, error) {
	return f(ctx, req)
}

type recommendFunc func(context.Context, model.RecommendationInput) (*model.Recommendation, error)

func (f recommendFunc) Name() string { return "test-recommender" }

func (f recommendFunc) Recommend(ctx context.Context, in model.RecommendationInput) (*model.Recommendation, error) {
	return f(ctx, in)
}

type fallbackFunc func(industry string) []model.RawObservation

func (f fallbackFunc) SourcesFor(industry string) []model.RawObservation { return f(industry) }

// recordingStore wraps a JobStore and records every patch, optionally failing updates.
type recordingStore struct {
	core.JobStore

	mu        sync.Mutex
	patches   []model.JobPatch
	failWrite bool
}

func newRecordingStore(t *testing.T, jobs ...*model.Job) *recordingStore {
	t.Helper()
	mem := data.NewMemoryJobStore(data.MemoryJobStoreOptions{
		TimeProvider: data.NewFixedTimeProvider(testutil.TestTime()),
	})
	for _, job := range jobs {
		require.NoError(t, mem.Put(context.Background(), job))
	}
	return &recordingStore{JobStore: mem}
}

func (s *recordingStore) Update(ctx context.Context, patch model.JobPatch) (*model.Job, error) {
	s.mu.Lock()
	s.patches = append(s.patches, patch)
	fail := s.failWrite
	s.mu.Unlock()
	if fail {
		return nil, errors.New("store unavailable")
	}
	return s.JobStore.Update(ctx, patch)
}

// statesFor lists the progress values written for step, in write order.
func (s *recordingStore) statesFor(step model.StepName) []model.StepState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StepState
	for _, p := range s.patches {
		if state, ok := p.Progress[step]; ok {
			out = append(out, state)
		}
	}
	return out
}

func (s *recordingStore) statusWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.patches {
		if p.Status != nil {
			n++
		}
	}
	return n
}

func (s *recordingStore) load(t *testing.T, id string) *model.Job {
	t.Helper()
	job, err := s.JobStore.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}

type capturingNotifier struct {
	mu       sync.Mutex
	payloads []notify.JobFailurePayload
}

func (n *capturingNotifier) NotifyJobFailure(_ context.Context, payload notify.JobFailurePayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
}

func (n *capturingNotifier) all() []notify.JobFailurePayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.JobFailurePayload(nil), n.payloads...)
}

func decodeResult[T any](t *testing.T, job *model.Job, step model.StepName) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(job.Results[step], &out), "decode %s result", step)
	return out
}
