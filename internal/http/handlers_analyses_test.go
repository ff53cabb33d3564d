package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/mocks"
	"github.com/target/marketlens/internal/service"
	"go.uber.org/mock/gomock"
)

// noopPipeline leaves jobs processing; the handler tests only care about intake.
type noopPipeline struct{}

func (noopPipeline) Run(context.Context, string) error { return nil }

func newHandlersWithMock(t *testing.T) (*AnalysisHandlers, *mocks.MockJobStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	svc, err := service.NewAnalysisJobService(service.AnalysisJobServiceOptions{
		Store:    store,
		Pipeline: noopPipeline{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return &AnalysisHandlers{Svc: svc}, store
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateAnalysis_Accepted(t *testing.T) {
	h, store := newHandlersWithMock(t)

	var stored *model.Job
	store.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job *model.Job) error {
		stored = job
		return nil
	})

	body := `{"business_idea":"  A subscription box of healthy dog treats  ","problem_statement":"Treats are unhealthy"}`
	r := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.CreateAnalysis(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)
	got := decodeBody[createAnalysisResponse](t, w)
	require.NotNil(t, stored)
	assert.Equal(t, stored.ID, got.JobID)
	assert.Equal(t, model.JobStatusProcessing, got.Status)
	assert.Equal(t, "/api/analyses/"+stored.ID, w.Header().Get("Location"))
	assert.Equal(t, "A subscription box of healthy dog treats", stored.Input.BusinessIdea)
}

func TestCreateAnalysis_ValidationError(t *testing.T) {
	h, _ := newHandlersWithMock(t)

	r := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{"business_idea":"short"}`))
	w := httptest.NewRecorder()

	h.CreateAnalysis(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	got := decodeBody[errorBody](t, w)
	assert.Equal(t, string(apperrors.ErrCodeValidation), got.Error)
	assert.Equal(t, "business_idea", got.Field)
}

func TestCreateAnalysis_BadJSON(t *testing.T) {
	h, _ := newHandlersWithMock(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: `{"business_idea":`},
		{name: "unknown field", body: `{"idea":"A subscription box of dog treats"}`},
		{name: "empty", body: ``},
		{name: "trailing data", body: `{"business_idea":"A subscription box of dog treats"} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.CreateAnalysis(w, httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "invalid_json", decodeBody[errorBody](t, w).Error)
		})
	}
}

func TestCreateAnalysis_StoreFailureIsInternal(t *testing.T) {
	h, store := newHandlersWithMock(t)
	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(assert.AnError)

	w := httptest.NewRecorder()
	h.CreateAnalysis(w, httptest.NewRequest(http.MethodPost, "/api/analyses",
		strings.NewReader(`{"business_idea":"A subscription box of dog treats"}`)))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	got := decodeBody[errorBody](t, w)
	assert.Equal(t, "internal error", got.Message)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

// fakeAnalyses serves canned jobs by ID.
type fakeAnalyses struct {
	jobs map[string]*model.Job
}

func (f *fakeAnalyses) Create(context.Context, model.AnalysisInput) (*model.Job, error) {
	return nil, apperrors.Unavailable("not in this test")
}

func (f *fakeAnalyses) Get(_ context.Context, id string) (*model.Job, error) {
	if job, ok := f.jobs[id]; ok {
		return job, nil
	}
	return nil, apperrors.NotFoundf("job %s not found", id)
}

func completedJob(now time.Time) *model.Job {
	job := model.NewJob(model.AnalysisInput{BusinessIdea: "A subscription box of dog treats"}, now)
	job.ID = "job-1"
	job.Status = model.JobStatusComplete
	for _, step := range model.AllSteps() {
		job.Progress[step] = model.StepComplete
	}
	job.Results[model.StepClassification] = json.RawMessage(`{"industry":"Pet Care","confidence":0.8}`)
	summary := model.SummarizeProgress(job.Progress)
	job.Summary = &summary
	job.CompletedAt = &now
	return job
}

func TestGetAnalysis_And_Progress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	router := NewRouter(RouterServices{Analyses: &fakeAnalyses{jobs: map[string]*model.Job{"job-1": completedJob(now)}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/job-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	job := decodeBody[model.Job](t, w)
	assert.Equal(t, model.JobStatusComplete, job.Status)
	assert.JSONEq(t, `{"industry":"Pet Care","confidence":0.8}`, string(job.Results[model.StepClassification]))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/job-1/progress", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var progress map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &progress))
	assert.NotContains(t, progress, "results")
	assert.JSONEq(t, `"complete"`, string(progress["status"]))
	assert.Contains(t, string(progress["summary"]), `"completed_analyses":["classification"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analyses/missing/progress", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.ErrCodeNotFound), decodeBody[errorBody](t, w).Error)
}

func TestCreateAnalysis_BodyLimit(t *testing.T) {
	router := NewRouter(RouterServices{Analyses: &fakeAnalyses{}, MaxBodyBytes: 64})

	body, err := json.Marshal(model.AnalysisInput{BusinessIdea: strings.Repeat("dog treats ", 20)})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
