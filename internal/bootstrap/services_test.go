package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/data"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/service"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{name: "no services enabled", want: 0},
		{name: "http only", modes: []config.ServiceMode{config.ServiceModeHTTP}, want: 1},
		{name: "all services enabled", modes: config.ValidServiceModes(), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			assert.Equal(t, tt.want, errorChannelCapacity(enabled))
			assert.Equal(t, tt.want+1, errorChannelBufferSize(enabled))
		})
	}
}

func TestGetEnabledServices(t *testing.T) {
	assert.Equal(t, []string{"http", "reaper"}, GetEnabledServices(&config.AppConfig{Services: "reaper, http"}))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "scheduler"}))
	assert.Empty(t, GetEnabledServices(nil))

	require.Error(t, ValidateServiceConfig(&config.AppConfig{Services: ""}))
	require.NoError(t, ValidateServiceConfig(&config.AppConfig{Services: "http"}))
}

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{Services: "http,reaper"}
	cfg.Sanitize()
	return cfg
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewServices_MemoryDefaults(t *testing.T) {
	svcs, err := NewServices(context.Background(), &ServiceDeps{Config: testConfig(), Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svcs.Close() })

	assert.IsType(t, &data.MemoryJobStore{}, svcs.Store)
	assert.IsType(t, &data.MemoryCacheRepo{}, svcs.Cache)
	assert.Empty(t, svcs.Readiness)
	require.NotNil(t, svcs.Analyses)
	require.NotNil(t, svcs.Orchestrator)
	require.NotNil(t, svcs.Engine)
}

func TestNewServices_RequiresConfig(t *testing.T) {
	_, err := NewServices(context.Background(), nil)
	require.Error(t, err)
	_, err = NewServices(context.Background(), &ServiceDeps{})
	require.Error(t, err)
}

func TestBuildStorage_RedisWithoutClient(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = config.StoreBackendRedis
	_, err := buildStorage(cfg, nil)
	require.Error(t, err)
}

func TestBuildAnalysisProviders(t *testing.T) {
	p, err := buildAnalysisProviders(config.LLMConfig{}, discardLogger())
	require.NoError(t, err)
	require.Len(t, p.Classifiers, 1)
	assert.Equal(t, "rules", p.Classifiers[0].Name())
	assert.Equal(t, "templates", p.Segmenters[0].Name())
	assert.Equal(t, "scoring", p.Recommenders[0].Name())

	p, err = buildAnalysisProviders(config.LLMConfig{
		OpenAIAPIKey:      "sk-test",
		OpenRouterAPIKey:  "or-test",
		OpenRouterBaseURL: "https://openrouter.ai/api/v1",
	}, discardLogger())
	require.NoError(t, err)
	names := make([]string, 0, len(p.Classifiers))
	for _, c := range p.Classifiers {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"openai", "openrouter", "rules"}, names)
	assert.Len(t, p.Segmenters, 3)
	assert.Len(t, p.Recommenders, 3)
}

func TestBuildResearch(t *testing.T) {
	svc, err := buildResearch(ResearchDeps{Logger: discardLogger()})
	require.NoError(t, err)
	assert.Nil(t, svc)

	cfg := config.ResearchConfig{BaseURL: "http://research.local", CacheEnabled: true}
	cfg.Sanitize()
	svc, err = buildResearch(ResearchDeps{
		Config:  cfg,
		Timeout: time.Minute,
		Cache:   data.NewMemoryCacheRepo(nil),
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	assert.IsType(t, &service.CachedResearch{}, svc)

	cfg.SourcesExpression = "data.["
	_, err = buildResearch(ResearchDeps{Config: cfg, Logger: discardLogger()})
	require.Error(t, err)
}

// Without research or LLM keys the keyword heuristics and default sources complete a job.
func TestServices_RunSyncWithHeuristics(t *testing.T) {
	svcs, err := NewServices(context.Background(), &ServiceDeps{Config: testConfig(), Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svcs.Close() })

	job, err := svcs.Analyses.RunSync(context.Background(), model.AnalysisInput{
		BusinessIdea: "A mobile app that helps small restaurants manage online food delivery orders",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, job.Status)
	assert.Equal(t, model.StepComplete, job.Progress[model.StepClassification])
	assert.Equal(t, model.StepSkipped, job.Progress[model.StepProblemValidation])
	assert.Equal(t, model.StepComplete, job.Progress[model.StepMarketSizing])
	assert.Equal(t, model.StepComplete, job.Progress[model.StepRecommendation])
}

func TestBuildHTTPHandler(t *testing.T) {
	cfg := testConfig()
	svcs, err := NewServices(context.Background(), &ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svcs.Close() })

	h := BuildHTTPHandler(cfg, svcs, discardLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/market-sizing",
		strings.NewReader(`{"sources":[{"value":2,"unit":"billion","year":2024,"publisher":"Statista"}]}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}
