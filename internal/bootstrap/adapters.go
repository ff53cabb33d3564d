package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/adapters/heuristics"
	"github.com/target/marketlens/internal/adapters/llm"
	"github.com/target/marketlens/internal/adapters/reaper"
	"github.com/target/marketlens/internal/adapters/research"
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/observability/statsd"
	"github.com/target/marketlens/internal/service"
)

// analysisProviders lists the providers of each cascade in the order they are tried.
type analysisProviders struct {
	Classifiers  []core.Classifier
	Segmenters   []core.Segmenter
	Recommenders []core.Recommender
}

// buildLLMClients creates one client per configured provider. OpenAI is tried before OpenRouter.
func buildLLMClients(cfg config.LLMConfig, logger *slog.Logger) ([]*llm.Client, error) {
	var clients []*llm.Client

	if cfg.OpenAIEnabled() {
		c, err := llm.NewClient(llm.Options{
			Name:       "openai",
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		clients = append(clients, c)
	}

	if cfg.OpenRouterEnabled() {
		c, err := llm.NewClient(llm.Options{
			Name:       "openrouter",
			APIKey:     cfg.OpenRouterAPIKey,
			Model:      cfg.OpenRouterModel,
			BaseURL:    cfg.OpenRouterBaseURL,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create openrouter client: %w", err)
		}
		clients = append(clients, c)
	}

	return clients, nil
}

// buildAnalysisProviders puts the LLM providers first and the keyword heuristics last, so
// analyses still complete without any API key.
func buildAnalysisProviders(cfg config.LLMConfig, logger *slog.Logger) (analysisProviders, error) {
	clients, err := buildLLMClients(cfg, logger)
	if err != nil {
		return analysisProviders{}, err
	}

	var p analysisProviders
	for _, c := range clients {
		p.Classifiers = append(p.Classifiers, llm.NewClassifier(c))
		p.Segmenters = append(p.Segmenters, llm.NewSegmenter(c))
		p.Recommenders = append(p.Recommenders, llm.NewRecommender(c))
	}
	p.Classifiers = append(p.Classifiers, heuristics.NewRuleClassifier())
	p.Segmenters = append(p.Segmenters, heuristics.NewTemplateSegmenter())
	p.Recommenders = append(p.Recommenders, heuristics.NewScoringRecommender())

	if len(clients) == 0 {
		logger.Warn("no LLM provider configured; using keyword heuristics only")
	}
	return p, nil
}

// ResearchDeps groups the dependencies of the research backend.
type ResearchDeps struct {
	Config  config.ResearchConfig
	Timeout time.Duration
	// Cache is used when caching is enabled; nil disables it.
	Cache   core.CacheRepository
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// buildResearch returns nil when no research backend is configured.
//
//nolint:ireturn // callers depend on the port, the cache wrapper is optional.
func buildResearch(deps ResearchDeps) (core.ResearchService, error) {
	if !deps.Config.Enabled() {
		deps.Logger.Warn("research backend not configured; research steps will be skipped")
		return nil, nil
	}

	client, err := research.NewClient(research.Options{
		BaseURL:           deps.Config.BaseURL,
		APIKey:            deps.Config.APIKey,
		SourcesExpression: deps.Config.SourcesExpression,
		HTTPClient:        &http.Client{Timeout: deps.Timeout},
		Logger:            deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create research client: %w", err)
	}

	if !deps.Config.CacheEnabled || deps.Cache == nil {
		return client, nil
	}
	cached, err := service.NewCachedResearch(service.CachedResearchOptions{
		Research: client,
		Cache:    deps.Cache,
		TTL:      deps.Config.CacheTTL,
		Logger:   deps.Logger,
		Metrics:  deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create research cache: %w", err)
	}
	return cached, nil
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	Store   core.JobStore
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// NewReaperRunner builds the reaper runner over the job store.
func NewReaperRunner(cfg ReaperConfig) (*reaper.Runner, error) {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Store:   cfg.Store,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create reaper runner: %w", err)
	}
	return runner, nil
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := NewReaperRunner(cfg)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}
