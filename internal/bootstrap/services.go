package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/adapters/heuristics"
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/data"
	"github.com/target/marketlens/internal/domain/sizing"
	httpx "github.com/target/marketlens/internal/http"
	"github.com/target/marketlens/internal/observability/notify/pagerduty"
	"github.com/target/marketlens/internal/observability/notify/slack"
	"github.com/target/marketlens/internal/observability/statsd"
	"github.com/target/marketlens/internal/service"
	"github.com/target/marketlens/internal/service/failurenotifier"
)

// metricsPrefix namespaces every emitted metric.
const metricsPrefix = "marketlens"

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Store        core.JobStore
	Cache        core.CacheRepository
	Engine       *sizing.Engine
	Orchestrator *service.AnalysisOrchestrator
	Analyses     *service.AnalysisJobService
	// Readiness lists the external dependencies probed by /readyz.
	Readiness     map[string]httpx.HealthChecker
	Observability ObservabilityContainer

	redis redis.UniversalClient
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	FailureNotifier *failurenotifier.Service
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	// RedisClient overrides the connection built from config when the store or cache needs one.
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  metricsPrefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Alerts),
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.AlertConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{Logger: baseLogger})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.SlackActive() {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDutyActive() {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger,
		Sinks:  sinks,
	})
}

// needsRedis reports whether the store or the research cache is backed by Redis.
func needsRedis(cfg *config.AppConfig) bool {
	return cfg.Store.Backend == config.StoreBackendRedis
}

// storage groups the job store and the research cache.
type storage struct {
	store     core.JobStore
	cache     core.CacheRepository
	readiness map[string]httpx.HealthChecker
}

// buildStorage picks the job store and cache backends. Redis backs both when selected so the
// cache is shared by every process; otherwise both live in memory.
func buildStorage(cfg *config.AppConfig, client redis.UniversalClient) (storage, error) {
	if cfg.Store.Backend != config.StoreBackendRedis {
		return storage{
			store:     data.NewMemoryJobStore(data.MemoryJobStoreOptions{}),
			cache:     data.NewMemoryCacheRepo(nil),
			readiness: map[string]httpx.HealthChecker{},
		}, nil
	}
	if client == nil {
		return storage{}, errors.New("redis job store requires a redis client")
	}

	store := data.NewRedisJobStore(data.RedisJobStoreOptions{
		Client:    client,
		KeyPrefix: cfg.Store.KeyPrefix + ":",
	})
	cache := data.NewRedisCacheRepo(client, cfg.Store.KeyPrefix+":cache:")
	return storage{
		store: store,
		cache: cache,
		readiness: map[string]httpx.HealthChecker{
			"job_store": store,
			"cache":     cache,
		},
	}, nil
}

// NewServices wires the job store, providers, pipeline and intake service from configuration.
// When the Redis backend is selected and deps.RedisClient is nil, a connection is opened.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := deps.RedisClient
	if client == nil && needsRedis(cfg) {
		var err error
		client, err = ConnectRedis(ctx, RedisConnectConfig{
			RedisConfig: cfg.Redis,
			OpTimeout:   cfg.Store.OpTimeout,
			Logger:      logger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("connect redis: %w", err)
		}
	}

	st, err := buildStorage(cfg, client)
	if err != nil {
		return ServiceContainer{}, err
	}

	observability := buildObservability(logger, cfg.Observability)
	container, err := buildDomainServices(&DomainServicesOptions{
		Storage:       st,
		Observability: observability,
		Config:        cfg,
		Logger:        logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}
	container.redis = client
	return container, nil
}

// DomainServicesOptions groups the inputs of buildDomainServices.
type DomainServicesOptions struct {
	Storage       storage
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using storage and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) (ServiceContainer, error) {
	cfg := opts.Config
	logger := opts.Logger
	metrics := opts.Observability.MetricsSink

	providers, err := buildAnalysisProviders(cfg.LLM, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	cascadeOpts := service.CascadeOptions{Timeout: cfg.LLM.Timeout, Logger: logger, Metrics: metrics}
	classifier, err := service.NewClassifierCascade(cascadeOpts, providers.Classifiers...)
	if err != nil {
		return ServiceContainer{}, err
	}
	segmenter, err := service.NewSegmenterCascade(cascadeOpts, providers.Segmenters...)
	if err != nil {
		return ServiceContainer{}, err
	}
	recommender, err := service.NewRecommenderCascade(cascadeOpts, providers.Recommenders...)
	if err != nil {
		return ServiceContainer{}, err
	}

	researchSvc, err := buildResearch(ResearchDeps{
		Config:  cfg.Research,
		Timeout: cfg.Analysis.ResearchTimeout,
		Cache:   opts.Storage.cache,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	engine := sizing.NewEngine(sizing.EngineOptions{Logger: logger})
	orchOpts := service.AnalysisOrchestratorOptions{
		Store:           opts.Storage.store,
		Classifier:      classifier,
		Segmenter:       segmenter,
		Recommender:     recommender,
		Fallback:        heuristics.NewDefaultSources(),
		Engine:          engine,
		ResearchTimeout: cfg.Analysis.ResearchTimeout,
		FinalizeTimeout: cfg.Analysis.FinalizeTimeout,
		Notifier:        opts.Observability.FailureNotifier,
		Metrics:         metrics,
		Logger:          logger,
	}
	orchOpts.SizingOptions.GeographicFocus = cfg.Analysis.GeographicFocusOverride()
	if researchSvc != nil {
		orchOpts.ProblemValidator = researchSvc
		orchOpts.Competition = researchSvc
		orchOpts.MarketData = researchSvc
	}
	orchestrator, err := service.NewAnalysisOrchestrator(orchOpts)
	if err != nil {
		return ServiceContainer{}, err
	}

	analyses, err := service.NewAnalysisJobService(service.AnalysisJobServiceOptions{
		Store:             opts.Storage.store,
		Pipeline:          orchestrator,
		MaxConcurrentJobs: cfg.Analysis.MaxConcurrentJobs,
		Logger:            logger,
		Metrics:           metrics,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	return ServiceContainer{
		Store:         opts.Storage.store,
		Cache:         opts.Storage.cache,
		Engine:        engine,
		Orchestrator:  orchestrator,
		Analyses:      analyses,
		Readiness:     opts.Storage.readiness,
		Observability: opts.Observability,
	}, nil
}

// Close releases connections owned by the container.
func (c *ServiceContainer) Close() error {
	var errs []error
	if c.Observability.MetricsSink != nil {
		errs = append(errs, c.Observability.MetricsSink.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}
