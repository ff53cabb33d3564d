package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/marketlens/config"
	"github.com/target/marketlens/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}

	logger := bootstrap.InitLogger(cfg.IsDev)
	if err := run(ctx, logger, &cfg); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) error {
	if err := bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}

	logStartupInfo(ctx, logger, cfg)

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close services failed", "error", cerr)
		}
	}()

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting marketlens service",
		"job_store", cfg.Store.Backend,
		"research_enabled", cfg.Research.Enabled(),
		"openai_enabled", cfg.LLM.OpenAIEnabled(),
		"openrouter_enabled", cfg.LLM.OpenRouterEnabled(),
		"max_concurrent_jobs", cfg.Analysis.MaxConcurrentJobs,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}
