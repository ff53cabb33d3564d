package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/marketlens/config"
	httpx "github.com/target/marketlens/internal/http"
	"github.com/target/marketlens/internal/service"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives the listener error when the server stops unexpectedly.
	ErrCh chan<- error
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := BuildHTTPHandler(appCfg, cfg.Services, logger)
	if appCfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", appCfg.HTTP.CompressionLevel)
	}

	return startServer(serverParams{
		Logger:            logger,
		Handler:           handler,
		Addr:              appCfg.HTTP.Addr,
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		ErrCh:             cfg.ErrCh,
	})
}

// BuildHTTPHandler builds the router and its middleware from the container.
func BuildHTTPHandler(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) http.Handler {
	rs := httpx.RouterServices{
		GeographicFocus:    cfg.Analysis.GeographicFocusOverride(),
		Readiness:          services.Readiness,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		CompressionEnabled: cfg.HTTP.CompressionEnabled,
		CompressionLevel:   cfg.HTTP.CompressionLevel,
		Logger:             logger,
	}
	// Leave the interfaces nil rather than holding typed nil pointers.
	if services.Analyses != nil {
		rs.Analyses = services.Analyses
	}
	if services.Engine != nil {
		rs.Sizing = services.Engine
	}
	return httpx.NewRouter(rs)
}

type serverParams struct {
	Logger            *slog.Logger
	Handler           http.Handler
	Addr              string
	ReadHeaderTimeout time.Duration
	ErrCh             chan<- error
}

func startServer(p serverParams) *http.Server {
	addr := p.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	// Analyses run asynchronously, so every handler answers well within the write timeout.
	server := &http.Server{
		Addr:              addr,
		Handler:           p.Handler,
		ReadHeaderTimeout: p.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		p.Logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Logger.Error("HTTP server failed", "error", err)
			if p.ErrCh != nil {
				select {
				case p.ErrCh <- err:
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context  context.Context
	Server   *http.Server
	Analyses *service.AnalysisJobService
	Timeout  time.Duration
	Logger   *slog.Logger
}

// ShutdownHTTPServer stops accepting requests, then waits for in-flight analyses. Analyses
// still running at the deadline are canceled and their jobs marked failed.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	var errs []error
	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if cfg.Analyses != nil {
		if err := cfg.Analyses.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
