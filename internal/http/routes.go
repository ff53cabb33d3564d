package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Analyses AnalysisService
	Sizing   SizingEngine
	// GeographicFocus is the default geographic focus for direct sizing requests.
	GeographicFocus *float64
	// Readiness lists dependencies probed by GET /readyz.
	Readiness map[string]HealthChecker

	MaxBodyBytes       int64
	CompressionEnabled bool
	CompressionLevel   int
	Logger             *slog.Logger
}

// NewRouter creates the API router with its middleware stack.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()

	if services.Analyses != nil {
		registerAnalysisRoutes(mux, &AnalysisHandlers{Svc: services.Analyses, Logger: logger})
	}
	if services.Sizing != nil {
		mux.HandleFunc("POST /api/market-sizing", (&SizingHandlers{
			Engine:          services.Sizing,
			GeographicFocus: services.GeographicFocus,
			Logger:          logger,
		}).ComputeSizing)
	}
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)
	mux.HandleFunc("GET /readyz", readinessHandler(services.Readiness))

	mws := []Middleware{
		RequestID(),
		Logging(logger),
		Recover(logger),
		LimitBody(services.MaxBodyBytes),
	}
	if services.CompressionEnabled {
		mws = append(mws, Compression(CompressionConfig{Level: services.CompressionLevel, Logger: logger}))
	}
	return Chain(mux, mws...)
}

func registerAnalysisRoutes(mux *http.ServeMux, h *AnalysisHandlers) {
	mux.HandleFunc("POST /api/analyses", h.CreateAnalysis)
	mux.HandleFunc("GET /api/analyses/{id}", h.GetAnalysis)
	mux.HandleFunc("GET /api/analyses/{id}/progress", h.GetProgress)
}
