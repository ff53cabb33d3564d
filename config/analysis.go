package config

import (
	"strings"
	"time"
)

// AnalysisConfig tunes the analysis pipeline.
type AnalysisConfig struct {
	// MaxConcurrentJobs bounds how many pipelines run at once; extra jobs wait for a slot.
	MaxConcurrentJobs int64 `env:"ANALYSIS_MAX_CONCURRENT_JOBS" envDefault:"4"`

	// ResearchTimeout bounds each problem validation, competition and market data call.
	ResearchTimeout time.Duration `env:"ANALYSIS_RESEARCH_TIMEOUT" envDefault:"3m"`

	// FinalizeTimeout bounds the final status write, which still runs after cancellation.
	FinalizeTimeout time.Duration `env:"ANALYSIS_FINALIZE_TIMEOUT" envDefault:"10s"`

	// GeographicFocus overrides the default geographic multiplier when set to a value in (0,1].
	GeographicFocus float64 `env:"ANALYSIS_GEOGRAPHIC_FOCUS" envDefault:"0"`
}

// Sanitize applies guardrails to analysis configuration values.
func (a *AnalysisConfig) Sanitize() {
	if a.MaxConcurrentJobs < 1 {
		a.MaxConcurrentJobs = 1
	}
	if a.ResearchTimeout <= 0 {
		a.ResearchTimeout = 3 * time.Minute
	}
	if a.FinalizeTimeout <= 0 {
		a.FinalizeTimeout = 10 * time.Second
	}
	if a.GeographicFocus < 0 || a.GeographicFocus > 1 {
		a.GeographicFocus = 0
	}
}

// GeographicFocusOverride returns the configured override or nil when the default applies.
func (a *AnalysisConfig) GeographicFocusOverride() *float64 {
	if a.GeographicFocus <= 0 {
		return nil
	}
	v := a.GeographicFocus
	return &v
}

// LLMConfig configures the LLM-backed classifier, segmenter and recommender. Providers without
// an API key are left out of the cascade; the keyword rules always run last.
type LLMConfig struct {
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"    envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL"    envDefault:"openai/gpt-4o-mini"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`

	// Timeout bounds each provider attempt in the cascade.
	Timeout time.Duration `env:"LLM_TIMEOUT" envDefault:"40s"`

	// MaxRetries is passed to the client for transient HTTP failures.
	MaxRetries int `env:"LLM_MAX_RETRIES" envDefault:"1"`
}

// Sanitize applies guardrails to LLM configuration values.
func (l *LLMConfig) Sanitize() {
	l.OpenAIAPIKey = strings.TrimSpace(l.OpenAIAPIKey)
	l.OpenRouterAPIKey = strings.TrimSpace(l.OpenRouterAPIKey)
	l.OpenAIBaseURL = strings.TrimSpace(l.OpenAIBaseURL)
	l.OpenRouterBaseURL = strings.TrimSpace(l.OpenRouterBaseURL)
	if l.OpenAIModel = strings.TrimSpace(l.OpenAIModel); l.OpenAIModel == "" {
		l.OpenAIModel = "gpt-4o-mini"
	}
	if l.OpenRouterModel = strings.TrimSpace(l.OpenRouterModel); l.OpenRouterModel == "" {
		l.OpenRouterModel = "openai/gpt-4o-mini"
	}
	if l.OpenRouterBaseURL == "" {
		l.OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	if l.Timeout <= 0 {
		l.Timeout = 40 * time.Second
	}
	if l.MaxRetries < 0 {
		l.MaxRetries = 0
	}
}

// OpenAIEnabled reports whether the OpenAI provider has credentials.
func (l *LLMConfig) OpenAIEnabled() bool { return l.OpenAIAPIKey != "" }

// OpenRouterEnabled reports whether the OpenRouter provider has credentials.
func (l *LLMConfig) OpenRouterEnabled() bool { return l.OpenRouterAPIKey != "" }

// ResearchConfig configures the research backend client.
type ResearchConfig struct {
	// BaseURL of the research service. Empty disables problem validation, competition
	// analysis and the API market sizing phase; sizing then runs locally.
	BaseURL string `env:"RESEARCH_BASE_URL"`
	APIKey  string `env:"RESEARCH_API_KEY"`

	// SourcesExpression is the JMESPath expression selecting raw market observations from
	// the market size response.
	SourcesExpression string `env:"RESEARCH_SOURCES_EXPRESSION" envDefault:"data.sources || sources"`

	// CacheEnabled reuses successful research responses for identical requests.
	CacheEnabled bool          `env:"RESEARCH_CACHE_ENABLED" envDefault:"true"`
	CacheTTL     time.Duration `env:"RESEARCH_CACHE_TTL"     envDefault:"6h"`
}

// Sanitize applies guardrails to research configuration values.
func (r *ResearchConfig) Sanitize() {
	r.BaseURL = strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
	r.APIKey = strings.TrimSpace(r.APIKey)
	if r.SourcesExpression = strings.TrimSpace(r.SourcesExpression); r.SourcesExpression == "" {
		r.SourcesExpression = "data.sources || sources"
	}
	if r.CacheTTL <= 0 {
		r.CacheTTL = 6 * time.Hour
	}
}

// Enabled reports whether a research backend is configured.
func (r *ResearchConfig) Enabled() bool { return r.BaseURL != "" }
