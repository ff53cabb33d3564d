package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:  "single service - http",
			input: "http",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP: true,
			},
		},
		{
			name:  "single service - reaper",
			input: "reaper",
			expected: map[ServiceMode]bool{
				ServiceModeReaper: true,
			},
		},
		{
			name:  "services with spaces",
			input: " http , reaper ",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{
			name:  "duplicate services",
			input: "http,http,reaper",
			expected: map[ServiceMode]bool{
				ServiceModeHTTP:   true,
				ServiceModeReaper: true,
			},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only spaces and commas",
			input:       " , , ",
			expectError: true,
		},
		{
			name:        "invalid service name",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d services, got %d", len(tt.expected), len(result))
				return
			}

			for service, expected := range tt.expected {
				if result[service] != expected {
					t.Errorf("expected service %s to be %v, got %v", service, expected, result[service])
				}
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name           string
		services       string
		expectedHTTP   bool
		expectedReaper bool
	}{
		{name: "http only", services: "http", expectedHTTP: true},
		{name: "reaper only", services: "reaper", expectedReaper: true},
		{name: "both", services: "http,reaper", expectedHTTP: true, expectedReaper: true},
		{name: "invalid disables everything", services: "http,invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}

			if cfg.IsHTTPServerEnabled() != tt.expectedHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v, got %v", tt.expectedHTTP, cfg.IsHTTPServerEnabled())
			}
			if cfg.IsReaperEnabled() != tt.expectedReaper {
				t.Errorf("IsReaperEnabled(): expected %v, got %v", tt.expectedReaper, cfg.IsReaperEnabled())
			}
		})
	}
}

func TestAppConfig_ParseDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("RESEARCH_BASE_URL", "")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Services != "http,reaper" {
		t.Errorf("expected default services, got %q", cfg.Services)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("expected memory store by default, got %q", cfg.Store.Backend)
	}
	if cfg.Analysis.MaxConcurrentJobs != 4 {
		t.Errorf("expected 4 concurrent jobs, got %d", cfg.Analysis.MaxConcurrentJobs)
	}
	if cfg.Analysis.ResearchTimeout != 3*time.Minute {
		t.Errorf("expected 3m research timeout, got %v", cfg.Analysis.ResearchTimeout)
	}
	if cfg.LLM.Timeout != 40*time.Second {
		t.Errorf("expected 40s llm timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.Reaper.Retention != 24*time.Hour {
		t.Errorf("expected 24h retention, got %v", cfg.Reaper.Retention)
	}
	if cfg.Research.Enabled() {
		t.Error("expected research to be disabled without a base url")
	}
	if cfg.LLM.OpenAIEnabled() || cfg.LLM.OpenRouterEnabled() {
		t.Error("expected llm providers to be disabled without api keys")
	}
	if cfg.Analysis.GeographicFocusOverride() != nil {
		t.Error("expected no geographic override by default")
	}
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("SERVICES", "reaper")
	t.Setenv("JOB_STORE", "Redis")
	t.Setenv("JOB_STORE_KEY_PREFIX", "ml:")
	t.Setenv("REDIS_URI", "redis:6379")
	t.Setenv("ANALYSIS_MAX_CONCURRENT_JOBS", "8")
	t.Setenv("ANALYSIS_GEOGRAPHIC_FOCUS", "0.25")
	t.Setenv("OPENAI_API_KEY", " sk-test ")
	t.Setenv("RESEARCH_BASE_URL", "https://research.example.com/")
	t.Setenv("REAPER_RETENTION", "48h")
	t.Setenv("JOB_ALERTS_ENABLED", "true")
	t.Setenv("JOB_ALERTS_SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/test")
	t.Setenv("JOB_ALERTS_SLACK_JOB_URL_PREFIX", "https://marketlens.local/api/analyses/")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Store.Backend != StoreBackendRedis {
		t.Errorf("expected redis backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.KeyPrefix != "ml" {
		t.Errorf("expected trimmed key prefix, got %q", cfg.Store.KeyPrefix)
	}
	if cfg.Redis.URI != "redis:6379" {
		t.Errorf("expected redis uri from env, got %q", cfg.Redis.URI)
	}
	if cfg.Analysis.MaxConcurrentJobs != 8 {
		t.Errorf("expected 8 concurrent jobs, got %d", cfg.Analysis.MaxConcurrentJobs)
	}
	if got := cfg.Analysis.GeographicFocusOverride(); got == nil || *got != 0.25 {
		t.Errorf("expected geographic override 0.25, got %v", got)
	}
	if !cfg.LLM.OpenAIEnabled() || cfg.LLM.OpenAIAPIKey != "sk-test" {
		t.Errorf("expected trimmed openai key, got %q", cfg.LLM.OpenAIAPIKey)
	}
	if cfg.Research.BaseURL != "https://research.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Research.BaseURL)
	}
	if cfg.Reaper.Retention != 48*time.Hour {
		t.Errorf("expected 48h retention, got %v", cfg.Reaper.Retention)
	}
	if !cfg.Observability.Alerts.SlackActive() || cfg.Observability.Alerts.PagerDutyActive() {
		t.Error("expected only the slack alert sink to be active")
	}
	if cfg.Observability.Alerts.Slack.JobURLPrefix != "https://marketlens.local/api/analyses" {
		t.Errorf("expected job url prefix from env, got %q", cfg.Observability.Alerts.Slack.JobURLPrefix)
	}
	if cfg.IsHTTPServerEnabled() {
		t.Error("expected http to be disabled")
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{
		Interval:         time.Second,
		ProcessingMaxAge: time.Minute,
		Retention:        time.Minute,
		BatchSize:        0,
	}
	cfg.Sanitize()

	if cfg.Interval != time.Minute {
		t.Errorf("expected interval floor of 1m, got %v", cfg.Interval)
	}
	if cfg.ProcessingMaxAge != 10*time.Minute {
		t.Errorf("expected processing max age floor of 10m, got %v", cfg.ProcessingMaxAge)
	}
	if cfg.Retention != time.Hour {
		t.Errorf("expected retention floor of 1h, got %v", cfg.Retention)
	}
	if cfg.BatchSize != 1 {
		t.Errorf("expected batch size floor of 1, got %d", cfg.BatchSize)
	}

	cfg = ReaperConfig{Interval: time.Hour, ProcessingMaxAge: 3 * time.Hour, Retention: 2 * time.Hour, BatchSize: 50000}
	cfg.Sanitize()
	if cfg.Retention != 3*time.Hour {
		t.Errorf("expected retention to cover processing max age, got %v", cfg.Retention)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("expected batch size cap of 10000, got %d", cfg.BatchSize)
	}
}

func TestAnalysisConfig_Sanitize(t *testing.T) {
	cfg := AnalysisConfig{MaxConcurrentJobs: 0, ResearchTimeout: -1, GeographicFocus: 1.5}
	cfg.Sanitize()

	if cfg.MaxConcurrentJobs != 1 {
		t.Errorf("expected concurrency floor of 1, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.ResearchTimeout != 3*time.Minute {
		t.Errorf("expected default research timeout, got %v", cfg.ResearchTimeout)
	}
	if cfg.FinalizeTimeout != 10*time.Second {
		t.Errorf("expected default finalize timeout, got %v", cfg.FinalizeTimeout)
	}
	if cfg.GeographicFocusOverride() != nil {
		t.Error("expected out of range geographic focus to be ignored")
	}
}

func TestMetricsConfig_Sanitize(t *testing.T) {
	cfg := MetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.IsEnabled() {
		t.Fatalf("expected metrics to be disabled when address is empty")
	}

	cfg = MetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestAlertConfig_Sanitize(t *testing.T) {
	cfg := AlertConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack: SlackAlertConfig{
			WebhookURL:   " ",
			JobURLPrefix: " https://marketlens.local/api/analyses/ ",
		},
		PagerDuty: PagerDutyAlertConfig{RoutingKey: " "},
	}

	cfg.Sanitize()

	if cfg.Timeout != 5*time.Second {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit != 0 {
		t.Fatalf("expected retry limit to be clamped to 0, got %d", cfg.RetryLimit)
	}
	if cfg.SlackActive() {
		t.Fatal("expected slack to be inactive without a webhook url")
	}
	if cfg.PagerDutyActive() {
		t.Fatal("expected pagerduty to be inactive without a routing key")
	}
	if cfg.Slack.JobURLPrefix != "https://marketlens.local/api/analyses" {
		t.Fatalf("expected job url prefix to be trimmed, got %q", cfg.Slack.JobURLPrefix)
	}

	cfg = AlertConfig{
		Slack:     SlackAlertConfig{WebhookURL: "https://hooks.slack.com/services/test"},
		PagerDuty: PagerDutyAlertConfig{RoutingKey: "abc"},
	}
	cfg.Sanitize()

	if cfg.SlackActive() || cfg.PagerDutyActive() {
		t.Fatal("expected sinks to stay inactive while alerts are disabled")
	}

	cfg.Enabled = true
	if !cfg.SlackActive() || !cfg.PagerDutyActive() {
		t.Fatal("expected credentialed sinks to be active once alerts are enabled")
	}
}
