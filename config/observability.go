package config

import (
	"strings"
	"time"
)

// ObservabilityConfig holds the StatsD sink and the failed-job alert sinks.
type ObservabilityConfig struct {
	Metrics MetricsConfig
	Alerts  AlertConfig `envPrefix:"JOB_ALERTS_"`
}

// Sanitize trims addresses and drops sinks that cannot be reached.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Alerts.Sanitize()
}

// MetricsConfig controls step and job counters sent to StatsD.
type MetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
}

// Sanitize disables metrics when no address remains after trimming.
func (c *MetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	c.Enabled = c.Enabled && c.StatsdAddress != ""
}

// IsEnabled reports whether a StatsD client should be built.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// AlertConfig controls notifications raised when an analysis job fails.
// A sink is active once its credential is set; Enabled gates all of them.
type AlertConfig struct {
	Enabled    bool                 `env:"ENABLED"     envDefault:"false"`
	Timeout    time.Duration        `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int                  `env:"RETRY_LIMIT" envDefault:"3"`
	Slack      SlackAlertConfig     `envPrefix:"SLACK_"`
	PagerDuty  PagerDutyAlertConfig `envPrefix:"PAGERDUTY_"`
}

// SlackAlertConfig carries the fields the Slack webhook sender reads.
type SlackAlertConfig struct {
	WebhookURL   string `env:"WEBHOOK_URL"`
	Channel      string `env:"CHANNEL"`
	Username     string `env:"USERNAME"       envDefault:"marketlens"`
	JobURLPrefix string `env:"JOB_URL_PREFIX"` // joined with the job id to link the alert
}

// PagerDutyAlertConfig carries the fields the Events API v2 sender reads.
// An empty Component falls back to the sender's own default.
type PagerDutyAlertConfig struct {
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"      envDefault:"marketlens"`
	Component  string `env:"COMPONENT"`
}

// Sanitize clamps delivery settings and trims sink credentials.
func (c *AlertConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.RetryLimit = max(c.RetryLimit, 0)

	c.Slack.WebhookURL = strings.TrimSpace(c.Slack.WebhookURL)
	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
	c.Slack.JobURLPrefix = strings.TrimRight(strings.TrimSpace(c.Slack.JobURLPrefix), "/")
	c.PagerDuty.RoutingKey = strings.TrimSpace(c.PagerDuty.RoutingKey)
	c.PagerDuty.Source = strings.TrimSpace(c.PagerDuty.Source)
	c.PagerDuty.Component = strings.TrimSpace(c.PagerDuty.Component)
}

// SlackActive reports whether failed jobs should be posted to Slack.
func (c *AlertConfig) SlackActive() bool {
	return c.Enabled && c.Slack.WebhookURL != ""
}

// PagerDutyActive reports whether failed jobs should page through PagerDuty.
func (c *AlertConfig) PagerDutyActive() bool {
	return c.Enabled && c.PagerDuty.RoutingKey != ""
}
