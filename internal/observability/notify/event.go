// Package notify defines the failure notification payload shared by all alert sinks.
package notify

import (
	"context"
	"strings"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// JobFailurePayload captures the canonical data we emit when an analysis job ends failed.
type JobFailurePayload struct {
	JobID string
	// Idea is a truncated copy of the submitted business idea for context.
	Idea           string
	FailedStep     string
	FailedAnalyses []string
	Error          string
	ErrorClass     string
	Severity       string
	OccurredAt     time.Time
	Metadata       map[string]string
}

// Sink describes a destination capable of consuming job failure notifications.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

// SendJobFailure implements the Sink interface.
func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// FallbackString returns fallback when value is blank.
func FallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
