package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
	"github.com/target/marketlens/internal/observability/metrics"
	"github.com/target/marketlens/internal/observability/statsd"
)

// DefaultProviderTimeout bounds each provider attempt in a cascade.
const DefaultProviderTimeout = 40 * time.Second

// CascadeOptions configures a provider cascade.
type CascadeOptions struct {
	// Timeout bounds each attempt; defaults to DefaultProviderTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics statsd.Sink
}

type namedProvider interface {
	Name() string
}

type cascade[P namedProvider] struct {
	kind      string
	providers []P
	timeout   time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

func newCascade[P namedProvider](kind string, providers []P, opts CascadeOptions) (cascade[P], error) {
	if len(providers) == 0 {
		return cascade[P]{}, fmt.Errorf("%s cascade: at least one provider is required", kind)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return cascade[P]{
		kind:      kind,
		providers: providers,
		timeout:   timeout,
		logger:    resolveLogger(opts.Logger).With("component", kind+"_cascade"),
		metrics:   opts.Metrics,
	}, nil
}

// runCascade tries each provider in order and stops at the first success. When every provider
// fails the error is unavailable and lists each provider's failure.
func runCascade[P namedProvider, R any](
	ctx context.Context,
	c cascade[P],
	call func(context.Context, P) (*R, error),
) (*R, string, error) {
	failures := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, "", apperrors.Wrapf(err, apperrors.ErrCodeCanceled, "%s canceled", c.kind)
		}

		name := p.Name()
		start := time.Now()
		out, err := callWithTimeout(ctx, c.kind+" via "+name, c.timeout, func(ctx context.Context) (*R, error) {
			return call(ctx, p)
		})
		if err == nil && out == nil {
			err = apperrors.Internalf("%s returned no result", name)
		}

		attempt := metrics.ProviderAttempt{
			Kind:     c.kind,
			Provider: name,
			Result:   metrics.ResultSuccess,
			Duration: time.Since(start),
		}
		if err != nil {
			attempt.Result = metrics.ResultError
			attempt.Err = err
		}
		metrics.EmitProviderAttempt(c.metrics, attempt)

		if err == nil {
			return out, name, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil, "", err
		}

		c.logger.WarnContext(ctx, "provider failed, trying next",
			"provider", name,
			"error", err,
			"error_code", ErrorCode(err),
		)
		failures = append(failures, fmt.Sprintf("%s: %v", name, err))
	}
	return nil, "", apperrors.Unavailable(fmt.Sprintf("all %s providers failed (%s)", c.kind, strings.Join(failures, "; ")))
}

func providerNames[P namedProvider](providers []P) string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

// ClassifierCascade is an ordered list of classifiers tried until one succeeds.
type ClassifierCascade struct {
	c cascade[core.Classifier]
}

var _ core.Classifier = (*ClassifierCascade)(nil)

// NewClassifierCascade builds a cascade over the given classifiers in priority order.
func NewClassifierCascade(opts CascadeOptions, classifiers ...core.Classifier) (*ClassifierCascade, error) {
	c, err := newCascade("classification", compact(classifiers), opts)
	if err != nil {
		return nil, err
	}
	return &ClassifierCascade{c: c}, nil
}

// Name lists the providers in order.
func (cc *ClassifierCascade) Name() string { return providerNames(cc.c.providers) }

// Classify returns the first successful classification, stamped with its provider.
func (cc *ClassifierCascade) Classify(ctx context.Context, in model.AnalysisInput) (*model.Classification, error) {
	out, name, err := runCascade(ctx, cc.c, func(ctx context.Context, p core.Classifier) (*model.Classification, error) {
		return p.Classify(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	if out.Provider == "" {
		out.Provider = name
	}
	return out, nil
}

// SegmenterCascade is an ordered list of segmenters tried until one succeeds.
type SegmenterCascade struct {
	c cascade[core.Segmenter]
}

var _ core.Segmenter = (*SegmenterCascade)(nil)

// NewSegmenterCascade builds a cascade over the given segmenters in priority order.
func NewSegmenterCascade(opts CascadeOptions, segmenters ...core.Segmenter) (*SegmenterCascade, error) {
	c, err := newCascade("segmentation", compact(segmenters), opts)
	if err != nil {
		return nil, err
	}
	return &SegmenterCascade{c: c}, nil
}

// Name lists the providers in order.
func (sc *SegmenterCascade) Name() string { return providerNames(sc.c.providers) }

// Segment returns the first successful segmentation, stamped with its provider.
func (sc *SegmenterCascade) Segment(ctx context.Context, in model.AnalysisInput, c *model.Classification) (*model.Segmentation, error) {
	out, name, err := runCascade(ctx, sc.c, func(ctx context.Context, p core.Segmenter) (*model.Segmentation, error) {
		return p.Segment(ctx, in, c)
	})
	if err != nil {
		return nil, err
	}
	if out.Provider == "" {
		out.Provider = name
	}
	return out, nil
}

// RecommenderCascade is an ordered list of recommenders tried until one succeeds.
type RecommenderCascade struct {
	c cascade[core.Recommender]
}

var _ core.Recommender = (*RecommenderCascade)(nil)

// NewRecommenderCascade builds a cascade over the given recommenders in priority order.
func NewRecommenderCascade(opts CascadeOptions, recommenders ...core.Recommender) (*RecommenderCascade, error) {
	c, err := newCascade("recommendation", compact(recommenders), opts)
	if err != nil {
		return nil, err
	}
	return &RecommenderCascade{c: c}, nil
}

// Name lists the providers in order.
func (rc *RecommenderCascade) Name() string { return providerNames(rc.c.providers) }

// Recommend returns the first successful recommendation, stamped with its provider.
func (rc *RecommenderCascade) Recommend(ctx context.Context, in model.RecommendationInput) (*model.Recommendation, error) {
	out, name, err := runCascade(ctx, rc.c, func(ctx context.Context, p core.Recommender) (*model.Recommendation, error) {
		return p.Recommend(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	if out.Provider == "" {
		out.Provider = name
	}
	return out, nil
}

// compact drops nil providers so optional LLM adapters can be passed unconditionally.
func compact[P any](in []P) []P {
	out := make([]P, 0, len(in))
	for _, p := range in {
		if any(p) != nil {
			out = append(out, p)
		}
	}
	return out
}
