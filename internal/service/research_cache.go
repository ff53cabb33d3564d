package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/observability/statsd"
)

// DefaultResearchCacheTTL is how long successful research responses are reused.
const DefaultResearchCacheTTL = 6 * time.Hour

// CachedResearchOptions configures CachedResearch.
type CachedResearchOptions struct {
	Research core.ResearchService
	Cache    core.CacheRepository
	TTL      time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// CachedResearch reuses successful research responses for identical requests. Cache errors
// are logged and fall through to the research service; failed calls are never cached.
type CachedResearch struct {
	research core.ResearchService
	cache    core.CacheRepository
	ttl      time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

var _ core.ResearchService = (*CachedResearch)(nil)

// NewCachedResearch wraps the research service with a response cache.
func NewCachedResearch(opts CachedResearchOptions) (*CachedResearch, error) {
	if opts.Research == nil {
		return nil, errors.New("cached research: research service is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cached research: cache is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultResearchCacheTTL
	}
	return &CachedResearch{
		research: opts.Research,
		cache:    opts.Cache,
		ttl:      ttl,
		logger:   resolveLogger(opts.Logger).With("component", "research_cache"),
		metrics:  opts.Metrics,
	}, nil
}

// ValidateProblem implements core.ProblemValidator.
func (c *CachedResearch) ValidateProblem(ctx context.Context, req model.ResearchRequest) (*model.ProblemValidationResult, error) {
	return cached(ctx, c, "problem_validation", req, c.research.ValidateProblem)
}

// AnalyzeCompetition implements core.CompetitionAnalyzer.
func (c *CachedResearch) AnalyzeCompetition(ctx context.Context, req model.ResearchRequest) (*model.CompetitionAnalysis, error) {
	return cached(ctx, c, "competition", req, c.research.AnalyzeCompetition)
}

// MarketSize implements core.MarketDataProvider.
func (c *CachedResearch) MarketSize(ctx context.Context, req model.ResearchRequest) (*model.MarketDataResponse, error) {
	return cached(ctx, c, "market_size", req, c.research.MarketSize)
}

func cached[T any](
	ctx context.Context,
	c *CachedResearch,
	kind string,
	req model.ResearchRequest,
	fetch func(context.Context, model.ResearchRequest) (*T, error),
) (*T, error) {
	key, err := researchCacheKey(kind, req)
	if err != nil {
		return fetch(ctx, req)
	}

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "research cache read failed", "kind", kind, "error", err)
	case raw != nil:
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			c.count(kind, "hit")
			return &out, nil
		}
		c.logger.WarnContext(ctx, "discarding undecodable research cache entry", "kind", kind, "key", key)
	}
	c.count(kind, "miss")

	out, err := fetch(ctx, req)
	if err != nil || out == nil {
		return out, err
	}

	if encoded, err := json.Marshal(out); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "research cache write failed", "kind", kind, "error", err)
		}
	}
	return out, nil
}

func (c *CachedResearch) count(kind, result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.Count("research.cache", 1, map[string]string{"kind": kind, "result": result})
}

// researchCacheKey hashes the request so keys stay short and free of user text.
func researchCacheKey(kind string, req model.ResearchRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return "research:" + kind + ":" + hex.EncodeToString(sum[:]), nil
}
