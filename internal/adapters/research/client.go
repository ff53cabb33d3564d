// Package research is the HTTP client for the market research backend.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
)

// Endpoint paths relative to the configured base URL.
const (
	PathProblemValidation = "/research/problem-validation"
	PathCompetition       = "/research/competition"
	PathMarketSize        = "/research/market-size"
)

const (
	// DefaultSourcesExpression finds raw observations in either a bare or enveloped response.
	DefaultSourcesExpression = "data.sources || sources"
	// payloadExpression unwraps an optional {"data": ...} envelope.
	payloadExpression = "data || @"
	// validationExpression accepts the validation block with or without its wrapper key.
	validationExpression = "data.problem_validation || problem_validation || data || @"
	// sizingExpression finds a computed sizing block.
	sizingExpression = "data.sizing || sizing"

	maxResponseBytes = 4 << 20
	maxErrorSnippet  = 256
)

// Options configures the research client.
type Options struct {
	BaseURL           string
	APIKey            string
	SourcesExpression string
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client calls the research backend over HTTP. Responses may be bare objects or wrapped in
// a {"data": ...} envelope; raw sources are located with a JMESPath expression so different
// backends can be plugged in through configuration.
type Client struct {
	baseURL     string
	apiKey      string
	sourcesExpr string
	hc          *http.Client
	logger      *slog.Logger
}

var _ core.ResearchService = (*Client)(nil)

// NewClient validates the options and compiles the sources expression once.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("research client: base URL is required")
	}

	expr := strings.TrimSpace(opts.SourcesExpression)
	if expr == "" {
		expr = DefaultSourcesExpression
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("research client: invalid sources expression %q: %w", expr, err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 3 * time.Minute}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     base,
		apiKey:      opts.APIKey,
		sourcesExpr: expr,
		hc:          hc,
		logger:      logger.With("component", "research_client"),
	}, nil
}

// ValidateProblem implements core.ProblemValidator.
func (c *Client) ValidateProblem(ctx context.Context, req model.ResearchRequest) (*model.ProblemValidationResult, error) {
	doc, err := c.call(ctx, PathProblemValidation, req)
	if err != nil {
		return nil, err
	}

	var pv model.ProblemValidation
	if err := decodeAt(doc, validationExpression, &pv); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeServer, "decode problem validation")
	}
	out := &model.ProblemValidationResult{}
	if pv.Severity != 0 || pv.Frequency != 0 || pv.WillingnessToPay != 0 || pv.Summary != "" {
		out.ProblemValidation = &pv
	}
	return out, nil
}

// AnalyzeCompetition implements core.CompetitionAnalyzer.
func (c *Client) AnalyzeCompetition(ctx context.Context, req model.ResearchRequest) (*model.CompetitionAnalysis, error) {
	doc, err := c.call(ctx, PathCompetition, req)
	if err != nil {
		return nil, err
	}

	var out model.CompetitionAnalysis
	if err := decodeAt(doc, payloadExpression, &out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeServer, "decode competition analysis")
	}
	return &out, nil
}

// MarketSize implements core.MarketDataProvider. A sizing block without figures is dropped
// so the caller falls back to local sizing from the returned sources.
func (c *Client) MarketSize(ctx context.Context, req model.ResearchRequest) (*model.MarketDataResponse, error) {
	doc, err := c.call(ctx, PathMarketSize, req)
	if err != nil {
		return nil, err
	}

	out := &model.MarketDataResponse{}

	var sizing model.SizingResult
	if err := decodeAt(doc, sizingExpression, &sizing); err != nil {
		c.logger.WarnContext(ctx, "ignoring malformed sizing block", "error", err)
	} else if sizing.HasFigures() {
		out.Sizing = &sizing
	}

	if err := decodeAt(doc, c.sourcesExpr, &out.Sources); err != nil {
		c.logger.WarnContext(ctx, "ignoring malformed sources", "expression", c.sourcesExpr, "error", err)
		out.Sources = nil
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, path string, body any) (any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode research request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "create research request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.DebugContext(ctx, "close research response body", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(path, resp.StatusCode, raw)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeServer, "research %s returned invalid JSON", path)
	}
	return doc, nil
}

// decodeAt evaluates expr against doc and decodes the match into dst. A null match leaves dst
// untouched.
func decodeAt(doc any, expr string, dst any) error {
	found, err := jmespath.Search(expr, doc)
	if err != nil {
		return fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if found == nil {
		return nil
	}
	b, err := json.Marshal(found)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func statusError(path string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrorSnippet {
		snippet = snippet[:maxErrorSnippet]
	}
	cause := fmt.Errorf("research %s: HTTP %d: %s", path, status, snippet)

	switch {
	case status == http.StatusNotFound:
		return apperrors.Wrap(cause, apperrors.ErrCodeNotFound, "research endpoint not found")
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return apperrors.Wrap(cause, apperrors.ErrCodeTimeout, "research request timed out")
	case status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests ||
		status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.Wrap(cause, apperrors.ErrCodeUnavailable, "research service unavailable")
	case status >= 500:
		return apperrors.Wrap(cause, apperrors.ErrCodeServer, "research service error")
	default:
		return apperrors.Wrap(cause, apperrors.ErrCodeServer, "research request rejected")
	}
}

func classifyTransportError(ctx context.Context, path string, err error) error {
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return apperrors.Wrapf(err, apperrors.ErrCodeCanceled, "research %s canceled", path)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "research %s timed out", path)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "research %s timed out", path)
	}
	return apperrors.Wrapf(err, apperrors.ErrCodeNetwork, "research %s request failed", path)
}
