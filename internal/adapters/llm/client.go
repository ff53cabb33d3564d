// Package llm implements the classification, segmentation and recommendation providers on top
// of an OpenAI-compatible chat completion API. The same client serves OpenAI directly and
// OpenRouter through its OpenAI-compatible endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	apperrors "github.com/target/marketlens/internal/errors"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	defaultTemperature = 0.2
	defaultMaxTokens   = 1200
)

// ErrEmptyResponse is returned when the model produced no usable content.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Options configures a chat completion client.
type Options struct {
	// Name identifies the provider in cascades and results, e.g. "openai" or "openrouter".
	Name       string
	APIKey     string
	Model      string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client sends JSON-mode chat completions and decodes the reply.
type Client struct {
	name   string
	model  string
	api    openai.Client
	logger *slog.Logger
}

// NewClient builds a client. An API key is required; the base URL switches the client to any
// OpenAI-compatible endpoint.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("llm client: API key is required")
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "openai"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(max(opts.MaxRetries, 0)),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		name:   name,
		model:  model,
		api:    openai.NewClient(reqOpts...),
		logger: logger.With("component", "llm", "provider", name),
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return c.name }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

// completeJSON asks for a JSON object answer and decodes it into dst.
func (c *Client) completeJSON(ctx context.Context, system, user string, dst any) error {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(defaultTemperature),
		MaxTokens:   openai.Int(defaultMaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return classifyError(ctx, c.name, err)
	}
	if len(completion.Choices) == 0 {
		return apperrors.Wrapf(ErrEmptyResponse, apperrors.ErrCodeServer, "%s returned no choices", c.name)
	}

	content := stripCodeFence(completion.Choices[0].Message.Content)
	if content == "" {
		return apperrors.Wrapf(ErrEmptyResponse, apperrors.ErrCodeServer, "%s returned empty content", c.name)
	}
	if err := json.Unmarshal([]byte(content), dst); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeServer, "%s returned invalid JSON", c.name)
	}

	c.logger.DebugContext(ctx, "llm completion decoded",
		"model", c.model,
		"tokens", completion.Usage.TotalTokens,
	)
	return nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON mode output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func classifyError(ctx context.Context, name string, err error) error {
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return apperrors.Wrapf(err, apperrors.ErrCodeCanceled, "%s request canceled", name)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "%s request timed out", name)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apperrors.ErrCodeServer
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusUnauthorized,
			apiErr.StatusCode == http.StatusForbidden,
			apiErr.StatusCode == http.StatusServiceUnavailable:
			code = apperrors.ErrCodeUnavailable
		case apiErr.StatusCode == http.StatusNotFound:
			code = apperrors.ErrCodeNotFound
		case apiErr.StatusCode == http.StatusGatewayTimeout:
			code = apperrors.ErrCodeTimeout
		}
		return apperrors.Wrapf(err, code, "%s API returned HTTP %d", name, apiErr.StatusCode)
	}
	return apperrors.Wrapf(err, apperrors.ErrCodeNetwork, "%s request failed", name)
}

func marshalContext(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
