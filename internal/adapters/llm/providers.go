package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
)

const classifySystemPrompt = `You classify business ideas for market research.
Answer with a JSON object with these keys:
"industry" (broad industry, e.g. "Pet Care"), "sub_industry", "business_model"
(e.g. "subscription", "marketplace", "saas", "direct sales"), "target_customer" ("B2B" or "B2C"),
"keywords" (up to 8 lowercase search keywords) and "confidence" (0 to 1).`

const segmentSystemPrompt = `You identify the primary customer segments for a business idea.
Answer with a JSON object {"primary_segments": [...]} holding 2 to 5 segments, each with
"name", "description", "percentage" (share of the addressable market, 0 to 100) and
"pain_points" (list of short strings). Order segments from largest to smallest.`

const recommendSystemPrompt = `You are a startup analyst giving a go/no-go recommendation.
Some analyses may be missing; mention that in "data_caveats" instead of guessing.
Answer with a JSON object with these keys: "verdict" (one of "proceed",
"proceed_with_caution", "reconsider"), "score" (0 to 10), "summary", "strengths",
"risks", "next_steps" and "data_caveats" (lists of short strings).`

// Classifier classifies ideas with a chat model.
type Classifier struct{ client *Client }

var _ core.Classifier = (*Classifier)(nil)

// NewClassifier wraps the client as a classifier.
func NewClassifier(c *Client) *Classifier { return &Classifier{client: c} }

// Name identifies the provider.
func (l *Classifier) Name() string { return l.client.Name() }

// Classify asks the model for a classification and normalizes its answer.
func (l *Classifier) Classify(ctx context.Context, in model.AnalysisInput) (*model.Classification, error) {
	var out model.Classification
	if err := l.client.completeJSON(ctx, classifySystemPrompt, ideaPrompt(in), &out); err != nil {
		return nil, err
	}

	out.Industry = strings.TrimSpace(out.Industry)
	if out.Industry == "" {
		return nil, apperrors.Wrapf(errors.New("missing industry"), apperrors.ErrCodeServer,
			"%s returned an incomplete classification", l.Name())
	}
	out.TargetCustomer = normalizeCustomer(out.TargetCustomer)
	out.Keywords = cleanList(out.Keywords, 8, true)
	out.Confidence = clamp(out.Confidence, 0, 1)
	out.Provider = l.Name()
	return &out, nil
}

// Segmenter identifies customer segments with a chat model.
type Segmenter struct{ client *Client }

var _ core.Segmenter = (*Segmenter)(nil)

// NewSegmenter wraps the client as a segmenter.
func NewSegmenter(c *Client) *Segmenter { return &Segmenter{client: c} }

// Name identifies the provider.
func (l *Segmenter) Name() string { return l.client.Name() }

// Segment asks the model for segments. Unnamed segments are dropped; an answer with none left
// is an error so the cascade moves on.
func (l *Segmenter) Segment(ctx context.Context, in model.AnalysisInput, c *model.Classification) (*model.Segmentation, error) {
	prompt := ideaPrompt(in)
	if c != nil {
		prompt += "\n\nClassification:\n" + marshalContext(c)
	}

	var raw model.Segmentation
	if err := l.client.completeJSON(ctx, segmentSystemPrompt, prompt, &raw); err != nil {
		return nil, err
	}

	out := &model.Segmentation{Provider: l.Name()}
	for _, seg := range raw.PrimarySegments {
		seg.Name = strings.TrimSpace(seg.Name)
		if seg.Name == "" {
			continue
		}
		seg.Percentage = clamp(seg.Percentage, 0, 100)
		seg.PainPoints = cleanList(seg.PainPoints, 5, false)
		out.PrimarySegments = append(out.PrimarySegments, seg)
	}
	if len(out.PrimarySegments) == 0 {
		return nil, apperrors.Wrapf(errors.New("no segments"), apperrors.ErrCodeServer,
			"%s returned no usable segments", l.Name())
	}
	return out, nil
}

// Recommender produces the final verdict with a chat model.
type Recommender struct{ client *Client }

var _ core.Recommender = (*Recommender)(nil)

// NewRecommender wraps the client as a recommender.
func NewRecommender(c *Client) *Recommender { return &Recommender{client: c} }

// Name identifies the provider.
func (l *Recommender) Name() string { return l.client.Name() }

// Recommend sends every available analysis to the model and validates the verdict.
func (l *Recommender) Recommend(ctx context.Context, in model.RecommendationInput) (*model.Recommendation, error) {
	var out model.Recommendation
	if err := l.client.completeJSON(ctx, recommendSystemPrompt, recommendationPrompt(in), &out); err != nil {
		return nil, err
	}

	switch out.Verdict = strings.ToLower(strings.TrimSpace(out.Verdict)); out.Verdict {
	case model.VerdictProceed, model.VerdictProceedCaution, model.VerdictReconsider:
	default:
		return nil, apperrors.Wrapf(fmt.Errorf("unknown verdict %q", out.Verdict), apperrors.ErrCodeServer,
			"%s returned an invalid recommendation", l.Name())
	}
	out.Score = math.Round(clamp(out.Score, 0, 10)*10) / 10
	out.Provider = l.Name()
	return &out, nil
}

func ideaPrompt(in model.AnalysisInput) string {
	var b strings.Builder
	b.WriteString("Business idea:\n")
	b.WriteString(strings.TrimSpace(in.BusinessIdea))
	if ps := strings.TrimSpace(in.ProblemStatement); ps != "" {
		b.WriteString("\n\nProblem statement:\n")
		b.WriteString(ps)
	}
	return b.String()
}

func recommendationPrompt(in model.RecommendationInput) string {
	var b strings.Builder
	b.WriteString(ideaPrompt(in.Input))
	section := func(title string, v any, missing bool) {
		b.WriteString("\n\n")
		b.WriteString(title)
		b.WriteString(":\n")
		if missing {
			b.WriteString("not available")
			return
		}
		b.WriteString(marshalContext(v))
	}
	section("Classification", in.Classification, in.Classification == nil)
	section("Customer segments", in.Segmentation, in.Segmentation == nil)
	section("Problem validation", in.ProblemValidation, in.ProblemValidation.Validation() == nil)
	section("Competition", in.Competition, in.Competition == nil)
	section("Market sizing", sizingSummary(in.MarketSizing), !in.MarketSizing.HasFigures())
	return b.String()
}

// sizingSummary keeps the prompt small: the model only needs the headline figures.
func sizingSummary(s *model.SizingResult) map[string]any {
	if s == nil {
		return nil
	}
	return map[string]any{
		"tam":              s.TAM.Formatted,
		"sam":              s.SAM.Formatted,
		"som":              s.SOM.Formatted,
		"confidence_score": s.ConfidenceScore,
	}
}

func normalizeCustomer(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "B2B":
		return "B2B"
	case "B2B2C":
		return "B2B2C"
	default:
		return "B2C"
	}
}

func cleanList(in []string, limit int, lower bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
