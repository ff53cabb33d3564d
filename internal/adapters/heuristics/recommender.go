package heuristics

import (
	"context"
	"fmt"
	"math"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
	"github.com/target/marketlens/internal/domain/sizing"
)

// Verdict thresholds on the 0-10 score.
const (
	proceedScore = 7.0
	cautionScore = 4.5
)

// ScoringRecommender scores whatever analyses completed and maps the score to a verdict.
type ScoringRecommender struct{}

var _ core.Recommender = ScoringRecommender{}

// NewScoringRecommender creates the scoring recommender.
func NewScoringRecommender() ScoringRecommender { return ScoringRecommender{} }

// Name identifies the provider.
func (ScoringRecommender) Name() string { return "scoring" }

// Recommend starts from a neutral 5 and adjusts for problem strength, competition and market
// size. Missing analyses add a caveat instead of moving the score.
func (ScoringRecommender) Recommend(ctx context.Context, in model.RecommendationInput) (*model.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &model.Recommendation{}
	score := 5.0

	if pv := in.ProblemValidation.Validation(); pv != nil {
		score += (pv.Severity - 5) * 0.25
		score += (pv.WillingnessToPay - 5) * 0.25
		switch {
		case pv.Severity >= 7:
			rec.Strengths = append(rec.Strengths, "customers describe the problem as severe")
		case pv.Severity <= 3:
			rec.Risks = append(rec.Risks, "the problem appears mild for most customers")
		}
		if pv.WillingnessToPay < 5 {
			rec.Risks = append(rec.Risks, "willingness to pay looks low")
		}
	} else {
		rec.DataCaveats = append(rec.DataCaveats, "problem validation was not available")
	}

	if c := in.Competition; c != nil {
		funded := c.WellFundedCount()
		switch c.MarketConcentration {
		case "fragmented":
			score += 0.5
			rec.Strengths = append(rec.Strengths, "the market is fragmented")
		case "concentrated":
			score -= 1
			rec.Risks = append(rec.Risks, "a few incumbents dominate the market")
		}
		if funded >= 5 {
			score -= 0.5
			rec.Risks = append(rec.Risks, fmt.Sprintf("%d well-funded competitors", funded))
		}
	} else {
		rec.DataCaveats = append(rec.DataCaveats, "competition analysis was not available")
	}

	if s := in.MarketSizing; s.HasFigures() {
		switch {
		case s.SOM.Value >= 10e6:
			score += 1
			rec.Strengths = append(rec.Strengths, "obtainable market of "+sizing.FormatCurrency(s.SOM.Value))
		case s.SOM.Value < 1e6:
			score -= 1
			rec.Risks = append(rec.Risks, "obtainable market under $1M")
		}
		if s.ConfidenceScore < 5 {
			rec.DataCaveats = append(rec.DataCaveats, "market size estimate has low confidence")
		}
	} else {
		rec.DataCaveats = append(rec.DataCaveats, "market size could not be estimated")
	}

	rec.Score = math.Round(math.Max(0, math.Min(10, score))*10) / 10
	switch {
	case rec.Score >= proceedScore:
		rec.Verdict = model.VerdictProceed
		rec.Summary = "The idea shows strong signals; validate pricing with a small pilot."
		rec.NextSteps = []string{"run a paid pilot with the primary segment", "test two price points"}
	case rec.Score >= cautionScore:
		rec.Verdict = model.VerdictProceedCaution
		rec.Summary = "The idea is viable but has open risks; address them before investing heavily."
		rec.NextSteps = []string{"interview customers in the largest segment", "size the niche more precisely"}
	default:
		rec.Verdict = model.VerdictReconsider
		rec.Summary = "The current evidence does not support the idea; consider narrowing or pivoting."
		rec.NextSteps = []string{"revisit the problem statement", "look for an underserved niche"}
	}
	return rec, nil
}
