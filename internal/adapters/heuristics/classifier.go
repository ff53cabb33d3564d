package heuristics

import (
	"context"
	"math"
	"sort"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
)

// RuleClassifier assigns an industry by keyword matching. It never fails, so it is the last
// entry of the classifier cascade.
type RuleClassifier struct{}

var _ core.Classifier = RuleClassifier{}

// NewRuleClassifier creates the keyword classifier.
func NewRuleClassifier() RuleClassifier { return RuleClassifier{} }

// Name identifies the provider.
func (RuleClassifier) Name() string { return "rules" }

// Classify scores every industry rule by distinct keyword hits and picks the best one.
func (RuleClassifier) Classify(ctx context.Context, in model.AnalysisInput) (*model.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := tokenize(in.BusinessIdea + " " + in.ProblemStatement)
	set := wordSet(words)

	best := -1
	var bestHits []string
	for i, rule := range industryRules {
		hits := matchKeywords(set, rule.keywords)
		if len(hits) > len(bestHits) {
			best, bestHits = i, hits
		}
	}

	out := &model.Classification{
		Industry:       IndustryGeneral,
		BusinessModel:  detectBusinessModel(set),
		TargetCustomer: detectTargetCustomer(set),
		Keywords:       []string{},
		Confidence:     0.2,
	}
	if best >= 0 {
		out.Industry = industryRules[best].industry
		out.SubIndustry = industryRules[best].subIndustry
		out.Keywords = bestHits
		out.Confidence = math.Min(0.9, 0.3+0.15*float64(len(bestHits)))
	}
	return out, nil
}

func matchKeywords(set map[string]struct{}, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if _, ok := set[kw]; ok {
			hits = append(hits, kw)
		}
	}
	sort.Strings(hits)
	return hits
}

func detectBusinessModel(set map[string]struct{}) string {
	for _, bm := range businessModelKeywords {
		if len(matchKeywords(set, bm.keywords)) > 0 {
			return bm.model
		}
	}
	return "direct sales"
}

func detectTargetCustomer(set map[string]struct{}) string {
	if len(matchKeywords(set, b2bMarkers)) > 0 {
		return "B2B"
	}
	return "B2C"
}
