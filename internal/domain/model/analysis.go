package model

import "strings"

// Step result status values written into the error and skipped shapes.
const (
	ResultStatusError   = "error"
	ResultStatusSkipped = "skipped"
)

// StepErrorResult is the result shape recorded for failed steps.
type StepErrorResult struct {
	Status         string `json:"status"`
	Error          string `json:"error"`
	ErrorCode      string `json:"error_code,omitempty"`
	DisplayMessage string `json:"display_message"`
}

// StepSkippedResult is the result shape recorded for skipped steps.
type StepSkippedResult struct {
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	DisplayMessage string `json:"display_message"`
}

// Classification is the industry classification of a business idea.
type Classification struct {
	Industry       string   `json:"industry"`
	SubIndustry    string   `json:"sub_industry,omitempty"`
	BusinessModel  string   `json:"business_model,omitempty"`
	TargetCustomer string   `json:"target_customer,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	Confidence     float64  `json:"confidence"`
	Provider       string   `json:"provider,omitempty"`
}

// Segment is one addressable customer segment.
type Segment struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Percentage  float64  `json:"percentage"`
	PainPoints  []string `json:"pain_points,omitempty"`
}

// Segmentation lists the primary customer segments for an idea.
type Segmentation struct {
	PrimarySegments []Segment `json:"primary_segments"`
	Provider        string    `json:"provider,omitempty"`
}

// SegmentNames returns the segment names in order.
func (s *Segmentation) SegmentNames() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.PrimarySegments))
	for _, seg := range s.PrimarySegments {
		if name := strings.TrimSpace(seg.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// ProblemValidation carries 0-10 scores describing how real the problem is.
type ProblemValidation struct {
	Severity         float64  `json:"severity"`
	Frequency        float64  `json:"frequency"`
	WillingnessToPay float64  `json:"willingness_to_pay"`
	Confidence       float64  `json:"confidence,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	Evidence         []string `json:"evidence,omitempty"`
}

// ProblemValidationResult wraps the validation block as returned by the research service.
type ProblemValidationResult struct {
	ProblemValidation *ProblemValidation `json:"problem_validation,omitempty"`
}

// Validation returns the inner block or nil.
func (r *ProblemValidationResult) Validation() *ProblemValidation {
	if r == nil {
		return nil
	}
	return r.ProblemValidation
}

// Competitor is one known competitor.
type Competitor struct {
	Name        string `json:"name"`
	Funding     string `json:"funding,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
}

// unfundedMarkers are funding labels that do not count as well funded.
var unfundedMarkers = []string{"none", "unknown", "bootstrapped", "n/a", "unfunded", "self-funded"}

// WellFunded reports whether the competitor's funding label indicates outside capital.
func (c Competitor) WellFunded() bool {
	f := strings.ToLower(strings.TrimSpace(c.Funding))
	if f == "" {
		return false
	}
	for _, m := range unfundedMarkers {
		if f == m {
			return false
		}
	}
	return true
}

// CompetitionAnalysis is the competitive landscape for an idea.
type CompetitionAnalysis struct {
	MarketConcentration string       `json:"market_concentration,omitempty"`
	Competitors         []Competitor `json:"competitors,omitempty"`
	Summary             string       `json:"summary,omitempty"`
}

// WellFundedCount counts competitors with outside capital.
func (c *CompetitionAnalysis) WellFundedCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, comp := range c.Competitors {
		if comp.WellFunded() {
			n++
		}
	}
	return n
}

// ResearchRequest is the context sent to the research service.
type ResearchRequest struct {
	BusinessIdea     string   `json:"business_idea"`
	ProblemStatement string   `json:"problem_statement,omitempty"`
	Industry         string   `json:"industry,omitempty"`
	SubIndustry      string   `json:"sub_industry,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	Segments         []string `json:"segments,omitempty"`
}

// MarketDataResponse is what the research service returns for a market sizing request.
// Sizing is set when the service computed the figures itself; Sources carries the raw
// observations it found either way.
type MarketDataResponse struct {
	Sizing  *SizingResult    `json:"sizing,omitempty"`
	Sources []RawObservation `json:"sources,omitempty"`
}

// Verdict values for recommendations.
const (
	VerdictProceed        = "proceed"
	VerdictProceedCaution = "proceed_with_caution"
	VerdictReconsider     = "reconsider"
)

// Recommendation is the final go/no-go style assessment.
type Recommendation struct {
	Verdict     string   `json:"verdict"`
	Score       float64  `json:"score"`
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths,omitempty"`
	Risks       []string `json:"risks,omitempty"`
	NextSteps   []string `json:"next_steps,omitempty"`
	DataCaveats []string `json:"data_caveats,omitempty"`
	Provider    string   `json:"provider,omitempty"`
}

// RecommendationInput carries whatever partial results exist when the recommendation runs.
// Any pointer may be nil when its step did not complete.
type RecommendationInput struct {
	Input             AnalysisInput            `json:"input"`
	Classification    *Classification          `json:"classification,omitempty"`
	Segmentation      *Segmentation            `json:"segmentation,omitempty"`
	ProblemValidation *ProblemValidationResult `json:"problem_validation,omitempty"`
	Competition       *CompetitionAnalysis     `json:"competition,omitempty"`
	MarketSizing      *SizingResult            `json:"market_sizing,omitempty"`
}
