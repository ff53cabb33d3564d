package sizing

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/target/marketlens/internal/domain/model"
	apperrors "github.com/target/marketlens/internal/errors"
)

// Default multipliers used when no upstream analysis refines them.
const (
	DefaultGeographic     = 0.4
	DefaultSegments       = 1.0
	DefaultTechAdoption   = 0.7
	DefaultNewEntrant     = 0.03
	DefaultMarketingReach = 0.15
	DefaultConversion     = 0.05

	maxTechAdoption = 0.9
)

// Input is everything ComputeSizing needs. Only Sources is required.
type Input struct {
	Sources           []model.RawObservation
	Segmentation      *model.Segmentation
	ProblemValidation *model.ProblemValidationResult
	Competition       *model.CompetitionAnalysis
	Options           model.SizingOptions
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Aggregator *Aggregator
	Logger     *slog.Logger
}

// Engine derives TAM, SAM and SOM from market observations.
type Engine struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewEngine builds an Engine. A default Aggregator is used when none is supplied.
func NewEngine(opts EngineOptions) *Engine {
	agg := opts.Aggregator
	if agg == nil {
		agg = NewAggregator(AggregatorOptions{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		aggregator: agg,
		logger:     logger.With("component", "market_sizing_engine"),
	}
}

// ComputeSizing never panics and never returns an error: any failure, including missing
// sources, produces a zero-valued result whose Error field carries the message.
func (e *Engine) ComputeSizing(in Input) (result model.SizingResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("market sizing panicked", "panic", r)
			result = ZeroResult(fmt.Sprintf("market sizing failed: %v", r))
		}
	}()

	if len(in.Sources) == 0 {
		return ZeroResult(ErrInsufficientData.Message)
	}

	obs, err := e.aggregator.Normalize(in.Sources)
	if err != nil {
		return ZeroResult(errorMessage(err))
	}

	split := FilterOutliers(obs)
	valid := split.Valid
	reincluded := false
	if len(valid) == 0 {
		valid = obs
		reincluded = true
		e.logger.Warn("outlier filter rejected every source, re-including all", "sources", len(obs))
	}

	est, err := WeightedEstimate(valid)
	if err != nil {
		return ZeroResult(errorMessage(err))
	}

	m := DeriveMultipliers(in.Segmentation, in.ProblemValidation, in.Competition, in.Options)
	samFactor := m.SAMFactor()
	somFactor := m.SOMFactor()

	tam := model.Tier{Value: est.Median, Low: est.P10, High: est.P90}
	sam := model.Tier{
		Value:       tam.Value * samFactor,
		Low:         tam.Low * samFactor,
		High:        tam.High * samFactor,
		Multipliers: m.SAMBreakdown(),
	}
	som := model.Tier{
		Value:       sam.Value * somFactor,
		Low:         sam.Low * somFactor,
		High:        sam.High * somFactor,
		Multipliers: m.SOMBreakdown(),
	}
	tam.Formatted = FormatCurrency(tam.Value)
	sam.Formatted = FormatCurrency(sam.Value)
	som.Formatted = FormatCurrency(som.Value)

	return model.SizingResult{
		TAM: tam,
		SAM: sam,
		SOM: som,
		ConfidenceScore: ConfidenceScore(ConfidenceInputs{
			ValidSources:      len(valid),
			OutlierSources:    len(split.Outliers),
			SourcesReincluded: reincluded,
			ProblemValidation: in.ProblemValidation.Validation(),
			Competition:       in.Competition,
		}),
		Sensitivity: Sensitivity(tam.Value, m),
		Multipliers: m,
		Statistics: model.SizingStatistics{
			ValidSources:      len(valid),
			OutlierSources:    len(split.Outliers),
			SourcesReincluded: reincluded,
			Mean:              est.Mean,
			Median:            est.Median,
			P10:               est.P10,
			P25:               est.P25,
			P75:               est.P75,
			P90:               est.P90,
		},
		Sources:  valid,
		Outliers: split.Outliers,
	}
}

// DeriveMultipliers builds the narrowing chain from upstream analyses and caller overrides.
// Every multiplier is clamped to [0,1] so TAM >= SAM >= SOM always holds.
func DeriveMultipliers(
	seg *model.Segmentation,
	pv *model.ProblemValidationResult,
	comp *model.CompetitionAnalysis,
	opts model.SizingOptions,
) model.Multipliers {
	m := model.Multipliers{
		Geographic:     DefaultGeographic,
		Segments:       DefaultSegments,
		TechAdoption:   DefaultTechAdoption,
		NewEntrant:     DefaultNewEntrant,
		MarketingReach: DefaultMarketingReach,
		Conversion:     DefaultConversion,
	}

	if seg != nil && len(seg.PrimarySegments) > 0 {
		var total float64
		for _, s := range seg.PrimarySegments {
			total += s.Percentage
		}
		if total > 0 {
			m.Segments = math.Min(1.0, total/100)
		}
	}

	if v := pv.Validation(); v != nil {
		m.TechAdoption = math.Min(maxTechAdoption, 0.5+v.Severity/20)
		m.MarketingReach = (v.Severity+v.Frequency)/100 + 0.1
		switch {
		case v.WillingnessToPay >= 8:
			m.Conversion = 0.08
		case v.WillingnessToPay >= 6:
			m.Conversion = 0.06
		}
	}

	if comp != nil {
		m.NewEntrant = newEntrantShare(comp.MarketConcentration)
		switch funded := comp.WellFundedCount(); {
		case funded >= 5:
			m.NewEntrant *= 0.6
		case funded <= 1:
			m.NewEntrant *= 1.5
		}
	}

	applyOverride(&m.Geographic, opts.GeographicFocus)
	applyOverride(&m.TechAdoption, opts.TechAdoption)
	applyOverride(&m.NewEntrant, opts.NewEntrantShare)
	applyOverride(&m.MarketingReach, opts.MarketingReach)
	applyOverride(&m.Conversion, opts.ConversionRate)

	return clampMultipliers(m)
}

func newEntrantShare(concentration string) float64 {
	label := strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(strings.TrimSpace(concentration)))
	switch {
	case strings.Contains(label, "highly"):
		return 0.01
	case strings.Contains(label, "moderate"):
		return 0.02
	case strings.Contains(label, "fragment"):
		return 0.05
	default:
		return DefaultNewEntrant
	}
}

func applyOverride(dst *float64, v *float64) {
	if v != nil && !math.IsNaN(*v) {
		*dst = *v
	}
}

func clampMultipliers(m model.Multipliers) model.Multipliers {
	m.Geographic = clampUnit(m.Geographic)
	m.Segments = clampUnit(m.Segments)
	m.TechAdoption = clampUnit(m.TechAdoption)
	m.NewEntrant = clampUnit(m.NewEntrant)
	m.MarketingReach = clampUnit(m.MarketingReach)
	m.Conversion = clampUnit(m.Conversion)
	return m
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ConfidenceInputs feeds ConfidenceScore.
type ConfidenceInputs struct {
	ValidSources      int
	OutlierSources    int
	SourcesReincluded bool
	ProblemValidation *model.ProblemValidation
	Competition       *model.CompetitionAnalysis
}

// ConfidenceScore rates a sizing result from 0 to 10.
func ConfidenceScore(in ConfidenceInputs) int {
	score := math.Min(10, float64(2*in.ValidSources))
	score -= math.Min(6, float64(2*in.OutlierSources))
	if in.SourcesReincluded {
		score--
	}

	if v := in.ProblemValidation; v != nil {
		switch {
		case v.Confidence > 0:
			score += math.Min(5, v.Confidence/2)
		case v.Severity > 0 || v.Frequency > 0 || v.WillingnessToPay > 0:
			score += 2
		}
	}

	if in.Competition != nil {
		score += math.Min(5, float64(len(in.Competition.Competitors)))
	}

	return clampInt(int(math.Round(score)), 0, 10)
}

// ZeroResult is the no-data result: every tier is zero and Error carries msg.
func ZeroResult(msg string) model.SizingResult {
	zero := model.Tier{Formatted: FormatCurrency(0)}
	return model.SizingResult{
		TAM:         zero,
		SAM:         zero,
		SOM:         zero,
		Sensitivity: []model.SensitivityItem{},
		Error:       msg,
	}
}

func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Cause == nil {
		return appErr.Message
	}
	return err.Error()
}
