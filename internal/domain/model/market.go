package model

// RawObservation is one unnormalized market-size data point as reported by a source.
type RawObservation struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	Year      int     `json:"year,omitempty"`
	Publisher string  `json:"publisher,omitempty"`
	SourceURL string  `json:"source_url,omitempty"`
}

// MarketObservation is a normalized observation in USD with a derived quality weight in [1,10].
type MarketObservation struct {
	Value     float64 `json:"value"`
	Year      int     `json:"year,omitempty"`
	Publisher string  `json:"publisher,omitempty"`
	Quality   int     `json:"quality"`
}

// CalculationSource records which path produced a market sizing result.
type CalculationSource string

const (
	CalculationSourceBackendAPI    CalculationSource = "backend_api"
	CalculationSourceLocalFallback CalculationSource = "local_fallback"
)

// Multiplier factor names used in tier breakdowns and sensitivity reports.
const (
	FactorGeographic     = "geographic"
	FactorSegments       = "segments"
	FactorTechAdoption   = "techAdoption"
	FactorNewEntrant     = "newEntrant"
	FactorMarketingReach = "marketingReach"
	FactorConversion     = "conversion"
)

// Multipliers is the full TAM to SOM narrowing chain.
type Multipliers struct {
	Geographic     float64 `json:"geographic"`
	Segments       float64 `json:"segments"`
	TechAdoption   float64 `json:"tech_adoption"`
	NewEntrant     float64 `json:"new_entrant"`
	MarketingReach float64 `json:"marketing_reach"`
	Conversion     float64 `json:"conversion"`
}

// SAMFactor is the product applied to TAM to obtain SAM.
func (m Multipliers) SAMFactor() float64 {
	return m.Geographic * m.Segments * m.TechAdoption
}

// SOMFactor is the product applied to SAM to obtain SOM.
func (m Multipliers) SOMFactor() float64 {
	return m.NewEntrant * m.MarketingReach * m.Conversion
}

// SAMBreakdown returns the SAM multipliers keyed by factor name.
func (m Multipliers) SAMBreakdown() map[string]float64 {
	return map[string]float64{
		FactorGeographic:   m.Geographic,
		FactorSegments:     m.Segments,
		FactorTechAdoption: m.TechAdoption,
	}
}

// SOMBreakdown returns the SOM multipliers keyed by factor name.
func (m Multipliers) SOMBreakdown() map[string]float64 {
	return map[string]float64{
		FactorNewEntrant:     m.NewEntrant,
		FactorMarketingReach: m.MarketingReach,
		FactorConversion:     m.Conversion,
	}
}

// Tier is one of TAM, SAM or SOM with its confidence band.
type Tier struct {
	Value       float64            `json:"value"`
	Low         float64            `json:"low"`
	High        float64            `json:"high"`
	Formatted   string             `json:"formatted"`
	Multipliers map[string]float64 `json:"multipliers,omitempty"`
}

// SensitivityItem is the SOM change caused by raising one multiplier.
type SensitivityItem struct {
	Factor        string  `json:"factor"`
	ImpactPercent float64 `json:"impact_percent"`
}

// SizingStatistics describes the observations behind a sizing result.
type SizingStatistics struct {
	ValidSources      int     `json:"valid_sources"`
	OutlierSources    int     `json:"outlier_sources"`
	SourcesReincluded bool    `json:"sources_reincluded,omitempty"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	P10               float64 `json:"p10"`
	P25               float64 `json:"p25"`
	P75               float64 `json:"p75"`
	P90               float64 `json:"p90"`
}

// SizingResult is the TAM/SAM/SOM output of the market sizing engine.
type SizingResult struct {
	TAM               Tier                `json:"tam"`
	SAM               Tier                `json:"sam"`
	SOM               Tier                `json:"som"`
	ConfidenceScore   int                 `json:"confidence_score"`
	Sensitivity       []SensitivityItem   `json:"sensitivity"`
	Multipliers       Multipliers         `json:"multipliers"`
	Statistics        SizingStatistics    `json:"statistics"`
	Sources           []MarketObservation `json:"sources,omitempty"`
	Outliers          []MarketObservation `json:"outliers,omitempty"`
	Error             string              `json:"error,omitempty"`
	CalculationSource CalculationSource   `json:"calculation_source,omitempty"`
}

// HasFigures reports whether the result carries a usable TAM.
func (r *SizingResult) HasFigures() bool {
	return r != nil && r.Error == "" && r.TAM.Value > 0
}

// TiersConsistent reports whether TAM ≥ SAM ≥ SOM and every tier's value lies inside its
// band. A tier with neither bound set carries no band.
func (r *SizingResult) TiersConsistent() bool {
	if r == nil {
		return false
	}
	if r.TAM.Value < r.SAM.Value || r.SAM.Value < r.SOM.Value {
		return false
	}
	for _, t := range []Tier{r.TAM, r.SAM, r.SOM} {
		if (t.Low != 0 || t.High != 0) && (t.Low > t.Value || t.Value > t.High) {
			return false
		}
	}
	return true
}

// SizingOptions overrides individual multipliers. Nil fields use derived defaults.
type SizingOptions struct {
	GeographicFocus *float64 `json:"geographic_focus,omitempty"`
	TechAdoption    *float64 `json:"tech_adoption,omitempty"`
	NewEntrantShare *float64 `json:"new_entrant_share,omitempty"`
	MarketingReach  *float64 `json:"marketing_reach,omitempty"`
	ConversionRate  *float64 `json:"conversion_rate,omitempty"`
}
