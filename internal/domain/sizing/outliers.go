package sizing

import (
	"math"
	"slices"

	"github.com/target/marketlens/internal/domain/model"
)

const (
	// modifiedZConstant scales MAD to be comparable with a standard deviation.
	modifiedZConstant = 0.6745
	// OutlierThreshold only catches order-of-magnitude disagreements between sources.
	OutlierThreshold = 5.0
	// minFilterSample is the smallest sample the filter will judge.
	minFilterSample = 3
)

// OutlierSplit partitions observations into valid and outlier sets.
type OutlierSplit struct {
	Valid    []model.MarketObservation
	Outliers []model.MarketObservation
}

// FilterOutliers flags observations whose modified z-score exceeds OutlierThreshold.
// Samples smaller than three are returned untouched. Callers must re-include every
// observation when Valid comes back empty.
func FilterOutliers(obs []model.MarketObservation) OutlierSplit {
	if len(obs) < minFilterSample {
		return OutlierSplit{
			Valid:    append([]model.MarketObservation(nil), obs...),
			Outliers: []model.MarketObservation{},
		}
	}

	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = o.Value
	}
	med := median(values)

	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)
	if mad == 0 {
		mad = 1
	}

	split := OutlierSplit{
		Valid:    make([]model.MarketObservation, 0, len(obs)),
		Outliers: []model.MarketObservation{},
	}
	for i, o := range obs {
		if ModifiedZScore(values[i], med, mad) > OutlierThreshold {
			split.Outliers = append(split.Outliers, o)
			continue
		}
		split.Valid = append(split.Valid, o)
	}
	return split
}

// ModifiedZScore is 0.6745 * |x - median| / mad.
func ModifiedZScore(x, med, mad float64) float64 {
	if mad == 0 {
		mad = 1
	}
	return modifiedZConstant * math.Abs(x-med) / mad
}

// median averages the middle pair for even-length input.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
