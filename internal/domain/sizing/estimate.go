package sizing

import (
	"math"
	"slices"

	"github.com/target/marketlens/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Estimate is a quality-weighted point estimate with an order-statistic band.
type Estimate struct {
	Mean   float64
	Median float64
	P10    float64
	P25    float64
	P75    float64
	P90    float64
}

// WeightedEstimate computes the quality-weighted mean and percentiles of valid observations.
// Percentiles index the sorted values at floor(n*p), clamped to the slice bounds; they are
// deliberately not interpolated.
func WeightedEstimate(valid []model.MarketObservation) (Estimate, error) {
	if len(valid) == 0 {
		return Estimate{}, ErrInsufficientData
	}

	values := make([]float64, len(valid))
	weights := make([]float64, len(valid))
	for i, o := range valid {
		values[i] = o.Value
		weights[i] = float64(o.Quality)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return Estimate{
		Mean:   stat.Mean(values, weights),
		Median: Percentile(sorted, 0.5),
		P10:    Percentile(sorted, 0.10),
		P25:    Percentile(sorted, 0.25),
		P75:    Percentile(sorted, 0.75),
		P90:    Percentile(sorted, 0.90),
	}, nil
}

// Percentile returns sorted[floor(n*p)] with the index clamped to [0, n-1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(float64(n) * p))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}
