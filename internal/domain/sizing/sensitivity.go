package sizing

import (
	"math"
	"sort"

	"github.com/target/marketlens/internal/domain/model"
)

// SensitivityBump is the relative increase applied to one multiplier at a time.
const SensitivityBump = 0.20

type factorAccessor struct {
	name string
	ptr  func(*model.Multipliers) *float64
}

var sensitivityFactors = []factorAccessor{
	{model.FactorGeographic, func(m *model.Multipliers) *float64 { return &m.Geographic }},
	{model.FactorSegments, func(m *model.Multipliers) *float64 { return &m.Segments }},
	{model.FactorTechAdoption, func(m *model.Multipliers) *float64 { return &m.TechAdoption }},
	{model.FactorNewEntrant, func(m *model.Multipliers) *float64 { return &m.NewEntrant }},
	{model.FactorMarketingReach, func(m *model.Multipliers) *float64 { return &m.MarketingReach }},
	{model.FactorConversion, func(m *model.Multipliers) *float64 { return &m.Conversion }},
}

// Sensitivity raises each multiplier by SensitivityBump in turn and reports the percentage
// change in SOM, sorted by absolute impact with ties kept in chain order. The bumped value is
// hypothetical and may exceed 1; it never feeds the reported tiers.
func Sensitivity(tamValue float64, m model.Multipliers) []model.SensitivityItem {
	base := tamValue * m.SAMFactor() * m.SOMFactor()

	items := make([]model.SensitivityItem, 0, len(sensitivityFactors))
	for _, f := range sensitivityFactors {
		bumped := m
		p := f.ptr(&bumped)
		*p *= 1 + SensitivityBump

		impact := 0.0
		if base > 0 {
			som := tamValue * bumped.SAMFactor() * bumped.SOMFactor()
			impact = (som - base) / base * 100
		}
		items = append(items, model.SensitivityItem{
			Factor:        f.name,
			ImpactPercent: math.Round(impact*100) / 100,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return math.Abs(items[i].ImpactPercent) > math.Abs(items[j].ImpactPercent)
	})
	return items
}
