package heuristics

import (
	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
)

// defaultSources are published global market size estimates per industry.
var defaultSources = map[string][]model.RawObservation{
	IndustryPetCare: {
		{Value: 261, Unit: "billion", Year: 2022, Publisher: "Grand View Research"},
		{Value: 320, Unit: "billion", Year: 2023, Publisher: "Bloomberg Intelligence"},
		{Value: 303, Unit: "billion", Year: 2023, Publisher: "Statista"},
	},
	IndustryFoodBeverage: {
		{Value: 8.2, Unit: "trillion", Year: 2023, Publisher: "Statista"},
		{Value: 7.5, Unit: "trillion", Year: 2022, Publisher: "Euromonitor"},
	},
	IndustryHealth: {
		{Value: 211, Unit: "billion", Year: 2023, Publisher: "Grand View Research"},
		{Value: 180, Unit: "billion", Year: 2023, Publisher: "McKinsey"},
		{Value: 240, Unit: "billion", Year: 2024, Publisher: "Fortune Business Insights"},
	},
	IndustryFintech: {
		{Value: 226, Unit: "billion", Year: 2023, Publisher: "Precedence Research"},
		{Value: 294, Unit: "billion", Year: 2023, Publisher: "Statista"},
		{Value: 245, Unit: "billion", Year: 2022, Publisher: "Boston Consulting Group"},
	},
	IndustryEducation: {
		{Value: 142, Unit: "billion", Year: 2023, Publisher: "Grand View Research"},
		{Value: 163, Unit: "billion", Year: 2024, Publisher: "HolonIQ"},
	},
	IndustryEcommerce: {
		{Value: 6.3, Unit: "trillion", Year: 2023, Publisher: "eMarketer"},
		{Value: 5.8, Unit: "trillion", Year: 2023, Publisher: "Statista"},
	},
	IndustrySoftware: {
		{Value: 273, Unit: "billion", Year: 2023, Publisher: "Gartner"},
		{Value: 317, Unit: "billion", Year: 2024, Publisher: "Fortune Business Insights"},
		{Value: 295, Unit: "billion", Year: 2023, Publisher: "IDC"},
	},
	IndustryTravel: {
		{Value: 1.9, Unit: "trillion", Year: 2023, Publisher: "Statista"},
		{Value: 2.1, Unit: "trillion", Year: 2024, Publisher: "World Travel & Tourism Council"},
	},
	IndustryFitness: {
		{Value: 96, Unit: "billion", Year: 2023, Publisher: "Statista"},
		{Value: 87, Unit: "billion", Year: 2022, Publisher: "Deloitte"},
	},
	IndustryRealEstate: {
		{Value: 3.7, Unit: "trillion", Year: 2023, Publisher: "Grand View Research"},
		{Value: 4.1, Unit: "trillion", Year: 2024, Publisher: "Statista"},
	},
	IndustryLogistics: {
		{Value: 9.4, Unit: "trillion", Year: 2023, Publisher: "Precedence Research"},
		{Value: 8.9, Unit: "trillion", Year: 2022, Publisher: "Statista"},
	},
	IndustryGeneral: {
		{Value: 50, Unit: "billion", Year: 2023, Publisher: "Statista"},
		{Value: 65, Unit: "billion", Year: 2022, Publisher: "Euromonitor"},
	},
}

// DefaultSources serves the built-in market tables for the local sizing fallback.
type DefaultSources struct{}

var _ core.FallbackSources = DefaultSources{}

// NewDefaultSources creates the fallback table.
func NewDefaultSources() DefaultSources { return DefaultSources{} }

// SourcesFor returns a copy of the industry's observations, or the general consumer table
// for industries without one.
func (DefaultSources) SourcesFor(industry string) []model.RawObservation {
	rows, ok := defaultSources[normalizeIndustry(industry)]
	if !ok {
		rows = defaultSources[IndustryGeneral]
	}
	return append([]model.RawObservation(nil), rows...)
}
