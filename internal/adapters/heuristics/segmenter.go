package heuristics

import (
	"context"

	"github.com/target/marketlens/internal/core"
	"github.com/target/marketlens/internal/domain/model"
)

var segmentTemplates = map[string][]model.Segment{
	IndustryPetCare: {
		{Name: "Dog owners", Percentage: 38, PainPoints: []string{"cost of premium food", "time for care"}},
		{Name: "Cat owners", Percentage: 25, PainPoints: []string{"finding trusted products"}},
		{Name: "First-time pet owners", Percentage: 12, PainPoints: []string{"lack of guidance"}},
	},
	IndustryFintech: {
		{Name: "Young professionals", Percentage: 30, PainPoints: []string{"fees", "poor visibility into spending"}},
		{Name: "Freelancers", Percentage: 15, PainPoints: []string{"irregular income"}},
		{Name: "Underbanked households", Percentage: 10, PainPoints: []string{"access to credit"}},
	},
	IndustryHealth: {
		{Name: "Chronic condition patients", Percentage: 25, PainPoints: []string{"ongoing care coordination"}},
		{Name: "Busy working adults", Percentage: 30, PainPoints: []string{"appointment access"}},
		{Name: "Caregivers", Percentage: 10, PainPoints: []string{"managing care for others"}},
	},
	IndustryFoodBeverage: {
		{Name: "Busy professionals", Percentage: 35, PainPoints: []string{"no time to cook"}},
		{Name: "Health-conscious eaters", Percentage: 25, PainPoints: []string{"finding healthy options"}},
		{Name: "Families", Percentage: 20, PainPoints: []string{"meal planning"}},
	},
	IndustryEducation: {
		{Name: "K-12 parents", Percentage: 30, PainPoints: []string{"tutoring costs"}},
		{Name: "Adult career switchers", Percentage: 20, PainPoints: []string{"time to upskill"}},
		{Name: "University students", Percentage: 20, PainPoints: []string{"affordable study help"}},
	},
	IndustrySoftware: {
		{Name: "Small businesses", Percentage: 35, PainPoints: []string{"manual processes"}},
		{Name: "Mid-market companies", Percentage: 20, PainPoints: []string{"tool sprawl"}},
		{Name: "Enterprise teams", Percentage: 10, PainPoints: []string{"integration and compliance"}},
	},
}

var genericB2C = []model.Segment{
	{Name: "Early adopters", Percentage: 15, PainPoints: []string{"want better alternatives"}},
	{Name: "Mainstream consumers", Percentage: 35, PainPoints: []string{"convenience"}},
	{Name: "Price-sensitive buyers", Percentage: 15, PainPoints: []string{"cost"}},
}

var genericB2B = []model.Segment{
	{Name: "Small businesses", Percentage: 30, PainPoints: []string{"limited budget and staff"}},
	{Name: "Mid-market companies", Percentage: 20, PainPoints: []string{"scaling operations"}},
	{Name: "Enterprises", Percentage: 10, PainPoints: []string{"procurement and integration"}},
}

// TemplateSegmenter returns segment templates by industry.
type TemplateSegmenter struct{}

var _ core.Segmenter = TemplateSegmenter{}

// NewTemplateSegmenter creates the template segmenter.
func NewTemplateSegmenter() TemplateSegmenter { return TemplateSegmenter{} }

// Name identifies the provider.
func (TemplateSegmenter) Name() string { return "templates" }

// Segment picks the industry template, falling back to generic B2B or B2C segments.
func (TemplateSegmenter) Segment(ctx context.Context, _ model.AnalysisInput, c *model.Classification) (*model.Segmentation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var industry, customer string
	if c != nil {
		industry = normalizeIndustry(c.Industry)
		customer = c.TargetCustomer
	}

	template, ok := segmentTemplates[industry]
	switch {
	case ok:
	case customer == "B2B":
		template = genericB2B
	default:
		template = genericB2C
	}

	segments := make([]model.Segment, len(template))
	for i, seg := range template {
		seg.PainPoints = append([]string(nil), seg.PainPoints...)
		segments[i] = seg
	}
	return &model.Segmentation{PrimarySegments: segments}, nil
}
