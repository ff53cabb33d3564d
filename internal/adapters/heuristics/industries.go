// Package heuristics provides rule-based classification, segmentation and recommendation so
// the pipeline runs without any LLM credentials, plus the default market source tables used
// when research returns nothing usable.
package heuristics

import (
	"strings"
	"unicode"
)

// Industry names shared by the classifier, the segment templates and the market defaults.
const (
	IndustryPetCare      = "pet care"
	IndustryFoodBeverage = "food & beverage"
	IndustryHealth       = "healthcare"
	IndustryFintech      = "fintech"
	IndustryEducation    = "education"
	IndustryEcommerce    = "e-commerce"
	IndustrySoftware     = "software"
	IndustryTravel       = "travel & hospitality"
	IndustryFitness      = "fitness & wellness"
	IndustryRealEstate   = "real estate"
	IndustryLogistics    = "logistics"
	IndustryGeneral      = "general consumer"
)

type industryRule struct {
	industry    string
	subIndustry string
	keywords    []string
}

// industryRules is checked in order; ties go to the earlier rule.
var industryRules = []industryRule{
	{IndustryPetCare, "pet products & services", []string{"pet", "pets", "dog", "dogs", "cat", "cats", "puppy", "kitten", "veterinary", "vet", "grooming"}},
	{IndustryFintech, "digital finance", []string{"payment", "payments", "bank", "banking", "loan", "loans", "invest", "investing", "crypto", "budget", "budgeting", "insurance", "credit", "wallet"}},
	{IndustryHealth, "digital health", []string{"health", "medical", "doctor", "doctors", "patient", "patients", "clinic", "therapy", "mental", "telehealth", "pharmacy", "diagnosis"}},
	{IndustryFitness, "fitness services", []string{"fitness", "gym", "workout", "yoga", "wellness", "exercise", "training", "meditation"}},
	{IndustryFoodBeverage, "food services", []string{"food", "meal", "meals", "restaurant", "restaurants", "recipe", "recipes", "grocery", "coffee", "snack", "snacks", "kitchen", "catering"}},
	{IndustryEducation, "edtech", []string{"education", "learning", "learn", "student", "students", "course", "courses", "tutor", "tutoring", "school", "teachers", "language"}},
	{IndustryTravel, "travel services", []string{"travel", "hotel", "hotels", "trip", "trips", "booking", "vacation", "tourism", "flight", "flights"}},
	{IndustryRealEstate, "property services", []string{"real", "estate", "property", "properties", "rent", "rental", "landlord", "tenant", "tenants", "housing", "mortgage"}},
	{IndustryLogistics, "delivery & logistics", []string{"delivery", "shipping", "logistics", "freight", "courier", "warehouse", "fleet", "supply"}},
	{IndustrySoftware, "business software", []string{"saas", "software", "platform", "api", "automation", "dashboard", "analytics", "crm", "workflow", "ai"}},
	{IndustryEcommerce, "online retail", []string{"shop", "store", "ecommerce", "e-commerce", "marketplace", "retail", "sell", "selling", "resale", "products"}},
}

var businessModelKeywords = []struct {
	model    string
	keywords []string
}{
	{"subscription", []string{"subscription", "subscribe", "monthly", "membership", "box"}},
	{"marketplace", []string{"marketplace", "connect", "connecting", "matching", "platform"}},
	{"saas", []string{"saas", "software", "dashboard", "tool", "tools"}},
	{"on-demand service", []string{"on-demand", "delivery", "booking", "book"}},
}

var b2bMarkers = []string{"business", "businesses", "companies", "company", "enterprise", "enterprises", "teams", "smb", "b2b", "restaurants", "clinics", "landlords", "retailers"}

// tokenize lowercases text and splits it into words, keeping hyphens inside words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// normalizeIndustry folds case and whitespace so lookups match classifier output from any provider.
func normalizeIndustry(industry string) string {
	return strings.Join(strings.Fields(strings.ToLower(industry)), " ")
}
