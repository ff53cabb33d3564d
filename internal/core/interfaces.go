package core

import (
	"context"

	"github.com/target/marketlens/internal/domain/model"
)

// This file contains the ports (hexagonal architecture) the analysis services depend on.
// Adapters in internal/data and internal/adapters provide the implementations.

// JobStore persists analysis jobs. Implementations must serialize their own writes so that
// concurrent Update calls for different keys of the same job never lose data.
type JobStore interface {
	Get(ctx context.Context, id string) (*model.Job, error)
	Put(ctx context.Context, job *model.Job) error
	// Update merges the patch into the stored job and returns the merged copy.
	// Set fields overwrite, unset fields are retained, Progress and Results merge per key.
	Update(ctx context.Context, patch model.JobPatch) (*model.Job, error)
	Delete(ctx context.Context, id string) (bool, error)
	// ListExpired returns IDs of jobs created before q.Before, optionally filtered by status.
	ListExpired(ctx context.Context, q model.ExpiredJobsQuery) ([]string, error)
}

// Classifier assigns an industry classification to a business idea.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, in model.AnalysisInput) (*model.Classification, error)
}

// Segmenter identifies the primary customer segments for a classified idea.
type Segmenter interface {
	Name() string
	Segment(ctx context.Context, in model.AnalysisInput, c *model.Classification) (*model.Segmentation, error)
}

// ProblemValidator scores the problem statement against market research.
type ProblemValidator interface {
	ValidateProblem(ctx context.Context, req model.ResearchRequest) (*model.ProblemValidationResult, error)
}

// CompetitionAnalyzer gathers competitors and market concentration.
type CompetitionAnalyzer interface {
	AnalyzeCompetition(ctx context.Context, req model.ResearchRequest) (*model.CompetitionAnalysis, error)
}

// MarketDataProvider returns either a finished sizing or the raw sources to size locally.
type MarketDataProvider interface {
	MarketSize(ctx context.Context, req model.ResearchRequest) (*model.MarketDataResponse, error)
}

// Recommender produces the final verdict from whatever analyses completed.
type Recommender interface {
	Name() string
	Recommend(ctx context.Context, in model.RecommendationInput) (*model.Recommendation, error)
}

// FallbackSources supplies default market observations when research returns nothing usable.
type FallbackSources interface {
	SourcesFor(industry string) []model.RawObservation
}

// ResearchService is the research backend: one client answers all three research calls.
type ResearchService interface {
	ProblemValidator
	CompetitionAnalyzer
	MarketDataProvider
}
