package ports

import (
	"context"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

// TrialSearcher is the inbound contract for corpus search.
type TrialSearcher interface {
	Search(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.RankedTrial, error)
}

// PopulationEvaluator evaluates the registry against a supplied criteria set.
type PopulationEvaluator interface {
	EvaluatePopulation(ctx context.Context, criteria domain.EligibilityCriteria, limit int) (*domain.PopulationResult, error)
}

// FeasibilityAnalyzer runs the full pipeline: search, criteria derivation,
// population evaluation, feasibility scoring.
type FeasibilityAnalyzer interface {
	Analyze(ctx context.Context, query string, requestedEnrollment, topK, limit int) (*domain.AnalyzeResult, error)
}

// PatientMatcher finds candidate trials for one registry patient.
type PatientMatcher interface {
	MatchPatient(ctx context.Context, patientID string, topK int, minScore float64) ([]domain.TrialMatch, error)
}

// TrialIndexer is the inbound contract for asynchronous corpus indexing.
// The int result is the number of segments written.
type TrialIndexer interface {
	IndexTrialByID(ctx context.Context, trialID string) (int, error)
}
