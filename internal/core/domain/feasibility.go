package domain

type FeasibilityTier string

const (
	TierHigh   FeasibilityTier = "HIGH"
	TierMedium FeasibilityTier = "MEDIUM"
	TierLow    FeasibilityTier = "LOW"
)

// MatchResult is the outcome of evaluating one patient against a criteria
// set. Score is the best condition similarity observed, zero when the
// semantic stage was never reached. Reasons are ordered as evaluated.
type MatchResult struct {
	PatientID string   `json:"patient_id"`
	Eligible  bool     `json:"eligible"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reasons"`
}

// DemographicBreakdown summarizes the eligible subset. Gender values are
// proportions of the eligible population, not counts.
type DemographicBreakdown struct {
	Genders   map[string]float64 `json:"genders"`
	MeanAge   float64            `json:"mean_age"`
	MedianAge float64            `json:"median_age"`
}

// FeasibilityReport scores recruitment against a target enrollment.
// Demographics is nil when no patient was eligible.
type FeasibilityReport struct {
	EligibleCount    int                   `json:"eligible_count"`
	TargetEnrollment int                   `json:"target_enrollment"`
	Ratio            float64               `json:"ratio"`
	Tier             FeasibilityTier       `json:"tier"`
	Demographics     *DemographicBreakdown `json:"demographics,omitempty"`
	Trials           []RankedTrial         `json:"trials,omitempty"`
}

// PopulationResult pairs a feasibility report with the per-patient match
// results that produced it. Evaluated counts every patient screened,
// including those dropped by the result limit.
type PopulationResult struct {
	Report    FeasibilityReport `json:"report"`
	Matches   []MatchResult     `json:"matches"`
	Evaluated int               `json:"evaluated"`
	Truncated bool              `json:"truncated"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// AnalyzeResult is the assembled output of the full feasibility pipeline.
type AnalyzeResult struct {
	Query     string              `json:"query"`
	Trials    []RankedTrial       `json:"trials"`
	Criteria  EligibilityCriteria `json:"criteria"`
	Report    FeasibilityReport   `json:"report"`
	Matches   []MatchResult       `json:"matches"`
	Evaluated int                 `json:"evaluated"`
	Truncated bool                `json:"truncated"`
	Warnings  []string            `json:"warnings,omitempty"`
}
