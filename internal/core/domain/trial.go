package domain

import "time"

const (
	TrialStatusRecruiting = "recruiting"
	TrialStatusActive     = "active"
	TrialStatusCompleted  = "completed"
	TrialStatusSuspended  = "suspended"

	// GenderAll marks a trial (or criteria set) open to every patient.
	GenderAll = "all"
)

type TrialRecord struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Phase             string    `json:"phase,omitempty"`
	Status            string    `json:"status"`
	Sponsor           string    `json:"sponsor,omitempty"`
	Conditions        []string  `json:"conditions"`
	MinAge            *int      `json:"min_age,omitempty"`
	MaxAge            *int      `json:"max_age,omitempty"`
	EligibleGenders   []string  `json:"eligible_genders"`
	InclusionCriteria string    `json:"inclusion_criteria,omitempty"`
	ExclusionCriteria string    `json:"exclusion_criteria,omitempty"`
	Locations         []string  `json:"locations,omitempty"`
	Enrollment        int       `json:"enrollment,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AdmitsGender reports whether the trial's gender constraint admits the
// given (already lowercased) patient gender.
func (t TrialRecord) AdmitsGender(gender string) bool {
	if len(t.EligibleGenders) == 0 {
		return true
	}
	for _, g := range t.EligibleGenders {
		if g == GenderAll || g == gender {
			return true
		}
	}
	return false
}

// TrialSegment is one indexed slice of a trial document. Identity is the
// (TrialID, Index) pair.
type TrialSegment struct {
	TrialID string `json:"trial_id"`
	Index   int    `json:"index"`
	Section string `json:"section,omitempty"`
	Text    string `json:"text"`
}

type ScoredSegment struct {
	Segment TrialSegment `json:"segment"`
	Score   float64      `json:"score"`
}

type RankedTrial struct {
	Trial TrialRecord `json:"trial"`
	Score float64     `json:"score"`
}

// TrialMatch is a trial-level match for a single patient.
type TrialMatch struct {
	TrialID  string   `json:"trial_id"`
	Title    string   `json:"title"`
	Phase    string   `json:"phase,omitempty"`
	Status   string   `json:"status"`
	Score    float64  `json:"score"`
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// SearchFilter narrows index queries before fusion. Empty fields match
// everything.
type SearchFilter struct {
	Phase     string
	Status    string
	Condition string
}

func (f SearchFilter) IsZero() bool {
	return f.Phase == "" && f.Status == "" && f.Condition == ""
}
