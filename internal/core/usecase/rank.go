package usecase

import (
	"sort"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

// sortMatchResults orders eligible patients first by score descending, then
// patient id ascending; ineligible patients follow ordered by patient id.
// Equal inputs always produce the same ordering.
func sortMatchResults(results []domain.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Eligible != results[j].Eligible {
			return results[i].Eligible
		}
		if results[i].Eligible && results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PatientID < results[j].PatientID
	})
}

func sortRankedTrials(trials []domain.RankedTrial) {
	sort.SliceStable(trials, func(i, j int) bool {
		if trials[i].Score != trials[j].Score {
			return trials[i].Score > trials[j].Score
		}
		return trials[i].Trial.ID < trials[j].Trial.ID
	})
}

func sortTrialMatches(matches []domain.TrialMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].TrialID < matches[j].TrialID
	})
}
