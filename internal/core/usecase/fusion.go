package usecase

import (
	"fmt"
	"sort"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

const (
	fusionStrategyRRF      = "rrf"
	fusionStrategyWeighted = "weighted"
)

type fusedCandidate struct {
	segment domain.TrialSegment
	score   float64
}

// fuseSegmentsRRF merges two retrieval lists with Reciprocal Rank Fusion.
// A segment appearing in both lists accumulates both rank contributions.
// The function is symmetric in its arguments: swapping the lists changes
// neither the fused scores nor the final ordering.
func fuseSegmentsRRF(a, b []domain.ScoredSegment, rrfK int) []domain.ScoredSegment {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(a)+len(b))
	addList := func(hits []domain.ScoredSegment) {
		for rank, hit := range hits {
			key := segmentKey(hit.Segment)
			candidate := acc[key]
			candidate.segment = preferRicherSegment(candidate.segment, hit.Segment)
			candidate.score += 1.0 / float64(rrfK+rank+1)
			acc[key] = candidate
		}
	}

	addList(a)
	addList(b)

	out := make([]domain.ScoredSegment, 0, len(acc))
	for _, c := range acc {
		out = append(out, domain.ScoredSegment{Segment: c.segment, Score: c.score})
	}

	sortFusedSegments(out)
	return out
}

// fuseSegmentsWeighted min-max normalizes each list's native scores, then
// combines them as denseWeight*dense + (1-denseWeight)*sparse. Unlike RRF
// the two lists play distinct roles here.
func fuseSegmentsWeighted(dense, sparse []domain.ScoredSegment, denseWeight float64) []domain.ScoredSegment {
	if denseWeight < 0 || denseWeight > 1 {
		denseWeight = 0.7
	}
	sparseWeight := 1 - denseWeight

	acc := make(map[string]fusedCandidate, len(dense)+len(sparse))
	addList := func(hits []domain.ScoredSegment, weight float64) {
		normalize := minMaxNormalizer(hits)
		for _, hit := range hits {
			key := segmentKey(hit.Segment)
			candidate := acc[key]
			candidate.segment = preferRicherSegment(candidate.segment, hit.Segment)
			candidate.score += weight * normalize(hit.Score)
			acc[key] = candidate
		}
	}

	addList(dense, denseWeight)
	addList(sparse, sparseWeight)

	out := make([]domain.ScoredSegment, 0, len(acc))
	for _, c := range acc {
		out = append(out, domain.ScoredSegment{Segment: c.segment, Score: c.score})
	}

	sortFusedSegments(out)
	return out
}

func minMaxNormalizer(hits []domain.ScoredSegment) func(float64) float64 {
	if len(hits) == 0 {
		return func(float64) float64 { return 0 }
	}
	minScore := hits[0].Score
	maxScore := hits[0].Score
	for _, hit := range hits[1:] {
		if hit.Score < minScore {
			minScore = hit.Score
		}
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	rangeScore := maxScore - minScore
	return func(v float64) float64 {
		if rangeScore <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / rangeScore
	}
}

func sortFusedSegments(out []domain.ScoredSegment) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Segment.TrialID != out[j].Segment.TrialID {
			return out[i].Segment.TrialID < out[j].Segment.TrialID
		}
		return out[i].Segment.Index < out[j].Segment.Index
	})
}

func trimSegments(segments []domain.ScoredSegment, limit int) []domain.ScoredSegment {
	if limit <= 0 || len(segments) <= limit {
		return segments
	}
	return segments[:limit]
}

func segmentKey(segment domain.TrialSegment) string {
	if segment.TrialID != "" && segment.Index >= 0 {
		return fmt.Sprintf("%s:%d", segment.TrialID, segment.Index)
	}
	return fmt.Sprintf("%s|%s|%s", segment.TrialID, segment.Section, segment.Text)
}

func preferRicherSegment(current, candidate domain.TrialSegment) domain.TrialSegment {
	if current.TrialID == "" && current.Section == "" && current.Text == "" {
		return candidate
	}
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Section == "" && candidate.Section != "" {
		current.Section = candidate.Section
	}
	if current.TrialID == "" && candidate.TrialID != "" {
		current.TrialID = candidate.TrialID
	}
	return current
}
