package usecase

import (
	"context"
	"fmt"

	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

// trialScore is the per-trial collapse of a fused segment list.
type trialScore struct {
	trialID string
	score   float64
}

// collapseByTrial keeps the best fused score per trial, preserving the
// fused ordering so the first occurrence of a trial fixes its position.
func collapseByTrial(segments []domain.ScoredSegment) []trialScore {
	seen := make(map[string]struct{}, len(segments))
	out := make([]trialScore, 0, len(segments))
	for _, hit := range segments {
		id := hit.Segment.TrialID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, trialScore{trialID: id, score: hit.Score})
	}
	return out
}

// hydrateTrials resolves collapsed scores into full trial records. Trials
// missing from the catalog are dropped, not errors: the index may run ahead
// of a catalog rebuild.
func hydrateTrials(ctx context.Context, catalog ports.TrialCatalog, scores []trialScore) ([]domain.RankedTrial, error) {
	if len(scores) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(scores))
	for _, s := range scores {
		ids = append(ids, s.trialID)
	}

	records, err := catalog.ListTrialsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate trials: %w", err)
	}
	byID := make(map[string]domain.TrialRecord, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	out := make([]domain.RankedTrial, 0, len(scores))
	for _, s := range scores {
		record, ok := byID[s.trialID]
		if !ok {
			continue
		}
		out = append(out, domain.RankedTrial{Trial: record, Score: s.score})
	}
	return out, nil
}

// truncateMatches caps the match list without touching scores or order.
func truncateMatches(matches []domain.MatchResult, limit int) ([]domain.MatchResult, bool) {
	if limit <= 0 || len(matches) <= limit {
		return matches, false
	}
	return matches[:limit], true
}

func trimRankedTrials(trials []domain.RankedTrial, limit int) []domain.RankedTrial {
	if limit <= 0 || len(trials) <= limit {
		return trials
	}
	return trials[:limit]
}
