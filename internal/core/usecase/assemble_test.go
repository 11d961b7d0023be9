package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

type assembleCatalogFake struct {
	records []domain.TrialRecord
	listErr error
	gotIDs  []string
}

func (f *assembleCatalogFake) UpsertTrial(ctx context.Context, trial *domain.TrialRecord) error {
	return nil
}

func (f *assembleCatalogFake) GetTrial(ctx context.Context, id string) (*domain.TrialRecord, error) {
	return nil, domain.ErrTrialNotFound
}

func (f *assembleCatalogFake) ListTrialsByIDs(ctx context.Context, ids []string) ([]domain.TrialRecord, error) {
	f.gotIDs = ids
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func TestCollapseByTrialKeepsFirstOccurrence(t *testing.T) {
	segments := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT001", Index: 2}, Score: 0.9},
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 0}, Score: 0.8},
		{Segment: domain.TrialSegment{TrialID: "NCT001", Index: 5}, Score: 0.7},
		{Segment: domain.TrialSegment{Index: 1}, Score: 0.6},
	}

	collapsed := collapseByTrial(segments)
	if len(collapsed) != 2 {
		t.Fatalf("expected 2 trials after collapse, got %d", len(collapsed))
	}
	if collapsed[0].trialID != "NCT001" || collapsed[0].score != 0.9 {
		t.Fatalf("expected NCT001 with its best score first, got %s %v", collapsed[0].trialID, collapsed[0].score)
	}
	if collapsed[1].trialID != "NCT002" {
		t.Fatalf("expected NCT002 second, got %s", collapsed[1].trialID)
	}
}

func TestHydrateTrialsDropsMissingRecords(t *testing.T) {
	catalog := &assembleCatalogFake{records: []domain.TrialRecord{{ID: "NCT001", Title: "Asthma Trial"}}}
	scores := []trialScore{
		{trialID: "NCT001", score: 0.9},
		{trialID: "NCT404", score: 0.8},
	}

	ranked, err := hydrateTrials(context.Background(), catalog, scores)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 hydrated trial, got %d", len(ranked))
	}
	if ranked[0].Trial.Title != "Asthma Trial" || ranked[0].Score != 0.9 {
		t.Fatalf("expected hydrated record with fused score, got %+v", ranked[0])
	}
	if len(catalog.gotIDs) != 2 {
		t.Fatalf("expected catalog queried with both ids, got %v", catalog.gotIDs)
	}
}

func TestHydrateTrialsPropagatesCatalogError(t *testing.T) {
	catalog := &assembleCatalogFake{listErr: errors.New("db down")}

	_, err := hydrateTrials(context.Background(), catalog, []trialScore{{trialID: "NCT001"}})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestHydrateTrialsEmptyInput(t *testing.T) {
	catalog := &assembleCatalogFake{}

	ranked, err := hydrateTrials(context.Background(), catalog, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranked != nil {
		t.Fatalf("expected nil result for empty input, got %v", ranked)
	}
	if catalog.gotIDs != nil {
		t.Fatalf("expected catalog untouched, got %v", catalog.gotIDs)
	}
}

func TestTruncateMatches(t *testing.T) {
	matches := []domain.MatchResult{
		{PatientID: "p-1"}, {PatientID: "p-2"}, {PatientID: "p-3"},
	}

	kept, truncated := truncateMatches(matches, 2)
	if !truncated || len(kept) != 2 {
		t.Fatalf("expected truncation to 2, got %d truncated=%v", len(kept), truncated)
	}
	kept, truncated = truncateMatches(matches, 5)
	if truncated || len(kept) != 3 {
		t.Fatalf("expected no truncation, got %d truncated=%v", len(kept), truncated)
	}
	kept, truncated = truncateMatches(matches, 0)
	if truncated || len(kept) != 3 {
		t.Fatalf("expected limit 0 to keep all, got %d truncated=%v", len(kept), truncated)
	}
}
