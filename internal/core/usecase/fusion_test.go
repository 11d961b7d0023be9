package usecase

import (
	"testing"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

func TestFuseSegmentsRRFDeduplicatesBySegmentKey(t *testing.T) {
	dense := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT001", Index: 0, Section: "description", Text: "a"}, Score: 0.9},
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 0, Section: "description", Text: "b"}, Score: 0.8},
	}
	sparse := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 0, Section: "description", Text: "b"}, Score: 12.0},
		{Segment: domain.TrialSegment{TrialID: "NCT003", Index: 1, Section: "criteria", Text: "c"}, Score: 4.0},
	}

	fused := fuseSegmentsRRF(dense, sparse, 60)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused segments, got %d", len(fused))
	}
	if fused[0].Segment.TrialID != "NCT002" {
		t.Fatalf("expected NCT002 first after RRF fusion, got %s", fused[0].Segment.TrialID)
	}
}

func TestFuseSegmentsRRFKnownScore(t *testing.T) {
	segment := domain.TrialSegment{TrialID: "NCT001", Index: 0, Section: "description", Text: "a"}
	dense := []domain.ScoredSegment{{Segment: segment, Score: 0.9}}
	sparse := []domain.ScoredSegment{{Segment: segment, Score: 7.5}}

	fused := fuseSegmentsRRF(dense, sparse, 60)
	if len(fused) != 1 {
		t.Fatalf("expected 1 fused segment, got %d", len(fused))
	}
	want := 1.0/61 + 1.0/61
	if fused[0].Score != want {
		t.Fatalf("expected score %v, got %v", want, fused[0].Score)
	}
}

func TestFuseSegmentsRRFTieBreakByTrialID(t *testing.T) {
	dense := []domain.ScoredSegment{{Segment: domain.TrialSegment{TrialID: "NCT900", Index: 0, Text: "b"}}}
	sparse := []domain.ScoredSegment{{Segment: domain.TrialSegment{TrialID: "NCT100", Index: 0, Text: "a"}}}

	fused := fuseSegmentsRRF(dense, sparse, 1000)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused segments, got %d", len(fused))
	}
	if fused[0].Segment.TrialID != "NCT100" {
		t.Fatalf("expected tie-break by trial id, got first=%s", fused[0].Segment.TrialID)
	}
}

func TestFuseSegmentsRRFSymmetric(t *testing.T) {
	a := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT001", Index: 0, Text: "a"}, Score: 0.9},
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 1, Text: "b"}, Score: 0.5},
		{Segment: domain.TrialSegment{TrialID: "NCT003", Index: 0, Text: "c"}, Score: 0.4},
	}
	b := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 1, Text: "b"}, Score: 9.0},
		{Segment: domain.TrialSegment{TrialID: "NCT004", Index: 2, Text: "d"}, Score: 3.0},
	}

	ab := fuseSegmentsRRF(a, b, 60)
	ba := fuseSegmentsRRF(b, a, 60)
	if len(ab) != len(ba) {
		t.Fatalf("expected same length, got %d vs %d", len(ab), len(ba))
	}
	for i := range ab {
		if ab[i].Segment.TrialID != ba[i].Segment.TrialID || ab[i].Segment.Index != ba[i].Segment.Index {
			t.Fatalf("expected identical ordering at %d, got %s:%d vs %s:%d",
				i, ab[i].Segment.TrialID, ab[i].Segment.Index, ba[i].Segment.TrialID, ba[i].Segment.Index)
		}
		if ab[i].Score != ba[i].Score {
			t.Fatalf("expected identical score at %d, got %v vs %v", i, ab[i].Score, ba[i].Score)
		}
	}
}

func TestFuseSegmentsWeightedOrdersByCombinedScore(t *testing.T) {
	dense := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT001", Index: 0, Text: "a"}, Score: 0.9},
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 0, Text: "b"}, Score: 0.1},
	}
	sparse := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 0, Text: "b"}, Score: 5.0},
		{Segment: domain.TrialSegment{TrialID: "NCT003", Index: 0, Text: "c"}, Score: 1.0},
	}

	fused := fuseSegmentsWeighted(dense, sparse, 0.7)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused segments, got %d", len(fused))
	}
	if fused[0].Segment.TrialID != "NCT001" {
		t.Fatalf("expected dense top hit first at weight 0.7, got %s", fused[0].Segment.TrialID)
	}
	if fused[0].Score <= fused[1].Score || fused[1].Score <= fused[2].Score {
		t.Fatalf("expected strictly descending scores, got %v %v %v", fused[0].Score, fused[1].Score, fused[2].Score)
	}
}

func TestFuseSegmentsWeightedSingleHitListNormalizesToOne(t *testing.T) {
	dense := []domain.ScoredSegment{{Segment: domain.TrialSegment{TrialID: "NCT001", Index: 0, Text: "a"}, Score: 0.42}}

	fused := fuseSegmentsWeighted(dense, nil, 0.7)
	if len(fused) != 1 {
		t.Fatalf("expected 1 fused segment, got %d", len(fused))
	}
	if fused[0].Score != 0.7 {
		t.Fatalf("expected lone dense hit to score the full dense weight, got %v", fused[0].Score)
	}
}

func TestTrimSegmentsKeepsTopOfOrderedList(t *testing.T) {
	segments := []domain.ScoredSegment{
		{Segment: domain.TrialSegment{TrialID: "NCT001", Index: 0}, Score: 0.9},
		{Segment: domain.TrialSegment{TrialID: "NCT002", Index: 0}, Score: 0.8},
		{Segment: domain.TrialSegment{TrialID: "NCT003", Index: 0}, Score: 0.7},
	}

	trimmed := trimSegments(segments, 2)
	if len(trimmed) != 2 {
		t.Fatalf("expected 2 segments after trim, got %d", len(trimmed))
	}
	if trimmed[1].Segment.TrialID != "NCT002" {
		t.Fatalf("expected NCT002 to survive the trim, got %s", trimmed[1].Segment.TrialID)
	}
	if got := trimSegments(segments, 0); len(got) != 3 {
		t.Fatalf("expected limit 0 to keep all segments, got %d", len(got))
	}
}
