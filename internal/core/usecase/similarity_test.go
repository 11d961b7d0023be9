package usecase

import "testing"

func TestCosineSimilarityKnownValues(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "half", a: []float32{1, 1, 1, 1}, b: []float32{2, 0, 0, 0}, want: 0.5},
		{name: "scale invariant", a: []float32{3, 0}, b: []float32{7, 0}, want: 1},
	}
	for _, tc := range cases {
		if got := cosineSimilarity(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	if got := cosineSimilarity(nil, nil); got != 0 {
		t.Fatalf("expected 0 for empty vectors, got %v", got)
	}
	if got := cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("expected 0 for mismatched lengths, got %v", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("expected 0 for zero vector, got %v", got)
	}
}

func TestNormalizeConditionText(t *testing.T) {
	if got := normalizeConditionText("  Type 2   DIABETES \t Mellitus "); got != "type 2 diabetes mellitus" {
		t.Fatalf("expected collapsed lowercase text, got %q", got)
	}
	if got := normalizeConditionText("   "); got != "" {
		t.Fatalf("expected empty string for whitespace input, got %q", got)
	}
}
