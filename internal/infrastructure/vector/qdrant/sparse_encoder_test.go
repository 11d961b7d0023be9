package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("phase 2 asthma trial NCT0001")
	v2 := encodeSparseQuery("phase 2 asthma trial NCT0001")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("zulu alpha beta gamma")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestEncodeSparseSegmentBoostsTitleTokens(t *testing.T) {
	plain := encodeSparseSegment("asthma", "")
	boosted := encodeSparseSegment("", "asthma")
	if len(plain.Indices) != 1 || len(boosted.Indices) != 1 {
		t.Fatalf("expected single-term vectors, got %d/%d", len(plain.Indices), len(boosted.Indices))
	}
	if plain.Indices[0] != boosted.Indices[0] {
		t.Fatalf("expected same token index, got %d vs %d", plain.Indices[0], boosted.Indices[0])
	}
	if boosted.Values[0] <= plain.Values[0] {
		t.Fatalf("expected title token weighted above body token, got %f vs %f", boosted.Values[0], plain.Values[0])
	}
}

func TestTokenizeAlphaNumUnicodeAndDigitsStability(t *testing.T) {
	tokens := tokenizeAlphaNum("Étude NCT_0001 phase-2")
	if len(tokens) == 0 {
		t.Fatalf("expected tokens, got empty")
	}
	foundNCT := false
	foundNum := false
	for _, tok := range tokens {
		if tok == "nct" {
			foundNCT = true
		}
		if tok == "0001" {
			foundNum = true
		}
	}
	if !foundNCT || !foundNum {
		t.Fatalf("expected nct and 0001 tokens, got %v", tokens)
	}
}
