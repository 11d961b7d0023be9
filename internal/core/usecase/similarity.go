package usecase

import (
	"math"
	"strings"
)

// cosineSimilarity works on raw (not necessarily unit-length) vectors.
// Mismatched or empty vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalizeConditionText canonicalizes a condition string for comparison
// and cache keying: lowercase, trimmed, inner whitespace collapsed.
func normalizeConditionText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
