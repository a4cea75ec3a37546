package vectorstore

import "math"

// cosineSimilarity returns the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude or the lengths differ.
// Used by the SQLite and in-memory backends; pgvector computes this natively.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
