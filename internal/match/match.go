// Package match implements cosine-similarity comparison between face
// embeddings. It is a pure computation layer: no persistence, no session
// awareness. Swapping the linear scan for an indexed nearest-neighbor
// structure only needs to preserve Best's contract.
package match

import "math"

// Cosine returns the cosine similarity of two vectors, in [-1, 1].
// Vectors of different lengths compare as 0 rather than erroring; stored
// templates can come from a different extraction model than the probe, and
// a dimension mismatch simply means "not this candidate".
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Candidate pairs a student with a decrypted embedding.
type Candidate struct {
	StudentID string
	Embedding []float64
}

// Best scans every candidate and returns the highest-similarity one together
// with its score. Ties resolve to the first candidate encountered (strict
// greater-than comparison). With no candidates it returns (nil, 0).
func Best(probe []float64, candidates []Candidate) (*Candidate, float64) {
	var best *Candidate
	score := math.Inf(-1)
	for i := range candidates {
		if sim := Cosine(probe, candidates[i].Embedding); sim > score {
			score = sim
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, score
}
