// Package recognition turns face crops into identity guesses. It holds the
// reference embeddings for known people, the cosine matcher over them, the
// HTTP client for the external embedding model, and the bounded result cache
// that keeps the expensive matcher off the hot path.
package recognition

import (
	"context"
	"math"
)

// Unknown is the sentinel identity for faces that could not be matched.
const Unknown = "Unknown"

// Result is an identity guess for a single face crop.
type Result struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Matcher resolves a face crop to an identity. Implementations may call out
// to an external model and can fail; callers degrade failures to Unknown.
type Matcher interface {
	Match(ctx context.Context, crop []byte) (Result, error)
}

// CosineSimilarity computes the cosine similarity between two embedding
// vectors. Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
