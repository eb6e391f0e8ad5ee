package recognition

import (
	"context"
	"fmt"
)

// Embedder abstracts the external model call the matcher needs.
type Embedder interface {
	EmbedFace(ctx context.Context, cropData []byte) ([]float32, error)
}

// EmbeddingMatcher resolves crops against the reference embedding store by
// cosine similarity.
type EmbeddingMatcher struct {
	embedder  Embedder
	store     *EmbeddingStore
	threshold float64
}

// NewEmbeddingMatcher creates a matcher. Similarities at or below threshold
// resolve to Unknown.
func NewEmbeddingMatcher(embedder Embedder, store *EmbeddingStore, threshold float64) *EmbeddingMatcher {
	return &EmbeddingMatcher{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
	}
}

// Match embeds the crop and returns the best-matching known person. A match
// below the similarity threshold resolves to Unknown; the similarity is
// still reported so callers can log near-misses.
func (m *EmbeddingMatcher) Match(ctx context.Context, crop []byte) (Result, error) {
	embedding, err := m.embedder.EmbedFace(ctx, crop)
	if err != nil {
		return Result{}, fmt.Errorf("embedding crop: %w", err)
	}

	name, similarity := m.store.Best(embedding)
	if name == "" || similarity <= m.threshold {
		return Result{Name: Unknown, Confidence: similarity}, nil
	}
	return Result{Name: name, Confidence: similarity}, nil
}
