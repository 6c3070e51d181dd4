package databases

import "context"

// VectorResult represents a single nearest neighbor lookup result.
type VectorResult struct {
	ID       string
	Score    float64 // Higher is closer by default
	Metadata map[string]string
}

// VectorStore defines the minimum interface for a pluggable vector store,
// backing internal/mission's retrieval-context injection step.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)
}
