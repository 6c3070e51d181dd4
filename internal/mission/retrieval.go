package mission

import (
	"context"
	"strings"

	"agentcore/internal/config"
	"agentcore/internal/embedding"
	"agentcore/internal/persistence/databases"
)

// ContextRetriever supplies the "injected context from retrieval, if
// available" LeafAgent construction step (spec.md §4.12 step 1b). A nil
// ContextRetriever on NodeConfig means no retrieval step runs.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// VectorRetriever embeds the task description and looks up the nearest
// neighbors in a vector store, joining whatever text each hit's metadata
// carries under the "text" key into a single context block.
type VectorRetriever struct {
	Store    databases.VectorStore
	EmbedCfg config.EmbeddingConfig
	TopK     int
}

// NewVectorRetriever constructs a retriever against store, embedding
// queries with embedCfg and returning up to topK nearest neighbors (5 if
// topK <= 0).
func NewVectorRetriever(store databases.VectorStore, embedCfg config.EmbeddingConfig, topK int) *VectorRetriever {
	if topK <= 0 {
		topK = 5
	}
	return &VectorRetriever{Store: store, EmbedCfg: embedCfg, TopK: topK}
}

// Retrieve embeds query and returns the concatenated text of its nearest
// neighbors in the store, most relevant first.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	vectors, err := embedding.EmbedText(ctx, r.EmbedCfg, []string{query})
	if err != nil {
		return "", err
	}

	hits, err := r.Store.SimilaritySearch(ctx, vectors[0], r.TopK, nil)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, hit := range hits {
		text := hit.Metadata["text"]
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
