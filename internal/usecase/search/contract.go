package search

import (
	"context"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// FragmentSearcher retrieves ranked fragments from the vector index.
type FragmentSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]domain.Fragment, error)
}

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
