package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// EmbeddingSource tags whether a query embedding came from the real
// provider or from the degraded hash fallback.
type EmbeddingSource string

const (
	// SourceReal marks a genuine provider embedding.
	SourceReal EmbeddingSource = "real"
	// SourceFallback marks a hash-derived substitute. Fragments retrieved
	// with it are not semantically related to the query.
	SourceFallback EmbeddingSource = "fallback"
)

// QueryEmbedding is the embedding actually used for retrieval, carrying
// its origin so the degraded path stays visible at every call site.
type QueryEmbedding struct {
	Vector []float32
	Source EmbeddingSource
}
