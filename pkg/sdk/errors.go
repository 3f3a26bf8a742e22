package querydex

import "github.com/kailas-cloud/querydex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation  = domain.ErrValidation
	ErrEmbedding   = domain.ErrEmbedding
	ErrVectorStore = domain.ErrVectorStore
	ErrGeneration  = domain.ErrGeneration
)
