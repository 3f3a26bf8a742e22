package domain

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedAction signals an action kind with no registered handler.
	ErrUnsupportedAction = errors.New("unsupported action")
	// ErrValidation signals malformed action input.
	ErrValidation = errors.New("validation failed")
	// ErrEmbedding signals an embedding call that failed or exhausted retries.
	ErrEmbedding = errors.New("embedding failed")
	// ErrVectorStore signals a retrieval call failure.
	ErrVectorStore = errors.New("vector store failed")
	// ErrGeneration signals an LLM call failure, including rate limits
	// and content-policy rejections.
	ErrGeneration = errors.New("generation failed")
)

// Stable error codes exposed on the wire. Callers branch on these, so
// they never change once published.
const (
	CodeUnsupportedAction = "UnsupportedAction"
	CodeValidation        = "ValidationError"
	CodeEmbedding         = "EmbeddingFailure"
	CodeVectorStore       = "VectorStoreFailure"
	CodeGeneration        = "GenerationFailure"
	CodeCancelled         = "Cancelled"
	CodeInternal          = "Internal"
)

// ErrorDetail is the structured failure surfaced to callers.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Detail maps an error to its stable wire code. Cancellation wins over
// whichever client error it interrupted, so a caller that gave up never
// sees a partial-failure code instead.
func Detail(err error) ErrorDetail {
	msg := err.Error()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorDetail{Code: CodeCancelled, Message: msg}
	case errors.Is(err, ErrUnsupportedAction):
		return ErrorDetail{Code: CodeUnsupportedAction, Message: msg}
	case errors.Is(err, ErrValidation):
		return ErrorDetail{Code: CodeValidation, Message: msg}
	case errors.Is(err, ErrEmbedding):
		return ErrorDetail{Code: CodeEmbedding, Message: msg}
	case errors.Is(err, ErrVectorStore):
		return ErrorDetail{Code: CodeVectorStore, Message: msg}
	case errors.Is(err, ErrGeneration):
		return ErrorDetail{Code: CodeGeneration, Message: msg}
	default:
		return ErrorDetail{Code: CodeInternal, Message: msg}
	}
}
