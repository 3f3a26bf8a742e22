package domain

// Result is the closed set of successful action outcomes. Each action
// kind contributes one variant; the transport layer type-switches on it
// to pick the wire representation.
type Result interface {
	isResult()
}

// SearchResult is the outcome of a semantic search action.
type SearchResult struct {
	Fragments       []Fragment
	EmbeddingSource EmbeddingSource
}

func (SearchResult) isResult() {}

// TokenUsage is the generation token accounting as reported by the provider.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// GenerationResult is the outcome of a RAG action. Sources holds exactly
// the fragments that were placed into the prompt, in prompt order, so
// consumers can render citations.
type GenerationResult struct {
	Answer  string
	Sources []Fragment
	Usage   TokenUsage
}

func (GenerationResult) isResult() {}

// ActionResponse is the uniform envelope the dispatcher emits for every
// action. Result is present iff Success; Error is present iff !Success.
type ActionResponse struct {
	RequestID string
	Success   bool
	Result    Result
	Error     *ErrorDetail
}
