package domain

import "fmt"

// Kind discriminates which handler processes an inbound action.
// Kind values double as the wire-level action_type strings.
type Kind string

const (
	// KindSearch is pure semantic search.
	KindSearch Kind = "query.search"
	// KindGenerate is retrieval-augmented generation.
	KindGenerate Kind = "query.generate"
)

// Action is a single inbound query request. An Action is owned by the
// goroutine handling it and never mutated after creation.
type Action struct {
	RequestID string
	Kind      Kind
	Query     string
	TopK      int
	Filters   map[string]string
	MinScore  float64
}

// Validate checks the fields shared by all action kinds.
func (a Action) Validate() error {
	if a.Query == "" {
		return fmt.Errorf("%w: query text is required", ErrValidation)
	}
	if a.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrValidation, a.TopK)
	}
	if a.MinScore < 0 {
		return fmt.Errorf("%w: min_score must not be negative", ErrValidation)
	}
	return nil
}
