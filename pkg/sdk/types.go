package querydex

// Fragment is a retrieved corpus fragment with its similarity score.
type Fragment struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]string
}

// SearchResult holds ranked fragments and reports how the query was
// vectorized ("real" or "fallback").
type SearchResult struct {
	Fragments       []Fragment
	EmbeddingSource string
}

// Usage is the token accounting reported by the generation provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Answer is a generated response with the fragments it was grounded in.
type Answer struct {
	Text    string
	Sources []Fragment
	Usage   Usage
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component -> "ok"/"error"
}

const (
	defaultTopK = 10
	maxTopK     = 100
)

type queryOptions struct {
	topK     int
	filters  map[string]string
	minScore float64
}

// QueryOption customizes a single Search or Generate call.
type QueryOption func(*queryOptions)

// TopK limits the number of retrieved fragments. Values above the
// maximum are capped.
func TopK(k int) QueryOption {
	return func(q *queryOptions) {
		q.topK = k
	}
}

// Filter restricts retrieval to fragments whose metadata field equals
// the given value. Multiple filters combine with AND.
func Filter(field, value string) QueryOption {
	return func(q *queryOptions) {
		if q.filters == nil {
			q.filters = make(map[string]string)
		}
		q.filters[field] = value
	}
}

// MinScore drops fragments scoring below the threshold.
func MinScore(score float64) QueryOption {
	return func(q *queryOptions) {
		q.minScore = score
	}
}

func applyQueryOptions(opts []QueryOption) queryOptions {
	q := queryOptions{topK: defaultTopK}
	for _, o := range opts {
		o(&q)
	}
	if q.topK <= 0 {
		q.topK = defaultTopK
	}
	if q.topK > maxTopK {
		q.topK = maxTopK
	}
	return q
}
