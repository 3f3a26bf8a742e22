package fragment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/querydex/internal/db"
	"github.com/kailas-cloud/querydex/internal/domain"
)

// contentField holds the fragment text inside the index document.
const contentField = "__content"

// store is the consumer interface for fragment retrieval (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo retrieves ranked fragments from the vector index.
type Repo struct {
	store     store
	indexName string
	keyPrefix string
}

// New creates a fragment repository over the given FT index.
func New(s store, indexName, keyPrefix string) *Repo {
	return &Repo{store: s, indexName: indexName, keyPrefix: keyPrefix}
}

// Search runs a KNN search and returns fragments ordered by descending
// score. Equality filters are applied as index pre-filters.
func (r *Repo) Search(
	ctx context.Context, vector []float32, topK int, filters map[string]string,
) ([]domain.Fragment, error) {
	q := &db.KNNQuery{
		IndexName: r.indexName,
		Vector:    vector,
		K:         topK,
		Tags:      filters,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: search knn %s: %w", domain.ErrVectorStore, r.indexName, err)
	}

	return r.parseResults(sr), nil
}

// parseResults converts db entries into fragments. The index returns hits
// ordered by distance, but the descending-score invariant is enforced
// here rather than assumed.
func (r *Repo) parseResults(sr *db.SearchResult) []domain.Fragment {
	if sr == nil || sr.Total == 0 {
		return nil
	}

	fragments := make([]domain.Fragment, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		fragments = append(fragments, domain.Fragment{
			ID:       strings.TrimPrefix(entry.Key, r.keyPrefix),
			Text:     entry.Fields[contentField],
			Score:    entry.Score,
			Metadata: metadataFields(entry.Fields),
		})
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Score > fragments[j].Score
	})

	return fragments
}

// metadataFields strips index-internal fields (double-underscore prefix)
// from the stored fields, leaving caller-visible provenance metadata.
func metadataFields(fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		if strings.HasPrefix(k, "__") {
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
