package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/metrics"
)

// Options controls the embedding-failure policy.
//
// With EnableFallback the handler answers embedding failures with a
// deterministic hash-derived pseudo-embedding instead of failing the
// request. The retrieved fragments are then NOT semantically related to
// the query; the degraded state is surfaced via EmbeddingSource and
// counted in metrics. Off by default (fail-closed).
type Options struct {
	EnableFallback     bool
	FallbackDimensions int
}

// Service handles pure semantic search actions.
type Service struct {
	frags  FragmentSearcher
	embed  Embedder
	opts   Options
	logger *zap.Logger
}

// New creates a search service.
func New(frags FragmentSearcher, embed Embedder, opts Options, logger *zap.Logger) *Service {
	return &Service{frags: frags, embed: embed, opts: opts, logger: logger}
}

// Execute implements the dispatch handler contract.
func (s *Service) Execute(ctx context.Context, act domain.Action) (domain.Result, error) {
	if err := act.Validate(); err != nil {
		return nil, err
	}
	return s.Search(ctx, act.Query, act.TopK, act.Filters, act.MinScore)
}

// Search embeds the query, retrieves the nearest fragments, and returns
// them ordered by descending score, truncated to topK.
func (s *Service) Search(
	ctx context.Context, query string, topK int, filters map[string]string, minScore float64,
) (domain.SearchResult, error) {
	qe, err := s.embedQuery(ctx, query)
	if err != nil {
		return domain.SearchResult{}, err
	}

	fragments, err := s.frags.Search(ctx, qe.Vector, topK, filters)
	if err != nil {
		return domain.SearchResult{}, fmt.Errorf("retrieve fragments: %w", err)
	}

	if minScore > 0 {
		filtered := fragments[:0]
		for _, f := range fragments {
			if f.Score >= minScore {
				filtered = append(filtered, f)
			}
		}
		fragments = filtered
	}

	if len(fragments) > topK {
		fragments = fragments[:topK]
	}

	return domain.SearchResult{Fragments: fragments, EmbeddingSource: qe.Source}, nil
}

// embedQuery vectorizes the query, applying the fallback policy on
// provider failure. Cancellation is never answered with a fallback.
func (s *Service) embedQuery(ctx context.Context, query string) (domain.QueryEmbedding, error) {
	res, err := s.embed.Embed(ctx, query)
	if err == nil {
		return domain.QueryEmbedding{Vector: res.Embedding, Source: domain.SourceReal}, nil
	}

	if !s.opts.EnableFallback || isContextErr(err) {
		if !errors.Is(err, domain.ErrEmbedding) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
		}
		return domain.QueryEmbedding{}, fmt.Errorf("embed query: %w", err)
	}

	s.logger.Warn("embedding failed, answering with hash-fallback embedding",
		zap.Error(err),
	)
	metrics.EmbeddingFallbackTotal.Inc()

	return domain.QueryEmbedding{
		Vector: fallbackVector(query, s.opts.FallbackDimensions),
		Source: domain.SourceFallback,
	}, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
