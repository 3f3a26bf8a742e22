package querydex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/db"
	dbRedis "github.com/kailas-cloud/querydex/internal/db/redis"
	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/metrics"
	"github.com/kailas-cloud/querydex/internal/repository/embcache"
	fragmentrepo "github.com/kailas-cloud/querydex/internal/repository/fragment"
	openaiClient "github.com/kailas-cloud/querydex/internal/transport/openai"
	generateuc "github.com/kailas-cloud/querydex/internal/usecase/generate"
	searchuc "github.com/kailas-cloud/querydex/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces for substitution in tests.
type searchUseCase interface {
	Search(ctx context.Context, query string, topK int, filters map[string]string, minScore float64) (domain.SearchResult, error)
}

type generateUseCase interface {
	Generate(ctx context.Context, query string, topK int, filters map[string]string) (domain.GenerationResult, error)
}

// Client is the querydex SDK entry point.
type Client struct {
	store       db.Store
	embHealth   domain.HealthChecker
	searchSvc   searchUseCase
	generateSvc generateUseCase
	obs         *observer
}

// New creates a querydex Client and connects to the store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		embeddingModel:  "text-embedding-3-small",
		dimensions:      1536,
		generationModel: "gpt-4o-mini",
		indexName:       "querydex_fragments",
		keyPrefix:       "querydex:",
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("querydex: redis address required (use WithRedis)")
	}
	if cfg.apiKey == "" {
		return nil, errors.New("querydex: api key required (use WithOpenAI)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("querydex: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("querydex: store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

// wireClient assembles the pipelines over an open store.
func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	// Internal components log through the SDK observer instead.
	internalLog := zap.NewNop()

	base := openaiClient.NewEmbedder(&openaiClient.EmbedderConfig{
		APIKey:     cfg.apiKey,
		BaseURL:    cfg.baseURL,
		Model:      cfg.embeddingModel,
		Dimensions: cfg.dimensions,
		Provider:   "openai",
		Logger:     internalLog,
	})
	var embedder domain.Embedder = base
	if cfg.cacheEnabled {
		embedder = embcache.New(
			embedder, store,
			cfg.keyPrefix+"embcache:", cfg.cacheTTL,
			metrics.EmbeddingCacheTotal, internalLog,
		)
	}
	embedder = openaiClient.NewRetryingEmbedder(embedder, openaiClient.RetryConfig{}, internalLog)

	generator := openaiClient.NewRetryingGenerator(
		openaiClient.NewGenerator(&openaiClient.GeneratorConfig{
			APIKey:      cfg.apiKey,
			BaseURL:     cfg.baseURL,
			Model:       cfg.generationModel,
			MaxTokens:   cfg.maxTokens,
			Temperature: cfg.temperature,
			Provider:    "openai",
			Logger:      internalLog,
		}),
		openaiClient.RetryConfig{}, internalLog,
	)

	fragRepo := fragmentrepo.New(store, cfg.indexName, cfg.keyPrefix)

	return &Client{
		store:     store,
		embHealth: base,
		searchSvc: searchuc.New(fragRepo, embedder, searchuc.Options{
			EnableFallback:     cfg.fallbackEnabled,
			FallbackDimensions: cfg.dimensions,
		}, internalLog),
		generateSvc: generateuc.New(fragRepo, embedder, generator, cfg.systemPrompt, internalLog),
		obs:         obs,
	}
}

// Close releases the store connection.
func (c *Client) Close() {
	c.store.Close()
}

// Search retrieves the fragments nearest to the query.
func (c *Client) Search(ctx context.Context, query string, opts ...QueryOption) (SearchResult, error) {
	start := time.Now()
	q := applyQueryOptions(opts)

	res, err := c.searchSvc.Search(ctx, query, q.topK, q.filters, q.minScore)
	c.obs.observe("search", start, err)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{
		Fragments:       toFragments(res.Fragments),
		EmbeddingSource: string(res.EmbeddingSource),
	}, nil
}

// Generate answers the query grounded in retrieved fragments.
func (c *Client) Generate(ctx context.Context, query string, opts ...QueryOption) (Answer, error) {
	start := time.Now()
	q := applyQueryOptions(opts)

	res, err := c.generateSvc.Generate(ctx, query, q.topK, q.filters)
	c.obs.observe("generate", start, err)
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		Text:    res.Answer,
		Sources: toFragments(res.Sources),
		Usage: Usage{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
		},
	}, nil
}

// Health reports the state of the store and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	checks := make(map[string]string, 2)
	status := "ok"

	if err := c.store.Ping(ctx); err != nil {
		checks["store"] = "error"
		status = "degraded"
	} else {
		checks["store"] = "ok"
	}

	if c.embHealth != nil {
		if err := c.embHealth.HealthCheck(ctx); err != nil {
			checks["embedding"] = "error"
			status = "degraded"
		} else {
			checks["embedding"] = "ok"
		}
	}

	return HealthStatus{Status: status, Checks: checks}
}

func toFragments(in []domain.Fragment) []Fragment {
	out := make([]Fragment, 0, len(in))
	for _, f := range in {
		out = append(out, Fragment{
			ID:       f.ID,
			Text:     f.Text,
			Score:    f.Score,
			Metadata: f.Metadata,
		})
	}
	return out
}
