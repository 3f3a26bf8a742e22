package querydex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	apiKey         string
	baseURL        string
	embeddingModel string
	dimensions     int

	generationModel string
	maxTokens       int
	temperature     float32
	systemPrompt    string

	indexName string
	keyPrefix string

	fallbackEnabled bool
	cacheTTL        time.Duration
	cacheEnabled    bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithOpenAI sets the API key used for both embeddings and generation.
func WithOpenAI(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
	})
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = url
	})
}

// WithEmbeddingModel sets the embedding model and vector dimensions.
// Defaults: text-embedding-3-small, 1536.
func WithEmbeddingModel(model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
		c.dimensions = dimensions
	})
}

// WithGenerationModel sets the chat model used for answer synthesis.
// Defaults to gpt-4o-mini.
func WithGenerationModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.generationModel = model
	})
}

// WithGenerationLimits sets max_tokens and temperature for answers.
func WithGenerationLimits(maxTokens int, temperature float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTokens = maxTokens
		c.temperature = temperature
	})
}

// WithSystemPrompt overrides the default grounding instructions.
func WithSystemPrompt(prompt string) Option {
	return optionFunc(func(c *clientConfig) {
		c.systemPrompt = prompt
	})
}

// WithIndex sets the fragment index name and key prefix.
// Defaults: querydex_fragments, "querydex:".
func WithIndex(name, keyPrefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
		c.keyPrefix = keyPrefix
	})
}

// WithHashFallback enables deterministic pseudo-embeddings for search
// when the embedding provider is unavailable. Generation never falls
// back regardless of this setting.
func WithHashFallback() Option {
	return optionFunc(func(c *clientConfig) {
		c.fallbackEnabled = true
	})
}

// WithEmbeddingCache caches query embeddings in the store with the
// given TTL (0 means no expiry).
func WithEmbeddingCache(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheEnabled = true
		c.cacheTTL = ttl
	})
}

// WithLogger attaches a logger to SDK operations.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithMetrics registers SDK operation metrics on the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
