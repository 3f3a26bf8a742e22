package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// RetryConfig bounds the retry budget for a client wrapper. Handlers
// never retry; once a wrapper gives up the error is final.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// ApplyDefaults fills zero fields with conservative defaults.
func (c *RetryConfig) ApplyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
}

// RetryingEmbedder retries transient embedding failures with exponential backoff.
type RetryingEmbedder struct {
	inner  domain.Embedder
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetryingEmbedder wraps an embedder with a bounded retry policy.
func NewRetryingEmbedder(inner domain.Embedder, cfg RetryConfig, logger *zap.Logger) *RetryingEmbedder {
	cfg.ApplyDefaults()
	return &RetryingEmbedder{inner: inner, cfg: cfg, logger: logger}
}

// Embed implements domain.Embedder.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var result domain.EmbeddingResult

	err := doWithRetry(ctx, r.cfg, r.logger, "embed", func(ctx context.Context) error {
		var err error
		result, err = r.inner.Embed(ctx, text)
		return err
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return result, nil
}

// RetryingGenerator retries transient completion failures with exponential backoff.
type RetryingGenerator struct {
	inner  domain.Generator
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetryingGenerator wraps a generator with a bounded retry policy.
func NewRetryingGenerator(inner domain.Generator, cfg RetryConfig, logger *zap.Logger) *RetryingGenerator {
	cfg.ApplyDefaults()
	return &RetryingGenerator{inner: inner, cfg: cfg, logger: logger}
}

// Generate implements domain.Generator.
func (r *RetryingGenerator) Generate(ctx context.Context, system, user string) (domain.GenerationOutput, error) {
	var result domain.GenerationOutput

	err := doWithRetry(ctx, r.cfg, r.logger, "generate", func(ctx context.Context) error {
		var err error
		result, err = r.inner.Generate(ctx, system, user)
		return err
	})
	if err != nil {
		return domain.GenerationOutput{}, err
	}
	return result, nil
}

// doWithRetry re-attempts transient failures up to cfg.MaxAttempts total
// calls. Permanent failures and context cancellation surface immediately.
func doWithRetry(
	ctx context.Context, cfg RetryConfig, logger *zap.Logger, op string,
	call func(ctx context.Context) error,
) error {
	backoff := retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), retry.NewExponential(cfg.BaseBackoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error { //nolint:wrapcheck // client errors pass through as-is
		attempt++
		err := call(ctx)
		if err == nil {
			return nil
		}
		if isTransient(err) && !isContextErr(err) {
			logger.Warn("transient client error, will retry",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

// transientErr marks an error as worth re-attempting.
type transientErr struct {
	err error
}

func (e *transientErr) Error() string { return e.err.Error() }
func (e *transientErr) Unwrap() error { return e.err }

func markTransient(err error) error {
	return &transientErr{err: err}
}

func isTransient(err error) bool {
	var t *transientErr
	return errors.As(err, &t)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// transientStatus reports whether an HTTP status from the provider is a
// transient, rather than terminal, failure.
func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
