package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/metrics"
)

// Generator is an LLM completion provider using the OpenAI-compatible chat API.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	provider    string
	logger      *zap.Logger
}

// GeneratorConfig holds the generation provider settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Provider    string
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat completion provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Generate implements domain.Generator via a single chat completion call.
func (g *Generator) Generate(ctx context.Context, system, user string) (domain.GenerationOutput, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return domain.GenerationOutput{}, parseGenerationError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return domain.GenerationOutput{}, fmt.Errorf("empty completion response: %w", domain.ErrGeneration)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "error").Inc()
		return domain.GenerationOutput{}, fmt.Errorf("completion rejected by content policy: %w", domain.ErrGeneration)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, g.model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.provider, g.model).Observe(duration.Seconds())
	metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(g.provider, g.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return domain.GenerationOutput{
		Text: choice.Message.Content,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// parseGenerationError wraps API failures with domain.ErrGeneration.
// Rate limits are transient for the retry decorator; content-policy
// rejections are permanent.
func parseGenerationError(err error) error {
	if isContextErr(err) {
		return fmt.Errorf("completion request: %w: %w", domain.ErrGeneration, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, domain.ErrGeneration)
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || transientStatus(apiErr.HTTPStatusCode) {
			return markTransient(wrapped)
		}
		return wrapped
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrapped := fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), domain.ErrGeneration)
		if transientStatus(reqErr.HTTPStatusCode) {
			return markTransient(wrapped)
		}
		return wrapped
	}

	return markTransient(fmt.Errorf("completion request failed: %w: %w", domain.ErrGeneration, err))
}
