package generate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// Service handles retrieval-augmented generation actions.
//
// Unlike the search handler there is no embedding fallback here: without
// a reliable retrieval context the model would produce an ungrounded
// answer, so an embedding failure fails the whole request.
type Service struct {
	frags        FragmentSearcher
	embed        Embedder
	gen          Generator
	systemPrompt string
	logger       *zap.Logger
}

// New creates a RAG service. An empty systemPrompt selects DefaultSystemPrompt.
func New(frags FragmentSearcher, embed Embedder, gen Generator, systemPrompt string, logger *zap.Logger) *Service {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Service{frags: frags, embed: embed, gen: gen, systemPrompt: systemPrompt, logger: logger}
}

// Execute implements the dispatch handler contract.
func (s *Service) Execute(ctx context.Context, act domain.Action) (domain.Result, error) {
	if err := act.Validate(); err != nil {
		return nil, err
	}
	return s.Generate(ctx, act.Query, act.TopK, act.Filters)
}

// Generate runs the RAG pipeline: embed the query, retrieve context,
// assemble the prompt, and synthesize an answer. Sources in the result
// are exactly the fragments placed into the prompt, in prompt order.
func (s *Service) Generate(
	ctx context.Context, query string, topK int, filters map[string]string,
) (domain.GenerationResult, error) {
	embRes, err := s.embed.Embed(ctx, query)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbedding) && !isContextErr(err) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
		}
		return domain.GenerationResult{}, fmt.Errorf("embed query: %w", err)
	}

	fragments, err := s.frags.Search(ctx, embRes.Embedding, topK, filters)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(fragments) > topK {
		fragments = fragments[:topK]
	}

	userPrompt := buildUserPrompt(fragments, query)

	out, err := s.gen.Generate(ctx, s.systemPrompt, userPrompt)
	if err != nil {
		if !errors.Is(err, domain.ErrGeneration) && !isContextErr(err) {
			err = fmt.Errorf("%w: %w", domain.ErrGeneration, err)
		}
		return domain.GenerationResult{}, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Debug("generated answer",
		zap.Int("context_fragments", len(fragments)),
		zap.Int("prompt_tokens", out.Usage.PromptTokens),
		zap.Int("completion_tokens", out.Usage.CompletionTokens),
	)

	return domain.GenerationResult{
		Answer:  out.Text,
		Sources: fragments,
		Usage:   out.Usage,
	}, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
