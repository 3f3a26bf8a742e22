package domain

import "context"

// Generator is the LLM completion contract between layers.
type Generator interface {
	Generate(ctx context.Context, system, user string) (GenerationOutput, error)
}

// GenerationOutput carries the completion text and token usage as
// reported by the provider.
type GenerationOutput struct {
	Text  string
	Usage TokenUsage
}
