package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// --- Mocks ---

type mockSearcher struct {
	fragments []domain.Fragment
	err       error
	called    bool
	lastTopK  int
}

func (m *mockSearcher) Search(
	_ context.Context, _ []float32, topK int, _ map[string]string,
) ([]domain.Fragment, error) {
	m.called = true
	m.lastTopK = topK
	return m.fragments, m.err
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockGenerator struct {
	out        domain.GenerationOutput
	err        error
	called     bool
	lastSystem string
	lastUser   string
}

func (m *mockGenerator) Generate(_ context.Context, system, user string) (domain.GenerationOutput, error) {
	m.called = true
	m.lastSystem = system
	m.lastUser = user
	if m.err != nil {
		return domain.GenerationOutput{}, m.err
	}
	return m.out, nil
}

func contextFragments() []domain.Fragment {
	return []domain.Fragment{
		{ID: "a", Text: "Refunds are issued within 14 days.", Score: 0.9, Metadata: map[string]string{"source": "handbook"}},
		{ID: "b", Text: "Contact support for exceptions.", Score: 0.8},
	}
}

func newTestService(frags *mockSearcher, embed *mockEmbedder, gen *mockGenerator) *Service {
	return New(frags, embed, gen, "", zap.NewNop())
}

// --- Tests ---

func TestGenerateHappyPath(t *testing.T) {
	frags := &mockSearcher{fragments: contextFragments()}
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	gen := &mockGenerator{out: domain.GenerationOutput{
		Text:  "Refunds take 14 days.",
		Usage: domain.TokenUsage{PromptTokens: 120, CompletionTokens: 40},
	}}
	svc := newTestService(frags, embed, gen)

	result, err := svc.Generate(context.Background(), "refund policy", 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer != "Refunds take 14 days." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Usage.PromptTokens != 120 || result.Usage.CompletionTokens != 40 {
		t.Errorf("usage = %+v, want {120 40}", result.Usage)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(result.Sources))
	}
}

// Sources must be exactly the fragments that went into the prompt.
func TestGenerateSourcesMatchPrompt(t *testing.T) {
	frags := &mockSearcher{fragments: contextFragments()}
	embed := &mockEmbedder{vec: []float32{0.1}}
	gen := &mockGenerator{out: domain.GenerationOutput{Text: "ok"}}
	svc := newTestService(frags, embed, gen)

	result, err := svc.Generate(context.Background(), "refund policy", 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, src := range result.Sources {
		if !strings.Contains(gen.lastUser, src.Text) {
			t.Errorf("source %d text missing from prompt", i)
		}
		if !strings.Contains(gen.lastUser, "id: "+src.ID) {
			t.Errorf("source %d id missing from prompt", i)
		}
	}
	if !strings.Contains(gen.lastUser, "refund policy") {
		t.Error("query text missing from prompt")
	}
}

func TestGenerateTruncatesToTopK(t *testing.T) {
	many := make([]domain.Fragment, 5)
	for i := range many {
		many[i] = domain.Fragment{ID: fmt.Sprintf("f%d", i), Text: "t", Score: 1 - float64(i)/10}
	}
	frags := &mockSearcher{fragments: many}
	embed := &mockEmbedder{vec: []float32{0.1}}
	gen := &mockGenerator{out: domain.GenerationOutput{Text: "ok"}}
	svc := newTestService(frags, embed, gen)

	result, err := svc.Generate(context.Background(), "q", 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sources) != 3 {
		t.Errorf("expected 3 sources after truncation, got %d", len(result.Sources))
	}
	// The dropped fragments must not appear in the prompt either.
	if strings.Contains(gen.lastUser, "[4]") || strings.Contains(gen.lastUser, "[5]") {
		t.Error("truncated fragments leaked into the prompt")
	}
}

// No fallback for RAG: an embedding failure fails the whole request and
// generation is never attempted.
func TestGenerateEmbeddingFailureFailsRequest(t *testing.T) {
	frags := &mockSearcher{}
	embed := &mockEmbedder{err: errors.New("provider timeout")}
	gen := &mockGenerator{}
	svc := newTestService(frags, embed, gen)

	_, err := svc.Generate(context.Background(), "q", 3, nil)
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if frags.called {
		t.Error("retrieval must not run after embedding failure")
	}
	if gen.called {
		t.Error("generation must never be attempted after embedding failure")
	}
}

func TestGenerateVectorStoreFailure(t *testing.T) {
	frags := &mockSearcher{err: fmt.Errorf("%w: index missing", domain.ErrVectorStore)}
	embed := &mockEmbedder{vec: []float32{0.1}}
	gen := &mockGenerator{}
	svc := newTestService(frags, embed, gen)

	_, err := svc.Generate(context.Background(), "q", 3, nil)
	if !errors.Is(err, domain.ErrVectorStore) {
		t.Fatalf("expected ErrVectorStore, got %v", err)
	}
	if gen.called {
		t.Error("generation must not run after retrieval failure")
	}
}

func TestGenerateGenerationFailure(t *testing.T) {
	frags := &mockSearcher{fragments: contextFragments()}
	embed := &mockEmbedder{vec: []float32{0.1}}
	gen := &mockGenerator{err: errors.New("model overloaded")}
	svc := newTestService(frags, embed, gen)

	_, err := svc.Generate(context.Background(), "q", 3, nil)
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateEmptyRetrieval(t *testing.T) {
	frags := &mockSearcher{}
	embed := &mockEmbedder{vec: []float32{0.1}}
	gen := &mockGenerator{out: domain.GenerationOutput{Text: "I don't know."}}
	svc := newTestService(frags, embed, gen)

	result, err := svc.Generate(context.Background(), "q", 3, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(result.Sources))
	}
	if !strings.Contains(gen.lastUser, "No context fragments") {
		t.Error("prompt must state that no context was retrieved")
	}
}

func TestGenerateUsesConfiguredSystemPrompt(t *testing.T) {
	gen := &mockGenerator{out: domain.GenerationOutput{Text: "ok"}}
	svc := New(&mockSearcher{}, &mockEmbedder{vec: []float32{0.1}}, gen, "Answer in French.", zap.NewNop())

	if _, err := svc.Generate(context.Background(), "q", 3, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.lastSystem != "Answer in French." {
		t.Errorf("system prompt = %q", gen.lastSystem)
	}
}

func TestExecuteValidatesAction(t *testing.T) {
	svc := newTestService(&mockSearcher{}, &mockEmbedder{vec: []float32{0.1}}, &mockGenerator{})

	_, err := svc.Execute(context.Background(), domain.Action{Kind: domain.KindGenerate, Query: "", TopK: 3})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
