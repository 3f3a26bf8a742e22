package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// --- Mocks ---

type mockSearcher struct {
	fragments  []domain.Fragment
	err        error
	called     bool
	lastVector []float32
	lastTopK   int
	lastFilter map[string]string
}

func (m *mockSearcher) Search(
	_ context.Context, vector []float32, topK int, filters map[string]string,
) ([]domain.Fragment, error) {
	m.called = true
	m.lastVector = vector
	m.lastTopK = topK
	m.lastFilter = filters
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

func rankedFragments(scores ...float64) []domain.Fragment {
	frags := make([]domain.Fragment, len(scores))
	for i, s := range scores {
		frags[i] = domain.Fragment{ID: fmt.Sprintf("f%d", i), Text: "text", Score: s}
	}
	return frags
}

func newTestService(frags *mockSearcher, embed *mockEmbedder, opts Options) *Service {
	return New(frags, embed, opts, zap.NewNop())
}

// --- Tests ---

func TestSearchHappyPath(t *testing.T) {
	frags := &mockSearcher{fragments: rankedFragments(0.9, 0.8, 0.7, 0.6, 0.5)}
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := newTestService(frags, embed, Options{})

	result, err := svc.Search(context.Background(), "refund policy", 3, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EmbeddingSource != domain.SourceReal {
		t.Errorf("embedding source = %q, want real", result.EmbeddingSource)
	}
	if len(result.Fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(result.Fragments))
	}
	for i, want := range []float64{0.9, 0.8, 0.7} {
		if result.Fragments[i].Score != want {
			t.Errorf("fragment[%d].Score = %f, want %f", i, result.Fragments[i].Score, want)
		}
	}
	if frags.lastTopK != 3 {
		t.Errorf("topK = %d, want 3", frags.lastTopK)
	}
}

func TestSearchForwardsFilters(t *testing.T) {
	frags := &mockSearcher{}
	embed := &mockEmbedder{vec: []float32{0.1}}
	svc := newTestService(frags, embed, Options{})

	filters := map[string]string{"source": "handbook"}
	if _, err := svc.Search(context.Background(), "q", 3, filters, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frags.lastFilter["source"] != "handbook" {
		t.Errorf("filters not forwarded: %v", frags.lastFilter)
	}
}

func TestSearchMinScorePostFilter(t *testing.T) {
	frags := &mockSearcher{fragments: rankedFragments(0.9, 0.5, 0.2)}
	embed := &mockEmbedder{vec: []float32{0.1}}
	svc := newTestService(frags, embed, Options{})

	result, err := svc.Search(context.Background(), "q", 10, nil, 0.4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fragments) != 2 {
		t.Fatalf("expected 2 fragments above min score, got %d", len(result.Fragments))
	}
}

func TestSearchEmbeddingFailureFailsClosed(t *testing.T) {
	frags := &mockSearcher{}
	embed := &mockEmbedder{err: errors.New("provider down")}
	svc := newTestService(frags, embed, Options{}) // fallback disabled by default

	_, err := svc.Search(context.Background(), "q", 3, nil, 0)
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if frags.called {
		t.Error("vector search must not run without an embedding")
	}
}

func TestSearchEmbeddingFailureWithFallback(t *testing.T) {
	frags := &mockSearcher{fragments: rankedFragments(0.3)}
	embed := &mockEmbedder{err: errors.New("provider down")}
	svc := newTestService(frags, embed, Options{EnableFallback: true, FallbackDimensions: 64})

	result, err := svc.Search(context.Background(), "refund policy", 3, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EmbeddingSource != domain.SourceFallback {
		t.Errorf("embedding source = %q, want fallback", result.EmbeddingSource)
	}
	if !frags.called {
		t.Fatal("expected vector search to run with the fallback embedding")
	}
	if len(frags.lastVector) != 64 {
		t.Errorf("fallback vector has %d dimensions, want 64", len(frags.lastVector))
	}
}

func TestSearchFallbackVectorIsDeterministic(t *testing.T) {
	embed := &mockEmbedder{err: errors.New("provider down")}
	opts := Options{EnableFallback: true, FallbackDimensions: 32}

	frags1 := &mockSearcher{}
	if _, err := newTestService(frags1, embed, opts).Search(context.Background(), "refund policy", 3, nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	frags2 := &mockSearcher{}
	if _, err := newTestService(frags2, embed, opts).Search(context.Background(), "refund policy", 3, nil, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range frags1.lastVector {
		if frags1.lastVector[i] != frags2.lastVector[i] {
			t.Fatal("same query must produce the same fallback embedding")
		}
	}
}

func TestSearchCancellationNeverFallsBack(t *testing.T) {
	frags := &mockSearcher{}
	embed := &mockEmbedder{err: fmt.Errorf("embed: %w", context.Canceled)}
	svc := newTestService(frags, embed, Options{EnableFallback: true})

	_, err := svc.Search(context.Background(), "q", 3, nil, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if frags.called {
		t.Error("cancelled request must not be answered with a fallback search")
	}
}

func TestSearchVectorStoreFailure(t *testing.T) {
	frags := &mockSearcher{err: fmt.Errorf("%w: connection refused", domain.ErrVectorStore)}
	embed := &mockEmbedder{vec: []float32{0.1}}
	svc := newTestService(frags, embed, Options{})

	_, err := svc.Search(context.Background(), "q", 3, nil, 0)
	if !errors.Is(err, domain.ErrVectorStore) {
		t.Fatalf("expected ErrVectorStore, got %v", err)
	}
}

func TestExecuteValidatesAction(t *testing.T) {
	svc := newTestService(&mockSearcher{}, &mockEmbedder{vec: []float32{0.1}}, Options{})

	_, err := svc.Execute(context.Background(), domain.Action{Kind: domain.KindSearch, Query: "q", TopK: 0})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExecuteReturnsSearchResult(t *testing.T) {
	svc := newTestService(&mockSearcher{fragments: rankedFragments(0.9)}, &mockEmbedder{vec: []float32{0.1}}, Options{})

	res, err := svc.Execute(context.Background(), domain.Action{
		Kind: domain.KindSearch, Query: "refund policy", TopK: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sr, ok := res.(domain.SearchResult)
	if !ok {
		t.Fatalf("expected SearchResult, got %T", res)
	}
	if len(sr.Fragments) != 1 {
		t.Errorf("expected 1 fragment, got %d", len(sr.Fragments))
	}
}
