package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
)

type stubDispatcher struct {
	resp       domain.ActionResponse
	lastAction domain.Action
	calls      int
}

func (d *stubDispatcher) Dispatch(_ context.Context, act domain.Action) domain.ActionResponse {
	d.calls++
	d.lastAction = act
	resp := d.resp
	if resp.RequestID == "" {
		resp.RequestID = act.RequestID
	}
	return resp
}

type stubPinger struct{ err error }

func (p *stubPinger) Ping(_ context.Context) error { return p.err }

func newTestRouter(d Dispatcher) *chi.Mux {
	r := chi.NewRouter()
	srv := NewServer(d, &stubPinger{}, nil, zap.NewNop())
	srv.Routes(r)
	return r
}

func postAction(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/v1/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandleActionSearchSuccess(t *testing.T) {
	dispatcher := &stubDispatcher{resp: domain.ActionResponse{
		Success: true,
		Result: domain.SearchResult{
			Fragments: []domain.Fragment{
				{ID: "a", Text: "refunds take 14 days", Score: 0.9, Metadata: map[string]string{"source": "faq"}},
			},
			EmbeddingSource: domain.SourceReal,
		},
	}}
	r := newTestRouter(dispatcher)

	rr := postAction(t, r, `{"action_type":"query.search","query":"refund policy","top_k":3,"request_id":"req-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		RequestID string `json:"request_id"`
		Success   bool   `json:"success"`
		Result    struct {
			Fragments []struct {
				ID       string            `json:"id"`
				Score    float64           `json:"score"`
				Metadata map[string]string `json:"metadata"`
			} `json:"fragments"`
			EmbeddingSource string `json:"embedding_source"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.RequestID != "req-1" {
		t.Errorf("envelope = %+v", resp)
	}
	if resp.Result.EmbeddingSource != "real" {
		t.Errorf("embedding_source = %q", resp.Result.EmbeddingSource)
	}
	if len(resp.Result.Fragments) != 1 || resp.Result.Fragments[0].ID != "a" {
		t.Errorf("fragments = %+v", resp.Result.Fragments)
	}

	if dispatcher.lastAction.Kind != domain.KindSearch {
		t.Errorf("dispatched kind = %q", dispatcher.lastAction.Kind)
	}
	if dispatcher.lastAction.TopK != 3 {
		t.Errorf("dispatched topK = %d", dispatcher.lastAction.TopK)
	}
}

func TestHandleActionGenerateSuccess(t *testing.T) {
	dispatcher := &stubDispatcher{resp: domain.ActionResponse{
		Success: true,
		Result: domain.GenerationResult{
			Answer:  "Refunds take 14 days.",
			Sources: []domain.Fragment{{ID: "a", Text: "t", Score: 0.9}},
			Usage:   domain.TokenUsage{PromptTokens: 120, CompletionTokens: 40},
		},
	}}
	r := newTestRouter(dispatcher)

	rr := postAction(t, r, `{"action_type":"query.generate","query":"refund policy","top_k":3,"request_id":"req-2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Result struct {
			Answer  string `json:"answer"`
			Sources []any  `json:"sources"`
			Usage   struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result.Answer != "Refunds take 14 days." {
		t.Errorf("answer = %q", resp.Result.Answer)
	}
	if resp.Result.Usage.PromptTokens != 120 || resp.Result.Usage.CompletionTokens != 40 {
		t.Errorf("usage = %+v", resp.Result.Usage)
	}
	if len(resp.Result.Sources) != 1 {
		t.Errorf("sources = %+v", resp.Result.Sources)
	}
}

func TestHandleActionErrorEnvelope(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{domain.CodeUnsupportedAction, http.StatusBadRequest},
		{domain.CodeValidation, http.StatusBadRequest},
		{domain.CodeEmbedding, http.StatusBadGateway},
		{domain.CodeVectorStore, http.StatusBadGateway},
		{domain.CodeGeneration, http.StatusBadGateway},
		{domain.CodeCancelled, http.StatusGatewayTimeout},
		{domain.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			dispatcher := &stubDispatcher{resp: domain.ActionResponse{
				Success: false,
				Error:   &domain.ErrorDetail{Code: tt.code, Message: "boom"},
			}}
			r := newTestRouter(dispatcher)

			rr := postAction(t, r, `{"action_type":"query.search","query":"q","top_k":3,"request_id":"req-3"}`)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}

			var resp struct {
				Success bool `json:"success"`
				Error   *struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("envelope = %s", rr.Body.String())
			}
		})
	}
}

func TestHandleActionAssignsRequestID(t *testing.T) {
	dispatcher := &stubDispatcher{resp: domain.ActionResponse{Success: true, Result: domain.SearchResult{}}}
	r := newTestRouter(dispatcher)

	rr := postAction(t, r, `{"action_type":"query.search","query":"q","top_k":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if dispatcher.lastAction.RequestID == "" {
		t.Error("expected a server-assigned request id")
	}
}

func TestHandleActionTopKLimits(t *testing.T) {
	dispatcher := &stubDispatcher{resp: domain.ActionResponse{Success: true, Result: domain.SearchResult{}}}
	r := newTestRouter(dispatcher)

	postAction(t, r, `{"action_type":"query.search","query":"q"}`)
	if dispatcher.lastAction.TopK != 10 {
		t.Errorf("omitted top_k = %d, want default 10", dispatcher.lastAction.TopK)
	}

	postAction(t, r, `{"action_type":"query.search","query":"q","top_k":1000}`)
	if dispatcher.lastAction.TopK != 100 {
		t.Errorf("oversized top_k = %d, want cap 100", dispatcher.lastAction.TopK)
	}
}

func TestHandleActionBadJSON(t *testing.T) {
	dispatcher := &stubDispatcher{}
	r := newTestRouter(dispatcher)

	rr := postAction(t, r, `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if dispatcher.calls != 0 {
		t.Error("malformed body must not reach the dispatcher")
	}
}

func TestHandleHealth(t *testing.T) {
	r := chi.NewRouter()
	srv := NewServer(&stubDispatcher{}, &stubPinger{}, nil, zap.NewNop())
	srv.Routes(r)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestHandleHealthStoreDown(t *testing.T) {
	r := chi.NewRouter()
	srv := NewServer(&stubDispatcher{}, &stubPinger{err: context.DeadlineExceeded}, nil, zap.NewNop())
	srv.Routes(r)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}
