package chi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/domain"
)

// Dispatcher routes actions to their handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, act domain.Action) domain.ActionResponse
}

// Pinger checks store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the action API over HTTP.
type Server struct {
	dispatcher  Dispatcher
	pinger      Pinger
	embHealth   domain.HealthChecker
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger
}

// NewServer creates an HTTP API server. embHealth may be nil when the
// embedding provider exposes no health check.
func NewServer(dispatcher Dispatcher, pinger Pinger, embHealth domain.HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		dispatcher:  dispatcher,
		pinger:      pinger,
		embHealth:   embHealth,
		defaultTopK: 10,
		maxTopK:     100,
		logger:      logger,
	}
}

// WithTopKLimits overrides the default and maximum top_k applied to
// incoming requests.
func (s *Server) WithTopKLimits(defaultTopK, maxTopK int) *Server {
	if defaultTopK > 0 {
		s.defaultTopK = defaultTopK
	}
	if maxTopK > 0 {
		s.maxTopK = maxTopK
	}
	return s
}

// Routes mounts the API onto the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/actions", s.handleAction)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

// actionRequest is the wire envelope for both action kinds. action_type
// is the sole extension point; new kinds add result variants only.
type actionRequest struct {
	ActionType string            `json:"action_type"`
	Query      string            `json:"query"`
	TopK       int               `json:"top_k"`
	Filters    map[string]string `json:"filters,omitempty"`
	MinScore   float64           `json:"min_score,omitempty"`
	RequestID  string            `json:"request_id"`
}

type fragmentDTO struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type searchResultDTO struct {
	Fragments       []fragmentDTO `json:"fragments"`
	EmbeddingSource string        `json:"embedding_source"`
}

type usageDTO struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type generationResultDTO struct {
	Answer  string        `json:"answer"`
	Sources []fragmentDTO `json:"sources"`
	Usage   usageDTO      `json:"usage"`
}

type actionResponseDTO struct {
	RequestID string              `json:"request_id"`
	Success   bool                `json:"success"`
	Result    any                 `json:"result,omitempty"`
	Error     *domain.ErrorDetail `json:"error,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrorDetail{
			Code:    domain.CodeValidation,
			Message: "invalid request body: " + err.Error(),
		}, req.RequestID)
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.TopK == 0 {
		req.TopK = s.defaultTopK
	}
	if req.TopK > s.maxTopK {
		req.TopK = s.maxTopK
	}

	act := domain.Action{
		RequestID: req.RequestID,
		Kind:      domain.Kind(req.ActionType),
		Query:     req.Query,
		TopK:      req.TopK,
		Filters:   req.Filters,
		MinScore:  req.MinScore,
	}

	resp := s.dispatcher.Dispatch(r.Context(), act)
	writeJSON(w, statusFor(resp), toResponseDTO(resp))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("health check: store unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reason": "store unreachable"})
		return
	}
	if s.embHealth != nil {
		if err := s.embHealth.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check: embedding provider unreachable", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reason": "embedding provider unreachable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// toResponseDTO converts the domain envelope into its wire shape,
// selecting the result variant by type.
func toResponseDTO(resp domain.ActionResponse) actionResponseDTO {
	dto := actionResponseDTO{
		RequestID: resp.RequestID,
		Success:   resp.Success,
		Error:     resp.Error,
	}

	switch result := resp.Result.(type) {
	case domain.SearchResult:
		dto.Result = searchResultDTO{
			Fragments:       toFragmentDTOs(result.Fragments),
			EmbeddingSource: string(result.EmbeddingSource),
		}
	case domain.GenerationResult:
		dto.Result = generationResultDTO{
			Answer:  result.Answer,
			Sources: toFragmentDTOs(result.Sources),
			Usage: usageDTO{
				PromptTokens:     result.Usage.PromptTokens,
				CompletionTokens: result.Usage.CompletionTokens,
			},
		}
	}

	return dto
}

func toFragmentDTOs(fragments []domain.Fragment) []fragmentDTO {
	dtos := make([]fragmentDTO, 0, len(fragments))
	for _, f := range fragments {
		dtos = append(dtos, fragmentDTO{
			ID:       f.ID,
			Text:     f.Text,
			Score:    f.Score,
			Metadata: f.Metadata,
		})
	}
	return dtos
}

// statusFor derives the HTTP status from the envelope. The JSON body is
// authoritative; the status is a convenience for plain HTTP clients.
func statusFor(resp domain.ActionResponse) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.Error.Code {
	case domain.CodeUnsupportedAction, domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeEmbedding, domain.CodeVectorStore, domain.CodeGeneration:
		return http.StatusBadGateway
	case domain.CodeCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail domain.ErrorDetail, requestID string) {
	writeJSON(w, status, actionResponseDTO{
		RequestID: requestID,
		Success:   false,
		Error:     &detail,
	})
}
