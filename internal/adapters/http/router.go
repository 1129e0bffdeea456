package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trupharma/drug-safety-rag/internal/core/domain"
	"github.com/trupharma/drug-safety-rag/internal/core/ports"
	"github.com/trupharma/drug-safety-rag/internal/observability/metrics"
)

type Router struct {
	service      string
	ask          ports.SafetyQueryService
	interactions ports.InteractionReader
	metrics      *metrics.HTTPServerMetrics
	genEnabled   bool
	logger       *slog.Logger
}

func NewRouter(
	service string,
	ask ports.SafetyQueryService,
	interactions ports.InteractionReader,
	m *metrics.HTTPServerMetrics,
	genEnabled bool,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		service:      service,
		ask:          ask,
		interactions: interactions,
		metrics:      m,
		genEnabled:   genEnabled,
		logger:       logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.askQuestion)
	mux.HandleFunc("/v1/interactions", rt.listInteractions)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
	TopK     int    `json:"top_k"`
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	mode := domain.NormalizeMode(req.Mode)

	start := time.Now()
	answer, err := rt.ask.Ask(r.Context(), req.Question, domain.QueryOptions{Mode: mode, TopK: req.TopK})
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= 500 {
			rt.logger.Error("ask_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordAnswer(rt.service, string(answer.Method), string(mode), answer.Confidence, len(answer.Evidence), time.Since(start))
		// A generation-capable service answering extractively means the
		// generator was bypassed or rejected.
		if rt.genEnabled && answer.Method == domain.MethodExtractive {
			rt.metrics.RecordGenerationFallback(rt.service)
		}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) listInteractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.interactions == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "interaction log is not configured"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	records, err := rt.interactions.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []domain.InteractionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": records})
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
