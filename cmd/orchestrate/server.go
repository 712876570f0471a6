package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Upreak/miv1-sub001/pkg/orchestrator"
	"github.com/Upreak/miv1-sub001/pkg/providers"
	"github.com/Upreak/miv1-sub001/pkg/telemetry/metrics"
)

// server is the introspection and request-intake HTTP surface:
//
//	POST /v1/generate                 run a payload through the fleet
//	GET  /v1/status                   fleet-wide status report
//	GET  /v1/providers/{name}/metrics single provider view
//	GET  /metrics                     Prometheus exposition
//	GET  /healthz                     liveness
type server struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
	mux    *http.ServeMux
}

func newServer(orch *orchestrator.Orchestrator, providerMetrics *metrics.ProviderMetrics) *server {
	s := &server{
		orch:   orch,
		logger: slog.Default().With("component", "http"),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /v1/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /v1/providers/{name}/metrics", s.handleProviderMetrics)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if providerMetrics != nil {
		s.mux.Handle("GET /metrics", providerMetrics.Handler())
	}

	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// generateRequest is the request-intake wire format.
type generateRequest struct {
	Messages    []providers.Message `json:"messages"`
	Model       string              `json:"model,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

// generateResponse is returned for both success and failure; Error is set
// exactly when Success is false.
type generateResponse struct {
	Success   bool            `json:"success"`
	RequestID string          `json:"request_id"`
	Provider  string          `json:"provider,omitempty"`
	Model     string          `json:"model,omitempty"`
	Text      string          `json:"text,omitempty"`
	Usage     providers.Usage `json:"usage,omitzero"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error,omitempty"`
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	result := s.orch.Generate(r.Context(), &providers.Payload{
		Messages:    req.Messages,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})

	resp := generateResponse{
		Success:   result.Success,
		RequestID: result.RequestID,
		Provider:  result.Provider,
		Model:     result.Model,
		Text:      result.Text,
		Usage:     result.Usage,
		Attempts:  result.Attempts,
	}

	status := http.StatusOK
	if !result.Success {
		resp.Error = result.Err.Error()
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, resp)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.GetStatus())
}

func (s *server) handleProviderMetrics(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	status, err := s.orch.GetMetrics(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !strings.Contains(err.Error(), "broken pipe") {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
