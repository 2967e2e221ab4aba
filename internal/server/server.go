// Package server exposes the Callsight HTTP API.
//
// Endpoints:
//
//   - POST /analyze          — multipart upload of one or more audio files,
//     returns per-file analysis results.
//   - GET  /health           — provider configuration summary.
//   - GET  /reports/{id}     — fetch one archived report.
//   - GET  /reports/similar  — similarity search over archived summaries.
//   - GET  /progress         — WebSocket feed of per-file pipeline events.
//   - GET  /healthz, /readyz — liveness and readiness probes.
//   - GET  /metrics          — Prometheus scrape endpoint.
//
// The server is thin glue over [batch.Orchestrator] and [report.Archiver]:
// request decoding, error-to-status mapping, and JSON encoding live here,
// the pipeline semantics do not.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/callsight/callsight/internal/batch"
	"github.com/callsight/callsight/internal/health"
	"github.com/callsight/callsight/internal/observe"
	"github.com/callsight/callsight/internal/report"
)

// Runner executes a batch of file jobs. Implemented by [batch.Orchestrator].
type Runner interface {
	Run(ctx context.Context, jobs []batch.FileJob) (*batch.BatchResult, error)
}

// Option is a functional option for [New].
type Option func(*Server)

// WithArchiver enables report archiving and similarity search.
func WithArchiver(a *report.Archiver) Option {
	return func(s *Server) { s.archiver = a }
}

// WithStore enables report retrieval via GET /reports/{id}.
func WithStore(st report.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics overrides the metrics instance used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithProgressHub injects the hub that bridges pipeline events to WebSocket
// subscribers. The hub should also be installed on the orchestrator via
// [batch.WithProgressSink].
func WithProgressHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithProviderStatus records which upstream providers are configured, for the
// GET /health report. Defaults to both unconfigured.
func WithProviderStatus(sttConfigured, analysisConfigured bool) Option {
	return func(s *Server) {
		s.sttConfigured = sttConfigured
		s.analysisConfigured = analysisConfigured
	}
}

// WithHealthCheckers adds readiness checkers evaluated by GET /readyz.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// WithMaxRequestBytes caps the total size of an /analyze request body.
// Default: 256 MiB.
func WithMaxRequestBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRequestBytes = n
		}
	}
}

// DefaultMaxRequestBytes bounds a whole multipart upload. Individual files
// are additionally capped by the orchestrator's per-file limit.
const DefaultMaxRequestBytes int64 = 256 << 20

// Server holds the HTTP handler state. Construct with [New], mount via
// [Server.Handler].
type Server struct {
	runner   Runner
	archiver *report.Archiver
	store    report.Store
	hub      *Hub
	metrics  *observe.Metrics
	checkers []health.Checker

	sttConfigured      bool
	analysisConfigured bool
	maxRequestBytes    int64
}

// New creates a Server over the given batch runner. A nil runner is allowed;
// the server then starts, reports providers unconfigured on /health, and
// rejects uploads with 500.
func New(runner Runner, opts ...Option) *Server {
	s := &Server{
		runner:          runner,
		maxRequestBytes: DefaultMaxRequestBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the fully routed HTTP handler, wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET /reports/similar", s.handleSearchSimilar)
	if s.hub != nil {
		mux.HandleFunc("GET /progress", s.handleProgress)
	}

	health.New(s.checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status             string `json:"status"`
	STTConfigured      bool   `json:"stt_configured"`
	AnalysisConfigured bool   `json:"analysis_configured"`
}

// handleHealth reports whether the upstream providers are configured. It is
// intentionally shallow; /readyz probes actual connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		STTConfigured:      s.sttConfigured,
		AnalysisConfigured: s.analysisConfigured,
	})
}

// errorResponse is the JSON body for all non-2xx API responses.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps err onto an HTTP status and writes the JSON error body.
func writeError(w http.ResponseWriter, err error) {
	var verr *batch.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500; headers are already sent at that point, so the
// fallback is best effort.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
