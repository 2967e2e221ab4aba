// Package health serves the liveness and readiness probes for the analysis
// server.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered [Checker] passes,
//     e.g. the postgres report archive is reachable and the STT and analysis
//     providers are configured.
//
// Responses are JSON with a top-level "status" ("ok" or "fail") and a
// per-checker "checks" map.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// checkTimeout caps how long a single readiness check may run before its
// context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is usable and an error describing the failure otherwise.
type Checker struct {
	// Name keys the check in the JSON response, e.g. "postgres" or
	// "providers".
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// probeResponse is the JSON body for both probe endpoints.
type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. It is safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers, in order, on
// each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// Readyz returns 200 only when every registered [Checker] passes. Each check
// runs under a [checkTimeout] deadline derived from the request context, and
// failures are logged so a flapping dependency shows up in the server log,
// not just in probe history.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
			slog.Warn("readiness check failed", "check", c.Name, "err", err)
		} else {
			checks[c.Name] = "ok"
		}
	}

	resp := probeResponse{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		resp.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
