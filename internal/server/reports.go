package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/callsight/callsight/internal/observe"
	"github.com/callsight/callsight/internal/report"
)

// defaultSimilarLimit is the number of results GET /reports/similar returns
// when the "k" parameter is absent.
const defaultSimilarLimit = 5

// handleGetReport fetches one archived report by id.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "report archive is not configured",
		})
		return
	}

	id := r.PathValue("id")
	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, report.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "report not found"})
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("fetch report", "id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// similarResponse is the GET /reports/similar body.
type similarResponse struct {
	Query   string                 `json:"query"`
	Results []report.SimilarResult `json:"results"`
}

// handleSearchSimilar embeds the q parameter and returns the closest archived
// reports by cosine distance, nearest first.
func (s *Server) handleSearchSimilar(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error: "similarity search is not configured",
		})
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "query parameter q is required",
		})
		return
	}

	topK := defaultSimilarLimit
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: "query parameter k must be a positive integer",
			})
			return
		}
		topK = k
	}

	results, err := s.archiver.SearchSimilar(r.Context(), query, topK)
	if err != nil {
		observe.Logger(r.Context()).Error("similarity search", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if results == nil {
		results = []report.SimilarResult{}
	}

	writeJSON(w, http.StatusOK, similarResponse{Query: query, Results: results})
}
