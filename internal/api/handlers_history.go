package api

import (
	"net/http"
	"strconv"

	"github.com/loudcat/loudcat/internal/api/middleware"
)

// handleListHistory returns the caller's recent searches.
// GET /api/v1/history?limit={n}
func (r *Router) handleListHistory(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := r.history.List(req.Context(), middleware.SessionFromContext(req.Context()), limit)
	if err != nil {
		r.logger.Error("listing history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleClearHistory deletes the caller's recent searches.
// DELETE /api/v1/history
func (r *Router) handleClearHistory(w http.ResponseWriter, req *http.Request) {
	n, err := r.history.Clear(req.Context(), middleware.SessionFromContext(req.Context()))
	if err != nil {
		r.logger.Error("clearing history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
