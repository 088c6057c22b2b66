package handlers

import (
	"net/http"
	"strconv"

	"podcast-curator/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func limitParam(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxListLimit), true
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := limitParam(r, "max", 20)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid max")
		return
	}

	feeds, err := h.searcher.SearchByTerm(r.Context(), term, limit)
	if err != nil {
		h.logger.Errorf("Error searching for %q: %v", term, err)
		writeError(w, statusFor(err), "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(feeds), "feeds": feeds})
}

func (h *Handlers) ListSyncLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(r, "limit", defaultListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	logs, err := h.store.ListSyncLogs(r.Context(), limit)
	if err != nil {
		h.logger.Errorf("Error listing sync logs: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if logs == nil {
		logs = []models.SyncLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != models.AlertOpen && status != models.AlertResolved {
		writeError(w, http.StatusBadRequest, "status must be open or resolved")
		return
	}
	alerts, err := h.store.ListAlerts(r.Context(), status)
	if err != nil {
		h.logger.Errorf("Error listing alerts: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if alerts == nil {
		alerts = []models.QualityAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
