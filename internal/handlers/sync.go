package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"podcast-curator/internal/podcastindex"
	"podcast-curator/internal/syncer"
	"podcast-curator/internal/worker"
)

func isAsync(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return v
}

// statusFor maps a run error onto an HTTP status.
func statusFor(err error) int {
	var apiErr *podcastindex.APIError
	switch {
	case errors.Is(err, syncer.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr), errors.Is(err, syncer.ErrAllFeedsFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeRun answers a synchronous run: the result on success, the error with
// the closed ledger row otherwise.
func writeRun[T any](h *Handlers, w http.ResponseWriter, res *worker.RunResult[T], err error) {
	if err != nil {
		h.logger.Errorf("Sync failed: %v", err)
		resp := errorResponse{Error: err.Error()}
		if res != nil {
			resp.SyncLogID = res.SyncLogID
			resp.Result = res.Result
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) writeQueued(w http.ResponseWriter, err error, d any) {
	if err != nil {
		h.logger.Errorf("Error enqueuing task: %v", err)
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

// feedURL reads the url from a JSON body or a form/query value.
func feedURL(r *http.Request) string {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			return strings.TrimSpace(body.URL)
		}
		return ""
	}
	return strings.TrimSpace(r.FormValue("url"))
}

// PostPodcast adds a feed by URL.
func (h *Handlers) PostPodcast(w http.ResponseWriter, r *http.Request) {
	url := feedURL(r)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	if isAsync(r) {
		d, err := h.dispatcher.AddFeed(r.Context(), url)
		h.writeQueued(w, err, d)
		return
	}
	res, err := h.runner.AddFeed(r.Context(), url, worker.Invocation{})
	writeRun(h, w, res, err)
}

func (h *Handlers) SyncPodcast(w http.ResponseWriter, r *http.Request) {
	feedID, err := strconv.ParseInt(mux.Vars(r)["feedId"], 10, 64)
	if err != nil || feedID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid feed id")
		return
	}
	h.syncRef(w, r, syncer.RefByID(feedID))
}

// SyncPodcastByRef syncs a feed named by ?guid= or ?url=.
func (h *Handlers) SyncPodcastByRef(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("guid") != "":
		h.syncRef(w, r, syncer.RefByGUID(q.Get("guid")))
	case q.Get("url") != "":
		h.syncRef(w, r, syncer.RefByURL(q.Get("url")))
	default:
		writeError(w, http.StatusBadRequest, "guid or url is required")
	}
}

func (h *Handlers) syncRef(w http.ResponseWriter, r *http.Request, ref syncer.FeedRef) {
	if isAsync(r) {
		d, err := h.dispatcher.SyncFeed(r.Context(), ref, nil)
		h.writeQueued(w, err, d)
		return
	}
	res, err := h.runner.SyncFeed(r.Context(), ref, worker.Invocation{})
	writeRun(h, w, res, err)
}

// SyncRecent runs a recent-data sweep. max and since are optional.
func (h *Handlers) SyncRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var limit int
	var since int64
	var err error
	if v := q.Get("max"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid max")
			return
		}
	}
	if v := q.Get("since"); v != "" {
		if since, err = strconv.ParseInt(v, 10, 64); err != nil || since < 0 {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
	}

	if isAsync(r) {
		d, err := h.dispatcher.SyncRecent(r.Context(), limit, since)
		h.writeQueued(w, err, d)
		return
	}
	res, err := h.runner.SyncRecent(r.Context(), limit, since, worker.Invocation{})
	writeRun(h, w, res, err)
}

// SyncAll always goes through the queue: it fans out one job per podcast.
func (h *Handlers) SyncAll(w http.ResponseWriter, r *http.Request) {
	d, err := h.dispatcher.SyncAll(r.Context())
	h.writeQueued(w, err, d)
}

func (h *Handlers) EvaluateAlerts(w http.ResponseWriter, r *http.Request) {
	if isAsync(r) {
		d, err := h.dispatcher.EvaluateQuality(r.Context())
		h.writeQueued(w, err, d)
		return
	}
	res, err := h.runner.EvaluateQuality(r.Context(), worker.Invocation{})
	writeRun(h, w, res, err)
}
