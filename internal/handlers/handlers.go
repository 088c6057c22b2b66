package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
	"podcast-curator/internal/quality"
	"podcast-curator/internal/queue"
	"podcast-curator/internal/syncer"
	"podcast-curator/internal/worker"
)

// Runner executes ledger-tracked syncs in the request goroutine.
type Runner interface {
	SyncFeed(ctx context.Context, ref syncer.FeedRef, inv worker.Invocation) (*worker.RunResult[*syncer.SyncResult], error)
	AddFeed(ctx context.Context, feedURL string, inv worker.Invocation) (*worker.RunResult[*syncer.SyncResult], error)
	SyncRecent(ctx context.Context, limit int, since int64, inv worker.Invocation) (*worker.RunResult[*syncer.RecentSummary], error)
	EvaluateQuality(ctx context.Context, inv worker.Invocation) (*worker.RunResult[*quality.Report], error)
}

// Dispatcher queues the same operations for the worker.
type Dispatcher interface {
	SyncFeed(ctx context.Context, ref syncer.FeedRef, podcastID *int64) (*queue.Dispatched, error)
	AddFeed(ctx context.Context, feedURL string) (*queue.Dispatched, error)
	SyncRecent(ctx context.Context, limit int, since int64) (*queue.Dispatched, error)
	SyncAll(ctx context.Context) (*queue.Dispatched, error)
	EvaluateQuality(ctx context.Context) (*queue.Dispatched, error)
}

type Searcher interface {
	SearchByTerm(ctx context.Context, term string, max int) ([]podcastindex.Feed, error)
}

type Store interface {
	ListSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error)
	ListAlerts(ctx context.Context, status string) ([]models.QualityAlert, error)
	GetPodcastByFeedID(ctx context.Context, feedID int64) (*models.Podcast, error)
	ListEpisodes(ctx context.Context, podcastID int64, limit int) ([]models.Episode, error)
}

type Handlers struct {
	runner     Runner
	dispatcher Dispatcher
	searcher   Searcher
	store      Store
	logger     *log.Logger
}

type Deps struct {
	Runner     Runner
	Dispatcher Dispatcher
	Searcher   Searcher
	Store      Store
	Logger     *log.Logger
}

func New(d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return &Handlers{
		runner:     d.Runner,
		dispatcher: d.Dispatcher,
		searcher:   d.Searcher,
		store:      d.Store,
		logger:     d.Logger,
	}
}

// Router mounts every route. Middlewares wrap the /api subtree only.
func (h *Handlers) Router(middlewares ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middlewares...)
	api.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	api.HandleFunc("/podcasts", h.PostPodcast).Methods(http.MethodPost)
	api.HandleFunc("/podcasts/sync", h.SyncPodcastByRef).Methods(http.MethodPost)
	api.HandleFunc("/podcasts/{feedId:[0-9]+}/sync", h.SyncPodcast).Methods(http.MethodPost)
	api.HandleFunc("/podcasts/{feedId:[0-9]+}/rss", h.GetRSSFeed).Methods(http.MethodGet)
	api.HandleFunc("/sync/recent", h.SyncRecent).Methods(http.MethodPost)
	api.HandleFunc("/sync/all", h.SyncAll).Methods(http.MethodPost)
	api.HandleFunc("/sync-logs", h.ListSyncLogs).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.ListAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/evaluate", h.EvaluateAlerts).Methods(http.MethodPost)
	return r
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Error encoding response: %v", err)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	SyncLogID int64  `json:"sync_log_id,omitempty"`
	Result    any    `json:"result,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
