// Package app wires the sync pipeline from configuration. Every binary builds
// the same graph so queue, HTTP and CLI runs behave identically.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"podcast-curator/internal/config"
	"podcast-curator/internal/db"
	"podcast-curator/internal/ledger"
	"podcast-curator/internal/podcastindex"
	"podcast-curator/internal/quality"
	"podcast-curator/internal/queue"
	"podcast-curator/internal/syncer"
	"podcast-curator/internal/worker"
	"podcast-curator/pkg/tasks"
)

type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Store      *db.Store
	Client     *podcastindex.Client
	Ledger     *ledger.Ledger
	Dispatcher *queue.Dispatcher
	Runner     *worker.Runner
}

// New opens the database, applies migrations and builds the pipeline.
// enqueuer may be nil for processes that never queue work.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger, enqueuer tasks.TaskEnqueuer) (*App, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	if err := cfg.RequirePodcastIndex(); err != nil {
		return nil, err
	}

	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return Build(cfg, logger, store, NewClient(cfg, logger), enqueuer), nil
}

// NewClient builds the directory client from the podcastindex settings.
func NewClient(cfg *config.Config, logger *log.Logger) *podcastindex.Client {
	pi := cfg.PodcastIndex
	return podcastindex.New(podcastindex.Options{
		BaseURL:    pi.BaseURL,
		APIKey:     pi.APIKey,
		APISecret:  pi.APISecret,
		UserAgent:  pi.UserAgent,
		Timeout:    pi.Timeout,
		RateLimit:  pi.RateLimit,
		MaxRetries: pi.MaxRetries,
		Logger:     logger.WithPrefix("podcastindex"),
	})
}

// Build assembles the pipeline over an open store.
func Build(cfg *config.Config, logger *log.Logger, store *db.Store, client *podcastindex.Client, enqueuer tasks.TaskEnqueuer) *App {
	sync := syncer.New(client, store, syncer.Options{
		Limits: syncer.Limits{
			BatchSize:  cfg.Sync.EpisodeBatchSize,
			MaxBatches: cfg.Sync.MaxEpisodeBatches,
			ChunkSize:  cfg.Sync.UpsertChunkSize,
		},
		Logger: logger.WithPrefix("sync"),
	})
	orchestrator := syncer.NewOrchestrator(client, sync, cfg.Sync.RecentMax, logger.WithPrefix("recent"))
	evaluator := quality.NewEvaluator(store, quality.Thresholds{
		FailedWindow:   cfg.Quality.FailedWindow,
		FailedCritical: cfg.Quality.FailedCritical,
		StaleAfter:     cfg.Quality.StaleAfter,
	}, logger.WithPrefix("quality"))
	l := ledger.New(store, logger.WithPrefix("ledger"))

	a := &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Client: client,
		Ledger: l,
	}
	deps := worker.RunnerDeps{
		Feeds:     sync,
		Recent:    orchestrator,
		Cursors:   syncer.NewCursorStore(store),
		Ledger:    l,
		Evaluator: evaluator,
		Lister:    store,
		Logger:    logger.WithPrefix("runner"),
	}
	if enqueuer != nil {
		a.Dispatcher = queue.NewDispatcher(enqueuer, l, logger.WithPrefix("queue"))
		deps.Dispatcher = a.Dispatcher
	}
	a.Runner = worker.NewRunner(deps)
	return a
}

func (a *App) Close() error {
	return a.Store.Close()
}
