package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/hibiken/asynq"

	"podcast-curator/internal/syncer"
	"podcast-curator/pkg/tasks"
)

// TaskHandler adapts queued tasks onto the Runner.
type TaskHandler struct {
	runner *Runner
	logger *log.Logger
}

func NewTaskHandler(runner *Runner, logger *log.Logger) *TaskHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &TaskHandler{runner: runner, logger: logger}
}

// Register mounts every handler on mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeSyncPodcast, h.HandleSyncPodcastTask)
	mux.HandleFunc(tasks.TypeAddPodcast, h.HandleAddPodcastTask)
	mux.HandleFunc(tasks.TypeSyncRecent, h.HandleSyncRecentTask)
	mux.HandleFunc(tasks.TypeSyncAllPodcasts, h.HandleSyncAllPodcastsTask)
	mux.HandleFunc(tasks.TypeEvaluateQuality, h.HandleEvaluateQualityTask)
}

func invocation(ctx context.Context, syncLogID int64) Invocation {
	taskID, _ := asynq.GetTaskID(ctx)
	return Invocation{SyncLogID: syncLogID, QueueJobID: taskID}
}

// skipRetryOnNotFound stops asynq from retrying a feed that does not exist.
func skipRetryOnNotFound(err error) error {
	if errors.Is(err, syncer.ErrNotFound) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

func (h *TaskHandler) HandleSyncPodcastTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.SyncPodcastTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	var ref syncer.FeedRef
	switch {
	case p.FeedID > 0:
		ref = syncer.RefByID(p.FeedID)
	case p.GUID != "":
		ref = syncer.RefByGUID(p.GUID)
	case p.URL != "":
		ref = syncer.RefByURL(p.URL)
	default:
		return fmt.Errorf("sync task names no feed: %w", asynq.SkipRetry)
	}

	h.logger.Infof("Syncing podcast %s", ref)
	_, err := h.runner.SyncFeed(ctx, ref, invocation(ctx, p.SyncLogID))
	return skipRetryOnNotFound(err)
}

func (h *TaskHandler) HandleAddPodcastTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.AddPodcastTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.URL == "" {
		return fmt.Errorf("add task has no url: %w", asynq.SkipRetry)
	}

	h.logger.Infof("Adding podcast %s", p.URL)
	_, err := h.runner.AddFeed(ctx, p.URL, invocation(ctx, p.SyncLogID))
	return skipRetryOnNotFound(err)
}

func (h *TaskHandler) HandleSyncRecentTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.SyncRecentTaskPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
		}
	}

	h.logger.Info("Sweeping recent data...")
	res, err := h.runner.SyncRecent(ctx, p.Max, p.Since, invocation(ctx, p.SyncLogID))
	if err != nil {
		return err
	}
	h.logger.Info(res.Result.String())
	return nil
}

func (h *TaskHandler) HandleSyncAllPodcastsTask(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.DecodeSyncLogTask(t)
	if err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("Queueing sync for all podcasts...")
	res, err := h.runner.SyncAll(ctx, invocation(ctx, p.SyncLogID))
	if err != nil {
		return err
	}
	h.logger.Infof("Finished queueing %d of %d podcasts.", res.Result.Queued, res.Result.Podcasts)
	return nil
}

func (h *TaskHandler) HandleEvaluateQualityTask(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.DecodeSyncLogTask(t)
	if err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}
	_, err = h.runner.EvaluateQuality(ctx, invocation(ctx, p.SyncLogID))
	return err
}
