// Package queue hands sync work to the asynq queue with a PENDING ledger row
// per job, so deferred invocations are visible before a worker picks them up.
package queue

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"podcast-curator/internal/ledger"
	"podcast-curator/internal/syncer"
	"podcast-curator/pkg/tasks"
)

// Dispatched identifies a queued job.
type Dispatched struct {
	SyncLogID int64  `json:"sync_log_id"`
	TaskID    string `json:"task_id"`
	Type      string `json:"type"`
}

type Dispatcher struct {
	enqueuer tasks.TaskEnqueuer
	ledger   *ledger.Ledger
	logger   *log.Logger
}

func NewDispatcher(enqueuer tasks.TaskEnqueuer, l *ledger.Ledger, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{enqueuer: enqueuer, ledger: l, logger: logger}
}

// SyncFeed queues a sync of the feed ref names.
func (d *Dispatcher) SyncFeed(ctx context.Context, ref syncer.FeedRef, podcastID *int64) (*Dispatched, error) {
	jobType := ledger.JobSyncFeed
	switch ref.Kind {
	case syncer.FeedRefGUID:
		jobType = ledger.JobSyncGUID
	case syncer.FeedRefURL:
		jobType = ledger.JobSyncURL
	}
	return d.dispatch(ctx, jobType, podcastID, func(logID int64) (*asynq.Task, error) {
		return tasks.NewSyncPodcastTask(tasks.SyncPodcastTaskPayload{
			FeedID:    ref.ID,
			GUID:      ref.GUID,
			URL:       ref.URL,
			SyncLogID: logID,
		})
	})
}

// AddFeed queues a registration on the high priority queue; someone is
// usually waiting on it.
func (d *Dispatcher) AddFeed(ctx context.Context, feedURL string) (*Dispatched, error) {
	return d.dispatch(ctx, ledger.JobAddFeed, nil, func(logID int64) (*asynq.Task, error) {
		return tasks.NewAddPodcastTask(feedURL, logID, asynq.Queue(tasks.QueueHigh))
	})
}

func (d *Dispatcher) SyncRecent(ctx context.Context, limit int, since int64) (*Dispatched, error) {
	return d.dispatch(ctx, ledger.JobSyncRecent, nil, func(logID int64) (*asynq.Task, error) {
		return tasks.NewSyncRecentTask(tasks.SyncRecentTaskPayload{Max: limit, Since: since, SyncLogID: logID})
	})
}

func (d *Dispatcher) SyncAll(ctx context.Context) (*Dispatched, error) {
	return d.dispatch(ctx, ledger.JobSyncAll, nil, func(logID int64) (*asynq.Task, error) {
		return tasks.NewSyncAllPodcastsTask(logID)
	})
}

func (d *Dispatcher) EvaluateQuality(ctx context.Context) (*Dispatched, error) {
	return d.dispatch(ctx, ledger.JobQualityEvaluate, nil, func(logID int64) (*asynq.Task, error) {
		return tasks.NewEvaluateQualityTask(logID)
	})
}

// dispatch writes the PENDING row, then enqueues under a task id recorded on
// it. A job that never reached the queue closes its row as FAILED.
func (d *Dispatcher) dispatch(ctx context.Context, jobType ledger.JobType, podcastID *int64, build func(logID int64) (*asynq.Task, error)) (*Dispatched, error) {
	taskID := uuid.NewString()
	row, err := d.ledger.Enqueued(ctx, jobType, taskID, podcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to record %s job: %w", jobType, err)
	}

	task, err := build(row.ID)
	if err == nil {
		_, err = d.enqueuer.EnqueueContext(ctx, task, asynq.TaskID(taskID))
	}
	if err != nil {
		err = fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
		if ferr := d.ledger.Fail(context.WithoutCancel(ctx), row.ID, err, ledger.Outcome{PodcastID: podcastID}); ferr != nil {
			d.logger.Error("failed to close sync log", "id", row.ID, "err", ferr)
		}
		return nil, err
	}

	d.logger.Info("job queued", "type", task.Type(), "task", taskID, "log", row.ID)
	return &Dispatched{SyncLogID: row.ID, TaskID: taskID, Type: task.Type()}, nil
}
