package tasks

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeSyncPodcast     = "podcast:sync"
	TypeAddPodcast      = "podcast:add"
	TypeSyncRecent      = "recent:sync"
	TypeSyncAllPodcasts = "podcasts:sync-all"
	TypeEvaluateQuality = "quality:evaluate"
)

// Queue names. The worker weights high over default 2:1.
const (
	QueueHigh    = "high"
	QueueDefault = "default"
)

const defaultMaxRetry = 5

// TaskEnqueuer is the part of asynq.Client the dispatcher uses. Tests swap in
// a recording fake.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SyncPodcastTaskPayload names the feed by exactly one of FeedID, GUID or URL.
// SyncLogID is the PENDING ledger row written at enqueue time, if any.
type SyncPodcastTaskPayload struct {
	FeedID    int64
	GUID      string
	URL       string
	SyncLogID int64
}

func NewSyncPodcastTask(p SyncPodcastTaskPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncPodcast, payload, append([]asynq.Option{asynq.MaxRetry(defaultMaxRetry)}, opts...)...), nil
}

type AddPodcastTaskPayload struct {
	URL       string
	SyncLogID int64
}

func NewAddPodcastTask(url string, syncLogID int64, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(AddPodcastTaskPayload{URL: url, SyncLogID: syncLogID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAddPodcast, payload, append([]asynq.Option{asynq.MaxRetry(defaultMaxRetry)}, opts...)...), nil
}

// SyncRecentTaskPayload overrides the sweep bounds. A zero Since means the
// worker resumes from the stored sweep cursor.
type SyncRecentTaskPayload struct {
	Max       int
	Since     int64
	SyncLogID int64
}

func NewSyncRecentTask(p SyncRecentTaskPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncRecent, payload, append([]asynq.Option{asynq.MaxRetry(2)}, opts...)...), nil
}

type SyncLogTaskPayload struct {
	SyncLogID int64
}

func NewSyncAllPodcastsTask(syncLogID int64, opts ...asynq.Option) (*asynq.Task, error) {
	return newSyncLogTask(TypeSyncAllPodcasts, syncLogID, opts...)
}

func NewEvaluateQualityTask(syncLogID int64, opts ...asynq.Option) (*asynq.Task, error) {
	return newSyncLogTask(TypeEvaluateQuality, syncLogID, opts...)
}

func newSyncLogTask(typename string, syncLogID int64, opts ...asynq.Option) (*asynq.Task, error) {
	if syncLogID == 0 {
		return asynq.NewTask(typename, nil, opts...), nil
	}
	payload, err := json.Marshal(SyncLogTaskPayload{SyncLogID: syncLogID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, payload, opts...), nil
}

// DecodeSyncLogTask reads the optional ledger row id of a payload-less task.
func DecodeSyncLogTask(t *asynq.Task) (SyncLogTaskPayload, error) {
	var p SyncLogTaskPayload
	if len(t.Payload()) == 0 {
		return p, nil
	}
	err := json.Unmarshal(t.Payload(), &p)
	return p, err
}
