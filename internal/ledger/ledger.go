// Package ledger brackets sync invocations with sync_logs rows so that every
// invocation ends in exactly one SUCCESS or FAILED entry.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"podcast-curator/internal/db"
	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
	"podcast-curator/internal/syncer"
)

// JobType tags what a ledger row was recording.
type JobType string

const (
	JobSyncFeed        JobType = "sync_feed"
	JobSyncGUID        JobType = "sync_guid"
	JobSyncURL         JobType = "sync_url"
	JobAddFeed         JobType = "add_feed"
	JobSyncRecent      JobType = "sync_recent"
	JobSyncAll         JobType = "sync_all"
	JobQualityEvaluate JobType = "quality_evaluate"
)

// NotFoundMessage is the message of a FAILED row for a feed the directory
// does not know.
const NotFoundMessage = "not found"

// Store is the sync_logs persistence the ledger drives.
type Store interface {
	CreateSyncLog(ctx context.Context, l *models.SyncLog) (*models.SyncLog, error)
	MarkSyncLogRunning(ctx context.Context, id int64) error
	FinishSyncLog(ctx context.Context, id int64, status models.SyncStatus, message string, podcastID *int64, errPayload models.JSON) error
}

// Entry describes an invocation about to start. LogID adopts the PENDING row
// written when the job was enqueued.
type Entry struct {
	JobType    JobType
	PodcastID  *int64
	QueueJobID string
	LogID      int64
}

// Outcome is what a tracked function reports. Details, when set, is attached
// to the error payload of a failed row.
type Outcome struct {
	Message   string
	PodcastID *int64
	Details   any
}

// ErrorPayload is the structured error stored on FAILED rows.
type ErrorPayload struct {
	Message    string `json:"message"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	Details    any    `json:"details,omitempty"`
}

type Ledger struct {
	store  Store
	logger *log.Logger
}

func New(store Store, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// Enqueued records a PENDING row for work handed to the queue.
func (l *Ledger) Enqueued(ctx context.Context, jobType JobType, queueJobID string, podcastID *int64) (*models.SyncLog, error) {
	row := &models.SyncLog{
		JobType:   string(jobType),
		Status:    models.SyncPending,
		PodcastID: podcastID,
		Message:   "queued",
	}
	if queueJobID != "" {
		row.QueueJobID = &queueJobID
	}
	return l.store.CreateSyncLog(ctx, row)
}

// Start moves the entry's PENDING row to RUNNING, or creates a RUNNING row
// when there is none. A queue retry finds its PENDING row already closed by
// the previous attempt and gets a fresh row.
func (l *Ledger) Start(ctx context.Context, e Entry) (int64, error) {
	if e.LogID > 0 {
		err := l.store.MarkSyncLogRunning(ctx, e.LogID)
		if err == nil {
			return e.LogID, nil
		}
		if !errors.Is(err, db.ErrSyncLogClosed) {
			return 0, err
		}
		l.logger.Debug("pending sync log already closed, starting a new one", "id", e.LogID)
	}

	row := &models.SyncLog{
		JobType:   string(e.JobType),
		Status:    models.SyncRunning,
		PodcastID: e.PodcastID,
	}
	if e.QueueJobID != "" {
		row.QueueJobID = &e.QueueJobID
	}
	created, err := l.store.CreateSyncLog(ctx, row)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// Succeed closes the row as SUCCESS.
func (l *Ledger) Succeed(ctx context.Context, id int64, out Outcome) error {
	return l.store.FinishSyncLog(ctx, id, models.SyncSuccess, out.Message, out.PodcastID, nil)
}

// Fail closes the row as FAILED. A not-found cause is recorded with the
// plain "not found" message and no error payload.
func (l *Ledger) Fail(ctx context.Context, id int64, cause error, out Outcome) error {
	if errors.Is(cause, syncer.ErrNotFound) {
		return l.store.FinishSyncLog(ctx, id, models.SyncFailed, NotFoundMessage, out.PodcastID, nil)
	}
	payload, err := json.Marshal(Classify(cause, out.Details))
	if err != nil {
		return fmt.Errorf("failed to encode error payload: %w", err)
	}
	return l.store.FinishSyncLog(ctx, id, models.SyncFailed, cause.Error(), out.PodcastID, payload)
}

// Track runs fn between Start and exactly one of Succeed or Fail. The row is
// closed even when ctx is canceled. It returns the row id and fn's error.
func (l *Ledger) Track(ctx context.Context, e Entry, fn func(ctx context.Context) (Outcome, error)) (int64, error) {
	id, err := l.Start(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("failed to open sync log: %w", err)
	}

	out, runErr := fn(ctx)
	if out.PodcastID == nil {
		out.PodcastID = e.PodcastID
	}

	closeCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		if err := l.Fail(closeCtx, id, runErr, out); err != nil {
			l.logger.Error("failed to close sync log", "id", id, "err", err)
			return id, errors.Join(runErr, err)
		}
		l.logger.Warn("sync failed", "job", e.JobType, "log", id, "err", runErr)
		return id, runErr
	}

	if err := l.Succeed(closeCtx, id, out); err != nil {
		l.logger.Error("failed to close sync log", "id", id, "err", err)
		return id, err
	}
	l.logger.Info("sync succeeded", "job", e.JobType, "log", id, "msg", out.Message)
	return id, nil
}

// Classify builds the error payload for cause.
func Classify(cause error, details any) ErrorPayload {
	p := ErrorPayload{Message: cause.Error(), Kind: "internal", Details: details}

	var apiErr *podcastindex.APIError
	switch {
	case errors.As(cause, &apiErr):
		p.Kind = "upstream"
		if apiErr.IsAuth() {
			p.Kind = "auth"
		}
		p.StatusCode = apiErr.StatusCode
		p.Endpoint = apiErr.Endpoint
	case errors.Is(cause, syncer.ErrAllFeedsFailed):
		p.Kind = "sweep"
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		p.Kind = "canceled"
	}
	return p
}
