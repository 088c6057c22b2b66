package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-curator/internal/ledger"
	"podcast-curator/internal/syncer"
	"podcast-curator/internal/test"
	"podcast-curator/pkg/tasks"
)

var syncLogColumns = []string{"id", "job_type", "status", "podcast_id", "queue_job_id", "started_at", "finished_at", "message", "error", "created_at"}

func TestDispatchSyncFeed(t *testing.T) {
	store, mock := test.NewMockDB(t)
	enqueuer := &test.MockTaskEnqueuer{}
	d := NewDispatcher(enqueuer, ledger.New(store, log.New(io.Discard)), log.New(io.Discard))

	mock.ExpectQuery(`INSERT INTO sync_logs`).
		WithArgs("sync_guid", "PENDING", nil, sqlmock.AnyArg(), "queued").
		WillReturnRows(sqlmock.NewRows(syncLogColumns).
			AddRow(17, "sync_guid", "PENDING", nil, "task-uuid", nil, nil, "queued", nil, time.Now()))

	got, err := d.SyncFeed(context.Background(), syncer.RefByGUID("abc"), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(17), got.SyncLogID)
	assert.Equal(t, tasks.TypeSyncPodcast, got.Type)
	require.Len(t, enqueuer.EnqueuedTasks, 1)
	assert.Equal(t, got.TaskID, enqueuer.TaskID(0))

	var p tasks.SyncPodcastTaskPayload
	require.NoError(t, json.Unmarshal(enqueuer.EnqueuedTasks[0].Payload(), &p))
	assert.Equal(t, "abc", p.GUID)
	assert.Equal(t, int64(17), p.SyncLogID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchEnqueueFailureClosesRow(t *testing.T) {
	store, mock := test.NewMockDB(t)
	enqueuer := &test.MockTaskEnqueuer{Err: errors.New("redis down")}
	d := NewDispatcher(enqueuer, ledger.New(store, log.New(io.Discard)), log.New(io.Discard))

	mock.ExpectQuery(`INSERT INTO sync_logs`).
		WithArgs("sync_recent", "PENDING", nil, sqlmock.AnyArg(), "queued").
		WillReturnRows(sqlmock.NewRows(syncLogColumns).
			AddRow(3, "sync_recent", "PENDING", nil, "task-uuid", nil, nil, "queued", nil, time.Now()))
	mock.ExpectExec(`UPDATE sync_logs SET`).
		WithArgs(int64(3), "FAILED", "failed to enqueue sync_recent job: redis down", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := d.SyncRecent(context.Background(), 100, 0)
	assert.ErrorContains(t, err, "redis down")
	assert.NoError(t, mock.ExpectationsWereMet())
}
