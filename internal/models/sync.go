package models

import "time"

// SyncStatus is the lifecycle state of a SyncLog row.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncRunning SyncStatus = "RUNNING"
	SyncSuccess SyncStatus = "SUCCESS"
	SyncFailed  SyncStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s SyncStatus) Terminal() bool {
	return s == SyncSuccess || s == SyncFailed
}

// SyncCursor holds the last synchronized position for a natural key such as "feed:42".
type SyncCursor struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SyncLog is one ledger entry per sync invocation.
type SyncLog struct {
	ID         int64      `db:"id" json:"id"`
	JobType    string     `db:"job_type" json:"job_type"`
	Status     SyncStatus `db:"status" json:"status"`
	PodcastID  *int64     `db:"podcast_id" json:"podcast_id,omitempty"`
	QueueJobID *string    `db:"queue_job_id" json:"queue_job_id,omitempty"`
	StartedAt  *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Message    string     `db:"message" json:"message"`
	Error      JSON       `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
