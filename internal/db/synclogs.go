package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"podcast-curator/internal/models"
)

// ErrSyncLogClosed is returned when a transition targets a row that is no
// longer in the expected state.
var ErrSyncLogClosed = errors.New("sync log is not open")

// CreateSyncLog inserts a new ledger row. StartedAt is set for RUNNING rows.
func (s *Store) CreateSyncLog(ctx context.Context, l *models.SyncLog) (*models.SyncLog, error) {
	out := &models.SyncLog{}
	err := s.db.GetContext(ctx, out, `
		INSERT INTO sync_logs (job_type, status, podcast_id, queue_job_id, started_at, message)
		VALUES ($1, $2, $3, $4, CASE WHEN $2 = 'RUNNING' THEN NOW() END, $5)
		RETURNING *`,
		l.JobType, l.Status, l.PodcastID, l.QueueJobID, l.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}
	return out, nil
}

// MarkSyncLogRunning moves a PENDING row to RUNNING.
func (s *Store) MarkSyncLogRunning(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sync_logs SET status = 'RUNNING', started_at = NOW() WHERE id = $1 AND status = 'PENDING'", id)
	if err != nil {
		return fmt.Errorf("failed to mark sync log %d running: %w", id, err)
	}
	return expectOneRow(res, id)
}

// FinishSyncLog applies the terminal transition. It only matches open rows,
// so a row can be closed exactly once.
func (s *Store) FinishSyncLog(ctx context.Context, id int64, status models.SyncStatus, message string, podcastID *int64, errPayload models.JSON) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finish sync log %d with status %s", id, status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs SET
			status = $2,
			message = $3,
			podcast_id = COALESCE($4, podcast_id),
			error = $5,
			started_at = COALESCE(started_at, NOW()),
			finished_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'RUNNING')`,
		id, status, message, podcastID, errPayload)
	if err != nil {
		return fmt.Errorf("failed to finish sync log %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectOneRow(res rowsAffecter, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("sync log %d: %w", id, ErrSyncLogClosed)
	}
	return nil
}

func (s *Store) GetSyncLog(ctx context.Context, id int64) (*models.SyncLog, error) {
	l := &models.SyncLog{}
	err := s.db.GetContext(ctx, l, "SELECT * FROM sync_logs WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListSyncLogs returns the most recent ledger rows first.
func (s *Store) ListSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	var logs []models.SyncLog
	err := s.db.SelectContext(ctx, &logs, "SELECT * FROM sync_logs ORDER BY created_at DESC, id DESC LIMIT $1", limit)
	return logs, err
}

// CountFailedSyncsSince counts FAILED rows created at or after since.
func (s *Store) CountFailedSyncsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM sync_logs WHERE status = 'FAILED' AND created_at >= $1", since)
	return n, err
}
