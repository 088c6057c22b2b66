package test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"podcast-curator/internal/db"
	"podcast-curator/internal/models"
)

// MemSyncLogs is an in-memory sync_logs table with the store's transition
// rules: only PENDING rows start, only open rows finish.
type MemSyncLogs struct {
	mu     sync.Mutex
	rows   map[int64]*models.SyncLog
	nextID int64
}

func NewMemSyncLogs() *MemSyncLogs {
	return &MemSyncLogs{rows: make(map[int64]*models.SyncLog)}
}

func (m *MemSyncLogs) CreateSyncLog(ctx context.Context, l *models.SyncLog) (*models.SyncLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	row := *l
	row.ID = m.nextID
	row.CreatedAt = time.Now()
	if row.Status == models.SyncRunning {
		now := row.CreatedAt
		row.StartedAt = &now
	}
	m.rows[row.ID] = &row
	cp := row
	return &cp, nil
}

func (m *MemSyncLogs) MarkSyncLogRunning(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != models.SyncPending {
		return fmt.Errorf("sync log %d: %w", id, db.ErrSyncLogClosed)
	}
	now := time.Now()
	row.Status, row.StartedAt = models.SyncRunning, &now
	return nil
}

func (m *MemSyncLogs) FinishSyncLog(ctx context.Context, id int64, status models.SyncStatus, message string, podcastID *int64, errPayload models.JSON) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status.Terminal() {
		return fmt.Errorf("sync log %d: %w", id, db.ErrSyncLogClosed)
	}
	now := time.Now()
	row.Status, row.Message, row.Error, row.FinishedAt = status, message, errPayload, &now
	if podcastID != nil {
		row.PodcastID = podcastID
	}
	return nil
}

// Rows returns a copy of every row in id order.
func (m *MemSyncLogs) Rows() []models.SyncLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SyncLog, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
