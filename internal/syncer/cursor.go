package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"podcast-curator/internal/db"
	"podcast-curator/internal/models"
)

// RecentCursorKey holds the sweep-level since value between recent-data sweeps.
const RecentCursorKey = "recent:since"

// FeedCursorKey is the cursor key of one feed.
func FeedCursorKey(feedID int64) string {
	return "feed:" + strconv.FormatInt(feedID, 10)
}

// CursorBackend persists cursors. AdvanceCursor must never lower a stored value.
type CursorBackend interface {
	GetCursor(ctx context.Context, key string) (*models.SyncCursor, error)
	AdvanceCursor(ctx context.Context, key string, value int64) (*models.SyncCursor, error)
}

// CursorStore reads and advances unix-second cursors.
type CursorStore struct {
	backend CursorBackend
}

func NewCursorStore(backend CursorBackend) *CursorStore {
	return &CursorStore{backend: backend}
}

// Get returns the cursor under key. ok is false when none was ever written.
func (c *CursorStore) Get(ctx context.Context, key string) (value int64, ok bool, err error) {
	cur, err := c.backend.GetCursor(ctx, key)
	if errors.Is(err, db.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	value, err = strconv.ParseInt(cur.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("cursor %q holds non-numeric value %q: %w", key, cur.Value, err)
	}
	return value, true, nil
}

// Advance raises the cursor to value if it is higher and returns the value
// now stored, which may be greater than value under concurrent writers.
func (c *CursorStore) Advance(ctx context.Context, key string, value int64) (int64, error) {
	cur, err := c.backend.AdvanceCursor(ctx, key, value)
	if err != nil {
		return 0, err
	}
	stored, err := strconv.ParseInt(cur.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cursor %q holds non-numeric value %q: %w", key, cur.Value, err)
	}
	return stored, nil
}
