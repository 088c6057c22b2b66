package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"podcast-curator/internal/models"
)

// GetCursor returns the cursor stored under key, or ErrNotFound.
func (s *Store) GetCursor(ctx context.Context, key string) (*models.SyncCursor, error) {
	c := &models.SyncCursor{}
	err := s.db.GetContext(ctx, c, "SELECT key, value, updated_at FROM sync_cursors WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor %q: %w", key, err)
	}
	return c, nil
}

// AdvanceCursor stores value under key unless the stored value is already
// greater. Concurrent writers converge on the maximum.
func (s *Store) AdvanceCursor(ctx context.Context, key string, value int64) (*models.SyncCursor, error) {
	c := &models.SyncCursor{}
	err := s.db.GetContext(ctx, c, `
		INSERT INTO sync_cursors (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = GREATEST(sync_cursors.value::BIGINT, EXCLUDED.value::BIGINT)::TEXT,
			updated_at = CASE
				WHEN EXCLUDED.value::BIGINT > sync_cursors.value::BIGINT THEN NOW()
				ELSE sync_cursors.updated_at
			END
		RETURNING key, value, updated_at`,
		key, strconv.FormatInt(value, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to advance cursor %q: %w", key, err)
	}
	return c, nil
}
