package db

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"podcast-curator/internal/models"
)

// UpsertAlert updates the open alert with the same title in place, or opens a new one.
func (s *Store) UpsertAlert(ctx context.Context, title string, severity models.Severity, body string) (*models.QualityAlert, error) {
	a := &models.QualityAlert{}
	err := s.db.GetContext(ctx, a, `
		INSERT INTO quality_alerts (title, severity, body, status)
		VALUES ($1, $2, $3, 'open')
		ON CONFLICT (title) WHERE status = 'open' DO UPDATE SET
			severity = EXCLUDED.severity,
			body = EXCLUDED.body,
			updated_at = NOW()
		RETURNING *`, title, severity, body)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert alert %q: %w", title, err)
	}
	return a, nil
}

// ResolveAlertsExcept resolves every open alert whose title is not in keep.
func (s *Store) ResolveAlertsExcept(ctx context.Context, keep []string) ([]models.QualityAlert, error) {
	if keep == nil {
		keep = []string{}
	}
	var resolved []models.QualityAlert
	err := s.db.SelectContext(ctx, &resolved, `
		UPDATE quality_alerts SET
			status = 'resolved',
			resolved_at = NOW(),
			updated_at = NOW()
		WHERE status = 'open' AND NOT (title = ANY($1))
		RETURNING *`, pq.Array(keep))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve alerts: %w", err)
	}
	return resolved, nil
}

// ListAlerts returns alerts with the given status, or all alerts when status is empty.
func (s *Store) ListAlerts(ctx context.Context, status string) ([]models.QualityAlert, error) {
	var alerts []models.QualityAlert
	var err error
	if status == "" {
		err = s.db.SelectContext(ctx, &alerts, "SELECT * FROM quality_alerts ORDER BY updated_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &alerts, "SELECT * FROM quality_alerts WHERE status = $1 ORDER BY updated_at DESC", status)
	}
	return alerts, err
}

// CountPodcastsMissingDestinations counts podcasts declaring a value model
// without any destination rows.
func (s *Store) CountPodcastsMissingDestinations(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM podcasts p
		WHERE p.value_model_type <> ''
		AND NOT EXISTS (SELECT 1 FROM value_destinations d WHERE d.podcast_id = p.id)`)
	return n, err
}

// CountStalePodcasts counts live podcasts not synced since before.
func (s *Store) CountStalePodcasts(ctx context.Context, before time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM podcasts
		WHERE dead = FALSE AND (last_synced_at IS NULL OR last_synced_at < $1)`, before)
	return n, err
}

func (s *Store) CountEpisodesMissingEnclosure(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM episodes WHERE enclosure_url = ''")
	return n, err
}
