package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"podcast-curator/internal/models"
)

const upsertPodcastQuery = `
	INSERT INTO podcasts (
		feed_id, podcast_guid, url, original_url, title, author, owner_name, description,
		link, image, artwork, language, itunes_id, explicit, medium, episode_count,
		value_model_type, value_model_method, value_model_suggested,
		last_update_time, last_crawl_time, last_parse_time, last_good_http_status_time,
		oldest_item_pubdate, newest_item_pubdate, crawl_errors, parse_errors,
		dead, duplicate_of, locked
	) VALUES (
		:feed_id, :podcast_guid, :url, :original_url, :title, :author, :owner_name, :description,
		:link, :image, :artwork, :language, :itunes_id, :explicit, :medium, :episode_count,
		:value_model_type, :value_model_method, :value_model_suggested,
		:last_update_time, :last_crawl_time, :last_parse_time, :last_good_http_status_time,
		:oldest_item_pubdate, :newest_item_pubdate, :crawl_errors, :parse_errors,
		:dead, :duplicate_of, :locked
	)
	ON CONFLICT (feed_id) DO UPDATE SET
		podcast_guid = EXCLUDED.podcast_guid,
		url = EXCLUDED.url,
		original_url = EXCLUDED.original_url,
		title = EXCLUDED.title,
		author = EXCLUDED.author,
		owner_name = EXCLUDED.owner_name,
		description = EXCLUDED.description,
		link = EXCLUDED.link,
		image = EXCLUDED.image,
		artwork = EXCLUDED.artwork,
		language = EXCLUDED.language,
		itunes_id = EXCLUDED.itunes_id,
		explicit = EXCLUDED.explicit,
		medium = EXCLUDED.medium,
		episode_count = EXCLUDED.episode_count,
		value_model_type = EXCLUDED.value_model_type,
		value_model_method = EXCLUDED.value_model_method,
		value_model_suggested = EXCLUDED.value_model_suggested,
		last_update_time = EXCLUDED.last_update_time,
		last_crawl_time = EXCLUDED.last_crawl_time,
		last_parse_time = EXCLUDED.last_parse_time,
		last_good_http_status_time = EXCLUDED.last_good_http_status_time,
		oldest_item_pubdate = EXCLUDED.oldest_item_pubdate,
		newest_item_pubdate = EXCLUDED.newest_item_pubdate,
		crawl_errors = EXCLUDED.crawl_errors,
		parse_errors = EXCLUDED.parse_errors,
		dead = EXCLUDED.dead,
		duplicate_of = EXCLUDED.duplicate_of,
		locked = EXCLUDED.locked,
		updated_at = NOW()
	RETURNING *`

// UpsertPodcast inserts or updates the podcast keyed by its upstream feed id.
func (s *Store) UpsertPodcast(ctx context.Context, p *models.Podcast) (*models.Podcast, error) {
	query, args, err := s.db.BindNamed(upsertPodcastQuery, p)
	if err != nil {
		return nil, fmt.Errorf("failed to bind podcast upsert: %w", err)
	}

	out := &models.Podcast{}
	if err := s.db.GetContext(ctx, out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to upsert podcast %d: %w", p.FeedID, err)
	}
	return out, nil
}

// ReplaceValueDestinations swaps the podcast's destination set for dests.
func (s *Store) ReplaceValueDestinations(ctx context.Context, podcastID int64, dests []models.ValueDestination) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM value_destinations WHERE podcast_id = $1", podcastID); err != nil {
		return fmt.Errorf("failed to clear value destinations: %w", err)
	}

	for _, d := range dests {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO value_destinations (podcast_id, name, address, type, split, fee, custom_key, custom_value)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			podcastID, d.Name, d.Address, d.Type, d.Split, d.Fee, d.CustomKey, d.CustomValue)
		if err != nil {
			return fmt.Errorf("failed to insert value destination %q: %w", d.Address, err)
		}
	}

	return tx.Commit()
}

// ReplaceCategories links the podcast to exactly cats, creating unknown categories.
func (s *Store) ReplaceCategories(ctx context.Context, podcastID int64, cats []models.Category) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM podcast_categories WHERE podcast_id = $1", podcastID); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}

	for _, c := range cats {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, c.ID, c.Name); err != nil {
			return fmt.Errorf("failed to upsert category %d: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO podcast_categories (podcast_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			podcastID, c.ID); err != nil {
			return fmt.Errorf("failed to link category %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// MarkPodcastSynced stamps last_synced_at after a completed reconciliation.
func (s *Store) MarkPodcastSynced(ctx context.Context, podcastID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE podcasts SET last_synced_at = NOW() WHERE id = $1", podcastID)
	return err
}

func (s *Store) GetPodcastByFeedID(ctx context.Context, feedID int64) (*models.Podcast, error) {
	p := &models.Podcast{}
	err := s.db.GetContext(ctx, p, "SELECT * FROM podcasts WHERE feed_id = $1", feedID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListActiveFeedIDs returns the feed ids of every podcast not flagged dead.
func (s *Store) ListActiveFeedIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, "SELECT feed_id FROM podcasts WHERE dead = FALSE ORDER BY feed_id")
	return ids, err
}
