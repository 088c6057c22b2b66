package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"podcast-curator/internal/models"
)

const updateEpisodeQuery = `
	UPDATE episodes SET
		external_id = COALESCE(external_id, :external_id),
		title = :title,
		description = :description,
		link = :link,
		enclosure_url = :enclosure_url,
		enclosure_type = :enclosure_type,
		enclosure_length = :enclosure_length,
		duration = :duration,
		date_published = :date_published,
		date_crawled = :date_crawled,
		season = :season,
		episode_number = :episode_number,
		episode_type = :episode_type,
		explicit = :explicit,
		image = :image,
		transcript_url = :transcript_url,
		chapters_url = :chapters_url,
		value_model_type = :value_model_type,
		value_model_method = :value_model_method,
		value_json = :value_json,
		updated_at = NOW()
	WHERE id = :id
	RETURNING *`

const insertEpisodeQuery = `
	INSERT INTO episodes (
		podcast_id, external_id, guid, title, description, link,
		enclosure_url, enclosure_type, enclosure_length, duration,
		date_published, date_crawled, season, episode_number, episode_type,
		explicit, image, transcript_url, chapters_url,
		value_model_type, value_model_method, value_json
	) VALUES (
		:podcast_id, :external_id, :guid, :title, :description, :link,
		:enclosure_url, :enclosure_type, :enclosure_length, :duration,
		:date_published, :date_crawled, :season, :episode_number, :episode_type,
		:explicit, :image, :transcript_url, :chapters_url,
		:value_model_type, :value_model_method, :value_json
	)
	ON CONFLICT (podcast_id, guid) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		link = EXCLUDED.link,
		enclosure_url = EXCLUDED.enclosure_url,
		enclosure_type = EXCLUDED.enclosure_type,
		enclosure_length = EXCLUDED.enclosure_length,
		duration = EXCLUDED.duration,
		date_published = EXCLUDED.date_published,
		date_crawled = EXCLUDED.date_crawled,
		season = EXCLUDED.season,
		episode_number = EXCLUDED.episode_number,
		episode_type = EXCLUDED.episode_type,
		explicit = EXCLUDED.explicit,
		image = EXCLUDED.image,
		transcript_url = EXCLUDED.transcript_url,
		chapters_url = EXCLUDED.chapters_url,
		value_model_type = EXCLUDED.value_model_type,
		value_model_method = EXCLUDED.value_model_method,
		value_json = EXCLUDED.value_json,
		updated_at = NOW()
	RETURNING *, (xmax = 0) AS inserted`

type upsertedEpisode struct {
	models.Episode
	Inserted bool `db:"inserted"`
}

// ExistingEpisodeKeys returns the stored dedup keys of a podcast's episodes.
func (s *Store) ExistingEpisodeKeys(ctx context.Context, podcastID int64) (map[string]struct{}, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT guid FROM episodes WHERE podcast_id = $1", podcastID); err != nil {
		return nil, fmt.Errorf("failed to load episode keys for podcast %d: %w", podcastID, err)
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// UpsertEpisode updates the episode matching e's external id, or failing
// that its (podcast_id, guid), and inserts it when neither matches. The
// returned bool is true when a new row was created.
func (s *Store) UpsertEpisode(ctx context.Context, e *models.Episode) (*models.Episode, bool, error) {
	id, err := s.findEpisodeID(ctx, e)
	if err != nil {
		return nil, false, err
	}

	if id != 0 {
		row := *e
		row.ID = id
		query, args, err := s.db.BindNamed(updateEpisodeQuery, &row)
		if err != nil {
			return nil, false, fmt.Errorf("failed to bind episode update: %w", err)
		}
		out := &models.Episode{}
		if err := s.db.GetContext(ctx, out, query, args...); err != nil {
			return nil, false, fmt.Errorf("failed to update episode %d: %w", id, err)
		}
		return out, false, nil
	}

	query, args, err := s.db.BindNamed(insertEpisodeQuery, e)
	if err != nil {
		return nil, false, fmt.Errorf("failed to bind episode insert: %w", err)
	}
	out := &upsertedEpisode{}
	if err := s.db.GetContext(ctx, out, query, args...); err != nil {
		return nil, false, fmt.Errorf("failed to insert episode %q: %w", e.GUID, err)
	}
	return &out.Episode, out.Inserted, nil
}

func (s *Store) findEpisodeID(ctx context.Context, e *models.Episode) (int64, error) {
	var id int64
	if e.ExternalID != nil {
		err := s.db.GetContext(ctx, &id, "SELECT id FROM episodes WHERE external_id = $1", *e.ExternalID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to look up episode by external id: %w", err)
		}
	}

	err := s.db.GetContext(ctx, &id, "SELECT id FROM episodes WHERE podcast_id = $1 AND guid = $2", e.PodcastID, e.GUID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up episode by guid: %w", err)
	}
	return id, nil
}

// ListEpisodes returns a podcast's newest episodes first.
func (s *Store) ListEpisodes(ctx context.Context, podcastID int64, limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := s.db.SelectContext(ctx, &episodes, `
		SELECT * FROM episodes
		WHERE podcast_id = $1
		ORDER BY date_published DESC NULLS LAST, id DESC
		LIMIT $2`, podcastID, limit)
	return episodes, err
}
