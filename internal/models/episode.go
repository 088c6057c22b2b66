package models

import "time"

// Episode is one feed item. GUID always holds the resolved dedup key, so it is
// never NULL even when the upstream item carries no guid.
type Episode struct {
	ID               int64      `db:"id" json:"id"`
	PodcastID        int64      `db:"podcast_id" json:"podcast_id"`
	ExternalID       *int64     `db:"external_id" json:"external_id,omitempty"`
	GUID             string     `db:"guid" json:"guid"`
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	Link             string     `db:"link" json:"link"`
	EnclosureURL     string     `db:"enclosure_url" json:"enclosure_url"`
	EnclosureType    string     `db:"enclosure_type" json:"enclosure_type"`
	EnclosureLength  int64      `db:"enclosure_length" json:"enclosure_length"`
	Duration         *int       `db:"duration" json:"duration,omitempty"`
	DatePublished    *time.Time `db:"date_published" json:"date_published,omitempty"`
	DateCrawled      *time.Time `db:"date_crawled" json:"date_crawled,omitempty"`
	Season           *int       `db:"season" json:"season,omitempty"`
	EpisodeNumber    *int       `db:"episode_number" json:"episode_number,omitempty"`
	EpisodeType      string     `db:"episode_type" json:"episode_type"`
	Explicit         bool       `db:"explicit" json:"explicit"`
	Image            string     `db:"image" json:"image"`
	TranscriptURL    string     `db:"transcript_url" json:"transcript_url"`
	ChaptersURL      string     `db:"chapters_url" json:"chapters_url"`
	ValueModelType   string     `db:"value_model_type" json:"value_model_type"`
	ValueModelMethod string     `db:"value_model_method" json:"value_model_method"`
	ValueJSON        JSON       `db:"value_json" json:"value,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
