package models

import "time"

// Podcast is one curated feed, keyed by the upstream directory's numeric feed id.
type Podcast struct {
	ID                     int64      `db:"id" json:"id"`
	FeedID                 int64      `db:"feed_id" json:"feed_id"`
	PodcastGUID            *string    `db:"podcast_guid" json:"podcast_guid,omitempty"`
	URL                    string     `db:"url" json:"url"`
	OriginalURL            string     `db:"original_url" json:"original_url"`
	Title                  string     `db:"title" json:"title"`
	Author                 string     `db:"author" json:"author"`
	OwnerName              string     `db:"owner_name" json:"owner_name"`
	Description            string     `db:"description" json:"description"`
	Link                   string     `db:"link" json:"link"`
	Image                  string     `db:"image" json:"image"`
	Artwork                string     `db:"artwork" json:"artwork"`
	Language               string     `db:"language" json:"language"`
	ItunesID               *int64     `db:"itunes_id" json:"itunes_id,omitempty"`
	Explicit               bool       `db:"explicit" json:"explicit"`
	Medium                 string     `db:"medium" json:"medium"`
	EpisodeCount           int        `db:"episode_count" json:"episode_count"`
	ValueModelType         string     `db:"value_model_type" json:"value_model_type"`
	ValueModelMethod       string     `db:"value_model_method" json:"value_model_method"`
	ValueModelSuggested    string     `db:"value_model_suggested" json:"value_model_suggested"`
	LastUpdateTime         *time.Time `db:"last_update_time" json:"last_update_time,omitempty"`
	LastCrawlTime          *time.Time `db:"last_crawl_time" json:"last_crawl_time,omitempty"`
	LastParseTime          *time.Time `db:"last_parse_time" json:"last_parse_time,omitempty"`
	LastGoodHTTPStatusTime *time.Time `db:"last_good_http_status_time" json:"last_good_http_status_time,omitempty"`
	OldestItemPubdate      *time.Time `db:"oldest_item_pubdate" json:"oldest_item_pubdate,omitempty"`
	NewestItemPubdate      *time.Time `db:"newest_item_pubdate" json:"newest_item_pubdate,omitempty"`
	CrawlErrors            int        `db:"crawl_errors" json:"crawl_errors"`
	ParseErrors            int        `db:"parse_errors" json:"parse_errors"`
	Dead                   bool       `db:"dead" json:"dead"`
	DuplicateOf            *int64     `db:"duplicate_of" json:"duplicate_of,omitempty"`
	Locked                 bool       `db:"locked" json:"locked"`
	LastSyncedAt           *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`

	// Populated from upstream on sync; persisted in their own tables.
	Categories        []Category         `db:"-" json:"categories,omitempty"`
	ValueDestinations []ValueDestination `db:"-" json:"value_destinations,omitempty"`
}

// ValueDestination is one recipient of a podcast's value-for-value split.
type ValueDestination struct {
	ID          int64   `db:"id" json:"id"`
	PodcastID   int64   `db:"podcast_id" json:"podcast_id"`
	Name        string  `db:"name" json:"name"`
	Address     string  `db:"address" json:"address"`
	Type        string  `db:"type" json:"type"`
	Split       int     `db:"split" json:"split"`
	Fee         bool    `db:"fee" json:"fee"`
	CustomKey   *string `db:"custom_key" json:"custom_key,omitempty"`
	CustomValue *string `db:"custom_value" json:"custom_value,omitempty"`
}

// Category is an upstream directory category.
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
