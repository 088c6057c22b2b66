// Package syncer reconciles the upstream podcast directory into the local
// store: feed metadata, episodes, and the per-feed cursors that bound each
// incremental fetch.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
)

// ErrNotFound marks a feed the directory does not know. Synchronizer methods
// report it as a nil result; callers that must fail a ledger entry wrap it.
var ErrNotFound = errors.New("not found")

// FeedSource is the part of the directory client the synchronizer consumes.
type FeedSource interface {
	EpisodeSource
	FeedByID(ctx context.Context, id int64) (*podcastindex.Feed, error)
	FeedByGUID(ctx context.Context, guid string) (*podcastindex.Feed, error)
	FeedByURL(ctx context.Context, feedURL string) (*podcastindex.Feed, error)
	RegisterByURL(ctx context.Context, feedURL string) (*podcastindex.Registration, error)
}

// Store is the persistence the synchronizer needs.
type Store interface {
	EpisodeStore
	CursorBackend
	UpsertPodcast(ctx context.Context, p *models.Podcast) (*models.Podcast, error)
	ReplaceValueDestinations(ctx context.Context, podcastID int64, dests []models.ValueDestination) error
	ReplaceCategories(ctx context.Context, podcastID int64, cats []models.Category) error
	MarkPodcastSynced(ctx context.Context, podcastID int64) error
}

type Options struct {
	Limits Limits
	Logger *log.Logger
}

// SyncResult describes one podcast sync. EpisodeDelta counts episodes touched
// by this pass, not the podcast's total.
type SyncResult struct {
	Podcast      *models.Podcast
	EpisodeDelta int
	Inserted     int
	Updated      int
	Truncated    bool
	Cursor       *int64
}

// Message is the human-readable summary stored on the ledger.
func (r *SyncResult) Message() string {
	msg := fmt.Sprintf("synced feed %d (%q): %d episodes, %d new, %d updated",
		r.Podcast.FeedID, r.Podcast.Title, r.EpisodeDelta, r.Inserted, r.Updated)
	if r.Truncated {
		msg += ", more pending"
	}
	return msg
}

// Synchronizer upserts a podcast and reconciles its episodes. Every entry
// point resolves to a feed id and goes through SyncByFeedID.
type Synchronizer struct {
	source     FeedSource
	store      Store
	reconciler *Reconciler
	logger     *log.Logger
}

func New(source FeedSource, store Store, opts Options) *Synchronizer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Synchronizer{
		source:     source,
		store:      store,
		reconciler: NewReconciler(source, store, NewCursorStore(store), opts.Limits, logger),
		logger:     logger,
	}
}

// SyncByFeedID syncs one feed. It returns nil and no error when the directory
// reports the feed as missing.
func (s *Synchronizer) SyncByFeedID(ctx context.Context, feedID int64) (*SyncResult, error) {
	feed, err := s.source.FeedByID(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %d: %w", feedID, err)
	}
	if feed == nil {
		s.logger.Warnf("feed %d not found upstream", feedID)
		return nil, nil
	}
	return s.syncFeed(ctx, feed)
}

// SyncByGUID resolves a podcast:guid to its feed and syncs it.
func (s *Synchronizer) SyncByGUID(ctx context.Context, guid string) (*SyncResult, error) {
	feed, err := s.source.FeedByGUID(ctx, guid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up guid %s: %w", guid, err)
	}
	if feed == nil {
		return nil, nil
	}
	return s.SyncByFeedID(ctx, feed.ID)
}

// SyncByFeedURL resolves a subscribe URL to its feed and syncs it.
func (s *Synchronizer) SyncByFeedURL(ctx context.Context, feedURL string) (*SyncResult, error) {
	feed, err := s.source.FeedByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to look up url %s: %w", feedURL, err)
	}
	if feed == nil {
		return nil, nil
	}
	return s.SyncByFeedID(ctx, feed.ID)
}

// AddByFeedURL registers feedURL with the directory, then syncs the feed id it
// was given.
func (s *Synchronizer) AddByFeedURL(ctx context.Context, feedURL string) (*SyncResult, error) {
	reg, err := s.source.RegisterByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", feedURL, err)
	}
	s.logger.Info("registered feed", "url", feedURL, "feed", reg.FeedID, "existed", reg.Existed)
	return s.SyncByFeedID(ctx, reg.FeedID)
}

// Sync dispatches on the kind of ref.
func (s *Synchronizer) Sync(ctx context.Context, ref FeedRef) (*SyncResult, error) {
	switch ref.Kind {
	case FeedRefGUID:
		return s.SyncByGUID(ctx, ref.GUID)
	case FeedRefURL:
		return s.SyncByFeedURL(ctx, ref.URL)
	default:
		return s.SyncByFeedID(ctx, ref.ID)
	}
}

func (s *Synchronizer) syncFeed(ctx context.Context, feed *podcastindex.Feed) (*SyncResult, error) {
	mapped := podcastFromFeed(feed)

	podcast, err := s.store.UpsertPodcast(ctx, mapped)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert podcast for feed %d: %w", feed.ID, err)
	}
	if err := s.store.ReplaceValueDestinations(ctx, podcast.ID, mapped.ValueDestinations); err != nil {
		return nil, fmt.Errorf("failed to store value destinations for feed %d: %w", feed.ID, err)
	}
	if err := s.store.ReplaceCategories(ctx, podcast.ID, mapped.Categories); err != nil {
		return nil, fmt.Errorf("failed to store categories for feed %d: %w", feed.ID, err)
	}
	podcast.ValueDestinations = mapped.ValueDestinations
	podcast.Categories = mapped.Categories

	rec, err := s.reconciler.Reconcile(ctx, podcast.ID, feed.ID, nil)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkPodcastSynced(ctx, podcast.ID); err != nil {
		return nil, fmt.Errorf("failed to mark podcast %d synced: %w", podcast.ID, err)
	}

	res := &SyncResult{
		Podcast:      podcast,
		EpisodeDelta: len(rec.Upserted),
		Inserted:     rec.Inserted,
		Updated:      rec.Updated,
		Truncated:    rec.Truncated,
		Cursor:       rec.Cursor,
	}
	s.logger.Info("synced feed", "feed", feed.ID, "episodes", res.EpisodeDelta,
		"new", res.Inserted, "updated", res.Updated)
	return res, nil
}
