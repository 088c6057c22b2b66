package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"podcast-curator/internal/podcastindex"
)

const DefaultRecentMax = 500

// ErrAllFeedsFailed is returned with the summary when a sweep attempted at
// least one feed and none synced.
var ErrAllFeedsFailed = errors.New("every feed in the sweep failed")

// RecentSource lists recently changed items across all feeds.
type RecentSource interface {
	RecentChanges(ctx context.Context, q podcastindex.RecentQuery) ([]podcastindex.RecentItem, error)
}

// FeedSyncer syncs one feed by id. *Synchronizer implements it.
type FeedSyncer interface {
	SyncByFeedID(ctx context.Context, feedID int64) (*SyncResult, error)
}

type RecentOptions struct {
	Max   int
	Since int64
}

// FeedFailure is one feed that did not sync during a sweep.
type FeedFailure struct {
	FeedID int64  `json:"feed_id"`
	Error  string `json:"error"`
}

// RecentSummary aggregates a sweep. NextSince is what the caller should pass
// as Since on the next sweep.
type RecentSummary struct {
	FeedsSeen         int           `json:"feeds_seen"`
	FeedsProcessed    int           `json:"feeds_processed"`
	EpisodesProcessed int           `json:"episodes_processed"`
	NextSince         int64         `json:"next_since"`
	Failures          []FeedFailure `json:"failures,omitempty"`
	NotFound          []int64       `json:"not_found,omitempty"`
	Interrupted       bool          `json:"interrupted,omitempty"`
}

func (s *RecentSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "recent sweep: %d/%d feeds synced, %d episodes, next since %d",
		s.FeedsProcessed, s.FeedsSeen, s.EpisodesProcessed, s.NextSince)
	if n := len(s.Failures); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	if s.Interrupted {
		b.WriteString(", interrupted")
	}
	return b.String()
}

// Orchestrator drives the recent-data sweep. It carries no state between
// sweeps; the caller persists NextSince.
type Orchestrator struct {
	source RecentSource
	feeds  FeedSyncer
	max    int
	logger *log.Logger
}

func NewOrchestrator(source RecentSource, feeds FeedSyncer, defaultMax int, logger *log.Logger) *Orchestrator {
	if defaultMax <= 0 {
		defaultMax = DefaultRecentMax
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{source: source, feeds: feeds, max: defaultMax, logger: logger}
}

// SyncRecentData fetches the recent-changes listing once and syncs each feed
// it mentions, one feed at a time in first-seen order. A failing feed is
// recorded and the sweep moves on. ctx is only checked between feeds; on
// cancellation the summary so far is returned with ctx's error and NextSince
// left at opts.Since, since feeds after the interruption were never synced.
func (o *Orchestrator) SyncRecentData(ctx context.Context, opts RecentOptions) (*RecentSummary, error) {
	limit := opts.Max
	if limit <= 0 {
		limit = o.max
	}

	items, err := o.source.RecentChanges(ctx, podcastindex.RecentQuery{Max: limit, Since: opts.Since})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent changes: %w", err)
	}

	var order []int64
	seen := make(map[int64]bool)
	nextSince := opts.Since
	for _, it := range items {
		if ts := it.Timestamp(); ts > nextSince {
			nextSince = ts
		}
		if it.FeedID <= 0 || seen[it.FeedID] {
			continue
		}
		seen[it.FeedID] = true
		order = append(order, it.FeedID)
	}

	summary := &RecentSummary{FeedsSeen: len(order), NextSince: nextSince}
	o.logger.Info("starting recent sweep", "items", len(items), "feeds", len(order), "since", opts.Since)

	attempted := 0
	for _, feedID := range order {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true
			summary.NextSince = opts.Since
			o.logger.Warn("recent sweep interrupted", "done", attempted, "feeds", len(order))
			return summary, fmt.Errorf("recent sweep interrupted after %d of %d feeds: %w", attempted, len(order), err)
		}
		attempted++

		res, err := o.feeds.SyncByFeedID(ctx, feedID)
		switch {
		case err != nil:
			o.logger.Error("feed sync failed", "feed", feedID, "err", err)
			summary.Failures = append(summary.Failures, FeedFailure{FeedID: feedID, Error: err.Error()})
		case res == nil:
			summary.NotFound = append(summary.NotFound, feedID)
			summary.Failures = append(summary.Failures, FeedFailure{FeedID: feedID, Error: ErrNotFound.Error()})
		default:
			summary.FeedsProcessed++
			summary.EpisodesProcessed += res.EpisodeDelta
		}
	}

	o.logger.Info(summary.String())
	if attempted > 0 && summary.FeedsProcessed == 0 {
		return summary, ErrAllFeedsFailed
	}
	return summary, nil
}
