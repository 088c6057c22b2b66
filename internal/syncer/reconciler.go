package syncer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
)

const (
	DefaultBatchSize  = 1000
	DefaultMaxBatches = 5
	DefaultChunkSize  = 100
)

// Limits bounds the work of one reconciliation pass.
type Limits struct {
	// BatchSize is the per-request episode cap.
	BatchSize int
	// MaxBatches is the request ceiling per pass. A feed with more new
	// episodes than BatchSize*MaxBatches needs several passes.
	MaxBatches int
	// ChunkSize is how many upserts run concurrently.
	ChunkSize int
}

func (l Limits) withDefaults() Limits {
	if l.BatchSize <= 0 {
		l.BatchSize = DefaultBatchSize
	}
	if l.MaxBatches <= 0 {
		l.MaxBatches = DefaultMaxBatches
	}
	if l.ChunkSize <= 0 {
		l.ChunkSize = DefaultChunkSize
	}
	return l
}

// EpisodeSource lists a feed's episodes.
type EpisodeSource interface {
	EpisodesByFeedID(ctx context.Context, feedID int64, q podcastindex.EpisodeQuery) ([]podcastindex.Episode, error)
}

// EpisodeStore persists episodes. UpsertEpisode reports whether it inserted.
type EpisodeStore interface {
	ExistingEpisodeKeys(ctx context.Context, podcastID int64) (map[string]struct{}, error)
	UpsertEpisode(ctx context.Context, e *models.Episode) (*models.Episode, bool, error)
}

// ReconcileResult is the outcome of one pass. Cursor is the value stored
// after the pass, nil when the feed has never produced a dated episode.
type ReconcileResult struct {
	Upserted  []models.Episode
	Inserted  int
	Updated   int
	Skipped   int
	Truncated bool
	Cursor    *int64
}

type Reconciler struct {
	source  EpisodeSource
	store   EpisodeStore
	cursors *CursorStore
	limits  Limits
	logger  *log.Logger
}

func NewReconciler(source EpisodeSource, store EpisodeStore, cursors *CursorStore, limits Limits, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		source:  source,
		store:   store,
		cursors: cursors,
		limits:  limits.withDefaults(),
		logger:  logger,
	}
}

// Reconcile fetches the feed's episodes newer than since, upserts every one of
// them and advances the feed cursor to the newest publish time below which
// nothing is missing. A nil since reads the stored cursor. Nothing is written
// to the cursor unless every fetch and every upsert succeeded.
func (r *Reconciler) Reconcile(ctx context.Context, podcastID, feedID int64, since *int64) (*ReconcileResult, error) {
	key := FeedCursorKey(feedID)

	var prior int64
	var hasPrior bool
	if since != nil {
		prior, hasPrior = *since, true
	} else {
		v, ok, err := r.cursors.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read cursor for feed %d: %w", feedID, err)
		}
		prior, hasPrior = v, ok
	}

	page, err := r.fetch(ctx, feedID, prior)
	if err != nil {
		return nil, err
	}

	items, skipped := dedupeByKey(page.items)
	if skipped > 0 {
		r.logger.Warnf("feed %d: skipped %d episodes with neither guid nor id", feedID, skipped)
	}

	existing, err := r.store.ExistingEpisodeKeys(ctx, podcastID)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode keys for podcast %d: %w", podcastID, err)
	}
	var fresh int
	for _, it := range items {
		if _, ok := existing[it.identity.Key()]; !ok {
			fresh++
		}
	}
	r.logger.Debug("reconciling episodes", "feed", feedID, "fetched", len(page.items),
		"new", fresh, "existing", len(items)-fresh)

	result := &ReconcileResult{Skipped: skipped, Truncated: page.truncated}
	if err := r.upsertAll(ctx, podcastID, items, result); err != nil {
		return nil, err
	}

	newest := page.cursor
	switch {
	case newest > 0 && (!hasPrior || newest > prior):
		stored, err := r.cursors.Advance(ctx, key, newest)
		if err != nil {
			return nil, fmt.Errorf("failed to advance cursor for feed %d: %w", feedID, err)
		}
		result.Cursor = &stored
	case hasPrior:
		result.Cursor = &prior
	}

	if page.truncated {
		r.logger.Warnf("feed %d: fetch stopped short after at most %d batches, remaining episodes wait for the next pass", feedID, r.limits.MaxBatches)
	}
	return result, nil
}

// fetched is what one pass pulled from the directory. Every episode published
// after since and at or before cursor is in items.
type fetched struct {
	items     []podcastindex.Episode
	cursor    int64
	truncated bool
}

// fetch pages through the feed without trusting the directory's ordering. A
// full batch in ascending publish order is followed by a request starting at
// its newest publish time. Any other full batch only proves the newest part of
// the window arrived, so the same window is requested again with a larger cap
// until a short batch shows it is complete. The cursor never moves past a gap.
func (r *Reconciler) fetch(ctx context.Context, feedID, since int64) (*fetched, error) {
	out := &fetched{cursor: since}
	size := r.limits.BatchSize
	var window []podcastindex.Episode

	for batch := 0; batch < r.limits.MaxBatches; batch++ {
		items, err := r.source.EpisodesByFeedID(ctx, feedID, podcastindex.EpisodeQuery{
			Max:   size,
			Since: out.cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch episodes for feed %d: %w", feedID, err)
		}

		if window != nil && len(items) <= len(window) {
			// The directory caps the batch below what was asked for.
			out.items = append(out.items, items...)
			out.truncated = true
			return out, nil
		}
		if len(items) < size {
			out.items = append(out.items, items...)
			out.cursor = max(out.cursor, newestPublished(items))
			return out, nil
		}
		if !publishedAscending(items) {
			window = items
			size += r.limits.BatchSize
			continue
		}

		window = nil
		size = r.limits.BatchSize
		out.items = append(out.items, items...)
		next := newestPublished(items)
		if next <= out.cursor {
			out.truncated = true
			return out, nil
		}
		out.cursor = next
	}

	out.items = append(out.items, window...)
	out.truncated = true
	return out, nil
}

func newestPublished(items []podcastindex.Episode) int64 {
	var newest int64
	for _, ep := range items {
		newest = max(newest, ep.DatePublished)
	}
	return newest
}

func publishedAscending(items []podcastindex.Episode) bool {
	for i := 1; i < len(items); i++ {
		if items[i].DatePublished < items[i-1].DatePublished {
			return false
		}
	}
	return true
}

// upsertAll writes items in chunks: concurrently inside a chunk, one chunk
// after another.
func (r *Reconciler) upsertAll(ctx context.Context, podcastID int64, items []resolvedEpisode, result *ReconcileResult) error {
	upserted := make([]models.Episode, len(items))
	inserted := make([]bool, len(items))

	for start := 0; start < len(items); start += r.limits.ChunkSize {
		end := min(start+r.limits.ChunkSize, len(items))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.limits.ChunkSize)
		for i := start; i < end; i++ {
			it := items[i]
			g.Go(func() error {
				row, ins, err := r.store.UpsertEpisode(gctx, episodeFromUpstream(podcastID, it.identity, it.episode))
				if err != nil {
					return fmt.Errorf("failed to upsert episode %s: %w", it.identity.Key(), err)
				}
				upserted[i] = *row
				inserted[i] = ins
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	result.Upserted = upserted
	for _, ins := range inserted {
		if ins {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return nil
}

