package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"podcast-curator/internal/ledger"
	"podcast-curator/internal/quality"
	"podcast-curator/internal/queue"
	"podcast-curator/internal/syncer"
)

type FeedSyncer interface {
	Sync(ctx context.Context, ref syncer.FeedRef) (*syncer.SyncResult, error)
	AddByFeedURL(ctx context.Context, feedURL string) (*syncer.SyncResult, error)
}

type RecentSyncer interface {
	SyncRecentData(ctx context.Context, opts syncer.RecentOptions) (*syncer.RecentSummary, error)
}

type QualityEvaluator interface {
	EvaluateAndPersist(ctx context.Context) (*quality.Report, error)
}

type FeedDispatcher interface {
	SyncFeed(ctx context.Context, ref syncer.FeedRef, podcastID *int64) (*queue.Dispatched, error)
}

type FeedLister interface {
	ListActiveFeedIDs(ctx context.Context) ([]int64, error)
}

// Invocation ties a run to the ledger row and queue job that requested it.
// Both are zero for synchronous runs.
type Invocation struct {
	SyncLogID  int64
	QueueJobID string
}

func (inv Invocation) entry(jobType ledger.JobType) ledger.Entry {
	return ledger.Entry{JobType: jobType, LogID: inv.SyncLogID, QueueJobID: inv.QueueJobID}
}

// Runner executes sync operations under the ledger. Queue handlers, the HTTP
// API and the CLI all go through it, so each invocation closes exactly one
// sync_logs row and is followed by a quality pass.
type Runner struct {
	feeds      FeedSyncer
	recent     RecentSyncer
	cursors    *syncer.CursorStore
	ledger     *ledger.Ledger
	evaluator  QualityEvaluator
	dispatcher FeedDispatcher
	lister     FeedLister
	logger     *log.Logger
}

type RunnerDeps struct {
	Feeds      FeedSyncer
	Recent     RecentSyncer
	Cursors    *syncer.CursorStore
	Ledger     *ledger.Ledger
	Evaluator  QualityEvaluator
	Dispatcher FeedDispatcher
	Lister     FeedLister
	Logger     *log.Logger
}

func NewRunner(d RunnerDeps) *Runner {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return &Runner{
		feeds:      d.Feeds,
		recent:     d.Recent,
		cursors:    d.Cursors,
		ledger:     d.Ledger,
		evaluator:  d.Evaluator,
		dispatcher: d.Dispatcher,
		lister:     d.Lister,
		logger:     d.Logger,
	}
}

// RunResult reports the ledger row a run closed alongside its outcome.
type RunResult[T any] struct {
	SyncLogID int64 `json:"sync_log_id"`
	Result    T     `json:"result"`
}

func jobTypeFor(ref syncer.FeedRef) ledger.JobType {
	switch ref.Kind {
	case syncer.FeedRefGUID:
		return ledger.JobSyncGUID
	case syncer.FeedRefURL:
		return ledger.JobSyncURL
	default:
		return ledger.JobSyncFeed
	}
}

// SyncFeed syncs one feed. A feed unknown upstream yields an error wrapping
// syncer.ErrNotFound.
func (r *Runner) SyncFeed(ctx context.Context, ref syncer.FeedRef, inv Invocation) (*RunResult[*syncer.SyncResult], error) {
	var res *syncer.SyncResult
	id, err := r.ledger.Track(ctx, inv.entry(jobTypeFor(ref)), func(ctx context.Context) (ledger.Outcome, error) {
		var err error
		res, err = r.feeds.Sync(ctx, ref)
		return syncOutcome(ref.String(), res, err)
	})
	r.postPass(ctx)
	return &RunResult[*syncer.SyncResult]{SyncLogID: id, Result: res}, err
}

// AddFeed registers a feed URL upstream and syncs it.
func (r *Runner) AddFeed(ctx context.Context, feedURL string, inv Invocation) (*RunResult[*syncer.SyncResult], error) {
	var res *syncer.SyncResult
	id, err := r.ledger.Track(ctx, inv.entry(ledger.JobAddFeed), func(ctx context.Context) (ledger.Outcome, error) {
		var err error
		res, err = r.feeds.AddByFeedURL(ctx, feedURL)
		return syncOutcome(feedURL, res, err)
	})
	r.postPass(ctx)
	return &RunResult[*syncer.SyncResult]{SyncLogID: id, Result: res}, err
}

func syncOutcome(target string, res *syncer.SyncResult, err error) (ledger.Outcome, error) {
	if err != nil {
		return ledger.Outcome{}, err
	}
	if res == nil {
		return ledger.Outcome{}, fmt.Errorf("%s: %w", target, syncer.ErrNotFound)
	}
	return ledger.Outcome{Message: res.Message(), PodcastID: &res.Podcast.ID}, nil
}

// SyncRecent runs a recent-data sweep. A zero since resumes from the stored
// sweep cursor, which is advanced to the summary's NextSince only when the
// sweep completed.
func (r *Runner) SyncRecent(ctx context.Context, limit int, since int64, inv Invocation) (*RunResult[*syncer.RecentSummary], error) {
	var summary *syncer.RecentSummary
	id, err := r.ledger.Track(ctx, inv.entry(ledger.JobSyncRecent), func(ctx context.Context) (ledger.Outcome, error) {
		if since == 0 {
			stored, _, err := r.cursors.Get(ctx, syncer.RecentCursorKey)
			if err != nil {
				return ledger.Outcome{}, fmt.Errorf("failed to read sweep cursor: %w", err)
			}
			since = stored
		}

		var err error
		summary, err = r.recent.SyncRecentData(ctx, syncer.RecentOptions{Max: limit, Since: since})
		if err != nil {
			out := ledger.Outcome{}
			if summary != nil {
				out.Message, out.Details = summary.String(), summary
			}
			return out, err
		}

		if summary.NextSince > 0 {
			if _, err := r.cursors.Advance(ctx, syncer.RecentCursorKey, summary.NextSince); err != nil {
				return ledger.Outcome{Details: summary}, fmt.Errorf("failed to store sweep cursor: %w", err)
			}
		}
		return ledger.Outcome{Message: summary.String()}, nil
	})
	r.postPass(ctx)
	return &RunResult[*syncer.RecentSummary]{SyncLogID: id, Result: summary}, err
}

// SyncAllSummary reports a fan-out of per-podcast sync jobs.
type SyncAllSummary struct {
	Podcasts int `json:"podcasts"`
	Queued   int `json:"queued"`
}

// ErrNoQueue is returned by SyncAll when the runner was built without a
// dispatcher.
var ErrNoQueue = errors.New("no task queue configured")

// SyncAll queues a sync job for every live podcast. A podcast that fails to
// enqueue is logged and skipped.
func (r *Runner) SyncAll(ctx context.Context, inv Invocation) (*RunResult[*SyncAllSummary], error) {
	if r.dispatcher == nil {
		return nil, ErrNoQueue
	}
	summary := &SyncAllSummary{}
	id, err := r.ledger.Track(ctx, inv.entry(ledger.JobSyncAll), func(ctx context.Context) (ledger.Outcome, error) {
		feedIDs, err := r.lister.ListActiveFeedIDs(ctx)
		if err != nil {
			return ledger.Outcome{}, fmt.Errorf("failed to list podcasts: %w", err)
		}
		summary.Podcasts = len(feedIDs)

		for _, feedID := range feedIDs {
			if _, err := r.dispatcher.SyncFeed(ctx, syncer.RefByID(feedID), nil); err != nil {
				r.logger.Errorf("failed to enqueue sync for feed %d: %v", feedID, err)
				continue
			}
			summary.Queued++
		}

		msg := fmt.Sprintf("queued %d of %d podcasts", summary.Queued, summary.Podcasts)
		if summary.Podcasts > 0 && summary.Queued == 0 {
			return ledger.Outcome{Message: msg}, errors.New(msg)
		}
		return ledger.Outcome{Message: msg}, nil
	})
	return &RunResult[*SyncAllSummary]{SyncLogID: id, Result: summary}, err
}

// EvaluateQuality runs the evaluator as a ledger-tracked job of its own.
func (r *Runner) EvaluateQuality(ctx context.Context, inv Invocation) (*RunResult[*quality.Report], error) {
	var report *quality.Report
	id, err := r.ledger.Track(ctx, inv.entry(ledger.JobQualityEvaluate), func(ctx context.Context) (ledger.Outcome, error) {
		var err error
		report, err = r.evaluator.EvaluateAndPersist(ctx)
		if err != nil {
			return ledger.Outcome{}, err
		}
		return ledger.Outcome{Message: report.String()}, nil
	})
	return &RunResult[*quality.Report]{SyncLogID: id, Result: report}, err
}

// postPass runs the evaluator after a sync. Its failures are logged only; the
// sync's own ledger row is already closed.
func (r *Runner) postPass(ctx context.Context) {
	if r.evaluator == nil {
		return
	}
	if _, err := r.evaluator.EvaluateAndPersist(context.WithoutCancel(ctx)); err != nil {
		r.logger.Error("quality post-pass failed", "err", err)
	}
}
