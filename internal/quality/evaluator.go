// Package quality scans the store for data-quality anomalies after syncs and
// keeps the quality_alerts table in step with what it finds.
package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"podcast-curator/internal/models"
)

// Alert titles. An alert is identified by its title, so these must stay stable.
const (
	TitleFailedSyncs         = "Failed syncs"
	TitleMissingDestinations = "Missing value destinations"
	TitleStalePodcasts       = "Stale podcasts"
	TitleMissingEnclosures   = "Episodes missing enclosure"
)

const staleWarningCount = 50

type Store interface {
	CountFailedSyncsSince(ctx context.Context, since time.Time) (int, error)
	CountPodcastsMissingDestinations(ctx context.Context) (int, error)
	CountStalePodcasts(ctx context.Context, before time.Time) (int, error)
	CountEpisodesMissingEnclosure(ctx context.Context) (int, error)
	UpsertAlert(ctx context.Context, title string, severity models.Severity, body string) (*models.QualityAlert, error)
	ResolveAlertsExcept(ctx context.Context, keep []string) ([]models.QualityAlert, error)
}

type Thresholds struct {
	FailedWindow   time.Duration
	FailedCritical int
	StaleAfter     time.Duration
}

func (t Thresholds) withDefaults() Thresholds {
	if t.FailedWindow <= 0 {
		t.FailedWindow = 24 * time.Hour
	}
	if t.FailedCritical <= 0 {
		t.FailedCritical = 5
	}
	if t.StaleAfter <= 0 {
		t.StaleAfter = 7 * 24 * time.Hour
	}
	return t
}

// Finding is a raised condition before it is persisted.
type Finding struct {
	Title    string
	Severity models.Severity
	Body     string
}

// check returns nil when its condition does not hold.
type check struct {
	title string
	run   func(ctx context.Context) (*Finding, error)
}

// Report is the outcome of one evaluation pass.
type Report struct {
	Raised   []models.QualityAlert `json:"raised"`
	Resolved []models.QualityAlert `json:"resolved"`
	// Errored lists checks whose query failed; their alerts were left as they were.
	Errored []string `json:"errored,omitempty"`
}

func (r *Report) String() string {
	return fmt.Sprintf("quality: %d raised, %d resolved, %d checks errored",
		len(r.Raised), len(r.Resolved), len(r.Errored))
}

type Evaluator struct {
	store      Store
	thresholds Thresholds
	logger     *log.Logger
	now        func() time.Time
}

func NewEvaluator(store Store, thresholds Thresholds, logger *log.Logger) *Evaluator {
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{
		store:      store,
		thresholds: thresholds.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

func (e *Evaluator) checks() []check {
	return []check{
		{TitleFailedSyncs, e.failedSyncs},
		{TitleMissingDestinations, e.missingDestinations},
		{TitleStalePodcasts, e.stalePodcasts},
		{TitleMissingEnclosures, e.missingEnclosures},
	}
}

// EvaluateAndPersist runs every check, upserts an alert per raised finding and
// resolves open alerts whose condition no longer holds. A check that errors,
// or whose alert cannot be written, is skipped for this pass: its alert is
// neither raised nor resolved.
func (e *Evaluator) EvaluateAndPersist(ctx context.Context) (*Report, error) {
	report := &Report{}
	var keep []string

	for _, c := range e.checks() {
		finding, err := c.run(ctx)
		if err != nil {
			e.logger.Error("quality check failed", "check", c.title, "err", err)
			report.Errored = append(report.Errored, c.title)
			keep = append(keep, c.title)
			continue
		}
		if finding == nil {
			continue
		}
		alert, err := e.store.UpsertAlert(ctx, finding.Title, finding.Severity, finding.Body)
		if err != nil {
			e.logger.Error("failed to persist quality alert", "check", c.title, "err", err)
			report.Errored = append(report.Errored, c.title)
			keep = append(keep, c.title)
			continue
		}
		report.Raised = append(report.Raised, *alert)
		keep = append(keep, finding.Title)
	}

	resolved, err := e.store.ResolveAlertsExcept(ctx, keep)
	if err != nil {
		return nil, err
	}
	report.Resolved = resolved

	e.logger.Info(report.String())
	return report, nil
}

func (e *Evaluator) failedSyncs(ctx context.Context) (*Finding, error) {
	window := e.thresholds.FailedWindow
	n, err := e.store.CountFailedSyncsSince(ctx, e.now().Add(-window))
	if err != nil || n == 0 {
		return nil, err
	}
	severity := models.SeverityWarning
	if n > e.thresholds.FailedCritical {
		severity = models.SeverityCritical
	}
	return &Finding{
		Title:    TitleFailedSyncs,
		Severity: severity,
		Body:     fmt.Sprintf("%d sync jobs failed in the last %s.", n, window),
	}, nil
}

func (e *Evaluator) missingDestinations(ctx context.Context) (*Finding, error) {
	n, err := e.store.CountPodcastsMissingDestinations(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return &Finding{
		Title:    TitleMissingDestinations,
		Severity: models.SeverityWarning,
		Body:     fmt.Sprintf("%d podcasts declare a value model but have no value destinations.", n),
	}, nil
}

func (e *Evaluator) stalePodcasts(ctx context.Context) (*Finding, error) {
	after := e.thresholds.StaleAfter
	n, err := e.store.CountStalePodcasts(ctx, e.now().Add(-after))
	if err != nil || n == 0 {
		return nil, err
	}
	severity := models.SeverityInfo
	if n > staleWarningCount {
		severity = models.SeverityWarning
	}
	return &Finding{
		Title:    TitleStalePodcasts,
		Severity: severity,
		Body:     fmt.Sprintf("%d podcasts have not synced in %s.", n, after),
	}, nil
}

func (e *Evaluator) missingEnclosures(ctx context.Context) (*Finding, error) {
	n, err := e.store.CountEpisodesMissingEnclosure(ctx)
	if err != nil || n == 0 {
		return nil, err
	}
	return &Finding{
		Title:    TitleMissingEnclosures,
		Severity: models.SeverityWarning,
		Body:     fmt.Sprintf("%d episodes have no enclosure URL.", n),
	}, nil
}
