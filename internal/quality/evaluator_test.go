package quality

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-curator/internal/models"
)

// memStore keeps alerts the way the partial unique index does: at most one
// open alert per title.
type memStore struct {
	failed, missingDest, stale, missingEnc int
	errs                                   map[string]error
	upsertErrs                             map[string]error

	alerts    []*models.QualityAlert
	nextID    int64
	now       time.Time
	failSince time.Time
}

func newMemStore() *memStore {
	return &memStore{errs: make(map[string]error), upsertErrs: make(map[string]error), now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (s *memStore) CountFailedSyncsSince(ctx context.Context, since time.Time) (int, error) {
	s.failSince = since
	return s.failed, s.errs[TitleFailedSyncs]
}

func (s *memStore) CountPodcastsMissingDestinations(ctx context.Context) (int, error) {
	return s.missingDest, s.errs[TitleMissingDestinations]
}

func (s *memStore) CountStalePodcasts(ctx context.Context, before time.Time) (int, error) {
	return s.stale, s.errs[TitleStalePodcasts]
}

func (s *memStore) CountEpisodesMissingEnclosure(ctx context.Context) (int, error) {
	return s.missingEnc, s.errs[TitleMissingEnclosures]
}

func (s *memStore) UpsertAlert(ctx context.Context, title string, severity models.Severity, body string) (*models.QualityAlert, error) {
	if err := s.upsertErrs[title]; err != nil {
		return nil, err
	}
	for _, a := range s.alerts {
		if a.Title == title && a.Status == models.AlertOpen {
			a.Severity, a.Body, a.UpdatedAt = severity, body, s.now
			cp := *a
			return &cp, nil
		}
	}
	s.nextID++
	a := &models.QualityAlert{ID: s.nextID, Title: title, Severity: severity, Body: body,
		Status: models.AlertOpen, RaisedAt: s.now, UpdatedAt: s.now}
	s.alerts = append(s.alerts, a)
	cp := *a
	return &cp, nil
}

func (s *memStore) ResolveAlertsExcept(ctx context.Context, keep []string) ([]models.QualityAlert, error) {
	kept := make(map[string]bool)
	for _, k := range keep {
		kept[k] = true
	}
	var out []models.QualityAlert
	for _, a := range s.alerts {
		if a.Status == models.AlertOpen && !kept[a.Title] {
			now := s.now
			a.Status, a.ResolvedAt = models.AlertResolved, &now
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) byTitle(title string) []*models.QualityAlert {
	var out []*models.QualityAlert
	for _, a := range s.alerts {
		if a.Title == title {
			out = append(out, a)
		}
	}
	return out
}

func newTestEvaluator(store *memStore) *Evaluator {
	e := NewEvaluator(store, Thresholds{}, log.New(io.Discard))
	e.now = func() time.Time { return store.now }
	return e
}

func titles(alerts []models.QualityAlert) []string {
	var out []string
	for _, a := range alerts {
		out = append(out, a.Title)
	}
	sort.Strings(out)
	return out
}

func TestAlertLifecycle(t *testing.T) {
	store := newMemStore()
	e := newTestEvaluator(store)

	store.failed = 2
	report, err := e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{TitleFailedSyncs}, titles(report.Raised))

	alerts := store.byTitle(TitleFailedSyncs)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertOpen, alerts[0].Status)
	assert.Nil(t, alerts[0].ResolvedAt)

	store.failed = 0
	report, err = e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Raised)
	assert.Equal(t, []string{TitleFailedSyncs}, titles(report.Resolved))

	assert.Equal(t, models.AlertResolved, alerts[0].Status)
	require.NotNil(t, alerts[0].ResolvedAt)
}

func TestReRaisingUpdatesOpenAlert(t *testing.T) {
	store := newMemStore()
	e := newTestEvaluator(store)

	store.failed = 1
	_, err := e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)

	store.failed = 9
	_, err = e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)

	alerts := store.byTitle(TitleFailedSyncs)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "9 sync jobs failed in the last 24h0m0s.", alerts[0].Body)
	assert.Equal(t, store.now.Add(-24*time.Hour), store.failSince)
}

func TestSeverityThresholds(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memStore)
		title string
		want  models.Severity
	}{
		{"failed warning", func(s *memStore) { s.failed = 5 }, TitleFailedSyncs, models.SeverityWarning},
		{"failed critical", func(s *memStore) { s.failed = 6 }, TitleFailedSyncs, models.SeverityCritical},
		{"missing destinations", func(s *memStore) { s.missingDest = 1 }, TitleMissingDestinations, models.SeverityWarning},
		{"stale info", func(s *memStore) { s.stale = 50 }, TitleStalePodcasts, models.SeverityInfo},
		{"stale warning", func(s *memStore) { s.stale = 51 }, TitleStalePodcasts, models.SeverityWarning},
		{"missing enclosure", func(s *memStore) { s.missingEnc = 3 }, TitleMissingEnclosures, models.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			tt.setup(store)

			report, err := newTestEvaluator(store).EvaluateAndPersist(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Raised, 1)
			assert.Equal(t, tt.title, report.Raised[0].Title)
			assert.Equal(t, tt.want, report.Raised[0].Severity)
		})
	}
}

func TestErroringCheckLeavesAlertAlone(t *testing.T) {
	store := newMemStore()
	e := newTestEvaluator(store)

	store.stale = 3
	store.missingEnc = 4
	_, err := e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)

	store.stale = 0
	store.missingEnc = 0
	store.errs[TitleStalePodcasts] = errors.New("connection reset")
	report, err := e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{TitleStalePodcasts}, report.Errored)
	assert.Equal(t, []string{TitleMissingEnclosures}, titles(report.Resolved))
	assert.Equal(t, models.AlertOpen, store.byTitle(TitleStalePodcasts)[0].Status)
}

func TestFailedAlertWriteDoesNotStopPass(t *testing.T) {
	store := newMemStore()
	e := newTestEvaluator(store)

	store.stale = 3
	store.missingEnc = 4
	_, err := e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)

	store.missingEnc = 0
	store.missingDest = 2
	store.upsertErrs[TitleStalePodcasts] = errors.New("connection reset")
	report, err := e.EvaluateAndPersist(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{TitleStalePodcasts}, report.Errored)
	assert.Equal(t, []string{TitleMissingDestinations}, titles(report.Raised))
	assert.Equal(t, []string{TitleMissingEnclosures}, titles(report.Resolved))
	assert.Equal(t, models.AlertOpen, store.byTitle(TitleStalePodcasts)[0].Status)
}

func TestResolvedTitleCanBeRaisedAgain(t *testing.T) {
	store := newMemStore()
	e := newTestEvaluator(store)

	for _, n := range []int{1, 0, 2} {
		store.missingDest = n
		_, err := e.EvaluateAndPersist(context.Background())
		require.NoError(t, err)
	}

	alerts := store.byTitle(TitleMissingDestinations)
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertResolved, alerts[0].Status)
	assert.Equal(t, models.AlertOpen, alerts[1].Status)
}
