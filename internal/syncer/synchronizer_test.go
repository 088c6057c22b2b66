package syncer

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
)

func newTestSynchronizer(source *fakeSource, store *memStore) *Synchronizer {
	return New(source, store, Options{Logger: log.New(io.Discard)})
}

func sampleFeed() podcastindex.Feed {
	return podcastindex.Feed{
		ID:             42,
		PodcastGUID:    "917393e3-1b1e-5cef-ace4-edaa54e1f810",
		Title:          "Podcasting 2.0",
		URL:            "https://feeds.example.com/pc20.xml",
		Author:         "Adam & Dave",
		LastUpdateTime: 1700000000,
		LastCrawlTime:  0,
		Dead:           0,
		Locked:         1,
		Categories:     map[string]string{"9": "Leisure", "55": "News", "bogus": "Ignored"},
		Value: &podcastindex.Value{
			Model: podcastindex.ValueModel{Type: "lightning", Method: "keysend", Suggested: "0.00000005000"},
			Destinations: []podcastindex.ValueDestination{
				{Name: "Host", Address: "03ae9f91", Type: "node", Split: 95},
				{Name: "Empty", Address: "  ", Type: "node", Split: 1},
				{Name: "App", Address: "02d5c1bf", Type: "node", Split: 5, Fee: true, CustomKey: "696969"},
			},
		},
	}
}

func TestSyncByFeedIDNotFound(t *testing.T) {
	source := newFakeSource()
	store := newMemStore()

	res, err := newTestSynchronizer(source, store).SyncByFeedID(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, store.podcasts)
	assert.Empty(t, source.calls)
}

func TestSyncByFeedIDMapsFeed(t *testing.T) {
	source := newFakeSource()
	store := newMemStore()
	source.addFeed(sampleFeed(),
		podcastindex.Episode{ID: 1, GUID: "a", Title: "One", DatePublished: 1700000100, Explicit: 1},
		podcastindex.Episode{ID: 2, Title: "Two", DatePublished: 1700000200, Value: &podcastindex.Value{
			Model: podcastindex.ValueModel{Type: "lightning", Method: "keysend"},
		}},
	)

	res, err := newTestSynchronizer(source, store).SyncByFeedID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, res)

	p := res.Podcast
	assert.Equal(t, int64(42), p.FeedID)
	require.NotNil(t, p.PodcastGUID)
	assert.Equal(t, "917393e3-1b1e-5cef-ace4-edaa54e1f810", *p.PodcastGUID)
	require.NotNil(t, p.LastUpdateTime)
	assert.True(t, p.LastUpdateTime.Equal(time.Unix(1700000000, 0)))
	assert.Nil(t, p.LastCrawlTime)
	assert.False(t, p.Dead)
	assert.True(t, p.Locked)
	assert.Equal(t, "lightning", p.ValueModelType)

	assert.Equal(t, 2, res.EpisodeDelta)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, int64(1700000200), *res.Cursor)
	assert.Equal(t, 1, store.synced[p.ID])

	dests := store.destinations[p.ID]
	require.Len(t, dests, 2)
	assert.Equal(t, "Host", dests[0].Name)
	assert.Nil(t, dests[0].CustomKey)
	require.NotNil(t, dests[1].CustomKey)
	assert.Equal(t, "696969", *dests[1].CustomKey)

	cats := store.categories[p.ID]
	require.Len(t, cats, 2)
	assert.Equal(t, int64(9), cats[0].ID)
	assert.Equal(t, int64(55), cats[1].ID)

	eps := make(map[string]models.Episode)
	for _, e := range store.podcastEpisodes(p.ID) {
		eps[e.GUID] = e
	}
	require.Len(t, eps, 2)
	assert.True(t, eps["a"].Explicit)
	require.Contains(t, eps, "pi-2")
	assert.Equal(t, "keysend", eps["pi-2"].ValueModelMethod)
	assert.JSONEq(t, `{"model":{"type":"lightning","method":"keysend","suggested":""},"destinations":null}`, string(eps["pi-2"].ValueJSON))
}

func TestSyncByFeedIDResyncKeepsPodcastRow(t *testing.T) {
	source := newFakeSource()
	store := newMemStore()
	source.addFeed(sampleFeed(), podcastindex.Episode{ID: 1, GUID: "a", DatePublished: 1700000100})
	s := newTestSynchronizer(source, store)

	first, err := s.SyncByFeedID(context.Background(), 42)
	require.NoError(t, err)
	second, err := s.SyncByFeedID(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, first.Podcast.ID, second.Podcast.ID)
	assert.Len(t, store.podcasts, 1)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, int64(1700000100), source.calls[1].Query.Since)
}

func TestSyncByFeedIDPropagatesUpstreamErrors(t *testing.T) {
	source := newFakeSource()
	store := newMemStore()
	source.feedErrs[42] = &podcastindex.APIError{Endpoint: "/podcasts/byfeedid", StatusCode: 401}

	res, err := newTestSynchronizer(source, store).SyncByFeedID(context.Background(), 42)
	assert.Nil(t, res)
	var apiErr *podcastindex.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsAuth())
}

func TestSecondaryEntryPointsResolveToFeedID(t *testing.T) {
	feed := sampleFeed()

	tests := []struct {
		name string
		run  func(*Synchronizer) (*SyncResult, error)
		want bool
	}{
		{"by guid", func(s *Synchronizer) (*SyncResult, error) {
			return s.SyncByGUID(context.Background(), feed.PodcastGUID)
		}, true},
		{"by url", func(s *Synchronizer) (*SyncResult, error) {
			return s.SyncByFeedURL(context.Background(), feed.URL)
		}, true},
		{"add by url", func(s *Synchronizer) (*SyncResult, error) {
			return s.AddByFeedURL(context.Background(), feed.URL)
		}, true},
		{"ref by id", func(s *Synchronizer) (*SyncResult, error) {
			return s.Sync(context.Background(), RefByID(42))
		}, true},
		{"unknown guid", func(s *Synchronizer) (*SyncResult, error) {
			return s.Sync(context.Background(), RefByGUID("nope"))
		}, false},
		{"unknown url", func(s *Synchronizer) (*SyncResult, error) {
			return s.Sync(context.Background(), RefByURL("https://nope.example.com/rss"))
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newFakeSource()
			store := newMemStore()
			source.addFeed(feed)

			res, err := tt.run(newTestSynchronizer(source, store))
			require.NoError(t, err)
			if !tt.want {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, int64(42), res.Podcast.FeedID)
		})
	}
}

func TestAddByFeedURLRegistrationFailure(t *testing.T) {
	source := newFakeSource()
	store := newMemStore()

	_, err := newTestSynchronizer(source, store).AddByFeedURL(context.Background(), "https://unknown.example.com/rss")
	var apiErr *podcastindex.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Equal(t, []string{"https://unknown.example.com/rss"}, source.registered)
}

func TestSyncResultMessage(t *testing.T) {
	source := newFakeSource()
	store := newMemStore()
	source.addFeed(sampleFeed(), podcastindex.Episode{ID: 1, GUID: "a", DatePublished: 1})

	res, err := newTestSynchronizer(source, store).SyncByFeedID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, `synced feed 42 ("Podcasting 2.0"): 1 episodes, 1 new, 0 updated`, res.Message())
}
