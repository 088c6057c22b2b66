package syncer

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"podcast-curator/internal/db"
	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
)

type episodeCall struct {
	FeedID int64
	Query  podcastindex.EpisodeQuery
}

type fakeSource struct {
	mu sync.Mutex

	feeds    map[int64]*podcastindex.Feed
	feedErrs map[int64]error
	byGUID   map[string]int64
	byURL    map[string]int64
	episodes map[int64][]podcastindex.Episode
	// episodesFn overrides episodes when set.
	episodesFn  func(feedID int64, q podcastindex.EpisodeQuery) ([]podcastindex.Episode, error)
	episodesErr error
	recent      []podcastindex.RecentItem
	registered  []string
	calls       []episodeCall
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		feeds:    make(map[int64]*podcastindex.Feed),
		feedErrs: make(map[int64]error),
		byGUID:   make(map[string]int64),
		byURL:    make(map[string]int64),
		episodes: make(map[int64][]podcastindex.Episode),
	}
}

func (f *fakeSource) addFeed(feed podcastindex.Feed, episodes ...podcastindex.Episode) {
	f.feeds[feed.ID] = &feed
	f.episodes[feed.ID] = episodes
	if feed.PodcastGUID != "" {
		f.byGUID[feed.PodcastGUID] = feed.ID
	}
	if feed.URL != "" {
		f.byURL[feed.URL] = feed.ID
	}
}

func (f *fakeSource) FeedByID(ctx context.Context, id int64) (*podcastindex.Feed, error) {
	if err := f.feedErrs[id]; err != nil {
		return nil, err
	}
	feed, ok := f.feeds[id]
	if !ok {
		return nil, nil
	}
	cp := *feed
	return &cp, nil
}

func (f *fakeSource) FeedByGUID(ctx context.Context, guid string) (*podcastindex.Feed, error) {
	id, ok := f.byGUID[guid]
	if !ok {
		return nil, nil
	}
	return f.FeedByID(ctx, id)
}

func (f *fakeSource) FeedByURL(ctx context.Context, feedURL string) (*podcastindex.Feed, error) {
	id, ok := f.byURL[feedURL]
	if !ok {
		return nil, nil
	}
	return f.FeedByID(ctx, id)
}

func (f *fakeSource) RegisterByURL(ctx context.Context, feedURL string) (*podcastindex.Registration, error) {
	f.registered = append(f.registered, feedURL)
	id, ok := f.byURL[feedURL]
	if !ok {
		return nil, &podcastindex.APIError{Endpoint: "/add/byfeedurl", StatusCode: 400}
	}
	return &podcastindex.Registration{FeedID: id, Existed: true}, nil
}

func (f *fakeSource) EpisodesByFeedID(ctx context.Context, feedID int64, q podcastindex.EpisodeQuery) ([]podcastindex.Episode, error) {
	f.mu.Lock()
	f.calls = append(f.calls, episodeCall{FeedID: feedID, Query: q})
	f.mu.Unlock()

	if f.episodesErr != nil {
		return nil, f.episodesErr
	}
	if f.episodesFn != nil {
		return f.episodesFn(feedID, q)
	}
	items := f.episodes[feedID]
	if q.Max > 0 && len(items) > q.Max {
		items = items[:q.Max]
	}
	return items, nil
}

func (f *fakeSource) RecentChanges(ctx context.Context, q podcastindex.RecentQuery) ([]podcastindex.RecentItem, error) {
	return f.recent, nil
}

// memStore mimics the postgres store's upsert and cursor semantics.
type memStore struct {
	mu sync.Mutex

	nextPodcastID int64
	nextEpisodeID int64
	podcasts      map[int64]*models.Podcast
	episodes      map[int64]*models.Episode
	destinations  map[int64][]models.ValueDestination
	categories    map[int64][]models.Category
	cursors       map[string]string
	synced        map[int64]int

	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{
		podcasts:     make(map[int64]*models.Podcast),
		episodes:     make(map[int64]*models.Episode),
		destinations: make(map[int64][]models.ValueDestination),
		categories:   make(map[int64][]models.Category),
		cursors:      make(map[string]string),
		synced:       make(map[int64]int),
	}
}

func (s *memStore) UpsertPodcast(ctx context.Context, p *models.Podcast) (*models.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *p
	row.Categories, row.ValueDestinations = nil, nil
	if existing, ok := s.podcasts[p.FeedID]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		row.LastSyncedAt = existing.LastSyncedAt
	} else {
		s.nextPodcastID++
		row.ID = s.nextPodcastID
		row.CreatedAt = time.Now()
	}
	row.UpdatedAt = time.Now()
	s.podcasts[p.FeedID] = &row
	cp := row
	return &cp, nil
}

func (s *memStore) ReplaceValueDestinations(ctx context.Context, podcastID int64, dests []models.ValueDestination) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations[podcastID] = append([]models.ValueDestination(nil), dests...)
	return nil
}

func (s *memStore) ReplaceCategories(ctx context.Context, podcastID int64, cats []models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[podcastID] = append([]models.Category(nil), cats...)
	return nil
}

func (s *memStore) MarkPodcastSynced(ctx context.Context, podcastID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[podcastID]++
	return nil
}

func (s *memStore) ExistingEpisodeKeys(ctx context.Context, podcastID int64) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make(map[string]struct{})
	for _, e := range s.episodes {
		if e.PodcastID == podcastID {
			keys[e.GUID] = struct{}{}
		}
	}
	return keys, nil
}

// UpsertEpisode follows the postgres store: a lookup and then a separate
// insert, so concurrent writers of the same episode can race into the
// unique constraints.
func (s *memStore) UpsertEpisode(ctx context.Context, e *models.Episode) (*models.Episode, bool, error) {
	if s.upsertErr != nil {
		return nil, false, s.upsertErr
	}

	s.mu.Lock()
	found := s.findEpisode(e)
	s.mu.Unlock()

	if found != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.overwriteEpisode(found, e), false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.episodes {
		if row.PodcastID == e.PodcastID && row.GUID == e.GUID {
			return s.overwriteEpisode(row, e), false, nil
		}
	}
	if e.ExternalID != nil {
		for _, row := range s.episodes {
			if row.ExternalID != nil && *row.ExternalID == *e.ExternalID {
				return nil, false, errDuplicateExternalID
			}
		}
	}

	s.nextEpisodeID++
	row := *e
	row.ID = s.nextEpisodeID
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	s.episodes[row.ID] = &row
	cp := row
	return &cp, true, nil
}

func (s *memStore) findEpisode(e *models.Episode) *models.Episode {
	if e.ExternalID != nil {
		for _, row := range s.episodes {
			if row.ExternalID != nil && *row.ExternalID == *e.ExternalID {
				return row
			}
		}
	}
	for _, row := range s.episodes {
		if row.PodcastID == e.PodcastID && row.GUID == e.GUID {
			return row
		}
	}
	return nil
}

func (s *memStore) overwriteEpisode(found, e *models.Episode) *models.Episode {
	updated := *e
	updated.ID = found.ID
	updated.GUID = found.GUID
	updated.CreatedAt = found.CreatedAt
	if found.ExternalID != nil {
		updated.ExternalID = found.ExternalID
	}
	updated.UpdatedAt = time.Now()
	s.episodes[found.ID] = &updated
	cp := updated
	return &cp
}

func (s *memStore) GetCursor(ctx context.Context, key string) (*models.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cursors[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &models.SyncCursor{Key: key, Value: v}, nil
}

func (s *memStore) AdvanceCursor(ctx context.Context, key string, value int64) (*models.SyncCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.cursors[key]; ok {
		prev, err := strconv.ParseInt(cur, 10, 64)
		if err != nil {
			return nil, err
		}
		if prev > value {
			value = prev
		}
	}
	s.cursors[key] = strconv.FormatInt(value, 10)
	return &models.SyncCursor{Key: key, Value: s.cursors[key]}, nil
}

func (s *memStore) seedEpisode(e models.Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEpisodeID++
	e.ID = s.nextEpisodeID
	s.episodes[e.ID] = &e
}

func (s *memStore) podcastEpisodes(podcastID int64) []models.Episode {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Episode
	for _, e := range s.episodes {
		if e.PodcastID == podcastID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	errUpstream            = errors.New("upstream exploded")
	errDuplicateExternalID = errors.New(`duplicate key value violates unique constraint "episodes_external_id_key"`)
)

func ptr[T any](v T) *T { return &v }
