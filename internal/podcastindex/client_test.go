package podcastindex

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxRetries int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(Options{
		BaseURL:     server.URL,
		APIKey:      "key",
		APISecret:   "secret",
		MaxRetries:  maxRetries,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	})
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestClientSignsRequests(t *testing.T) {
	sum := sha1.Sum([]byte("keysecret1700000000"))
	want := hex.EncodeToString(sum[:])

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Auth-Key"))
		assert.Equal(t, "1700000000", r.Header.Get("X-Auth-Date"))
		assert.Equal(t, want, r.Header.Get("Authorization"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"status":"true","feed":{"id":42,"title":"Show","url":"https://example.com/rss"}}`)
	}, 0)

	feed, err := c.FeedByID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, feed)
	assert.Equal(t, int64(42), feed.ID)
	assert.Equal(t, "Show", feed.Title)
}

func TestFeedLookupNotFound(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"empty feed array", http.StatusOK, `{"status":"true","feed":[]}`},
		{"status false", http.StatusOK, `{"status":"false","description":"Feed not found"}`},
		{"http 404", http.StatusNotFound, `not found`},
		{"zero id", http.StatusOK, `{"status":"true","feed":{"id":0}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.payload)
			}, 0)

			feed, err := c.FeedByID(context.Background(), 7)
			assert.NoError(t, err)
			assert.Nil(t, feed)
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status":"true","items":[{"id":1,"feedId":42,"datePublished":1700000500}]}`)
	}, 3)

	items, err := c.EpisodesByFeedID(context.Background(), 42, EpisodeQuery{Max: 10})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, 2)

	_, err := c.EpisodesByFeedID(context.Background(), 42, EpisodeQuery{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"false","description":"Authorization header value is invalid"}`)
	}, 3)

	_, err := c.FeedByID(context.Background(), 42)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsAuth())
	assert.False(t, apiErr.Retryable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEpisodesByFeedIDParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/episodes/byfeedid", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Equal(t, "1000", r.URL.Query().Get("max"))
		assert.Equal(t, "1700000000", r.URL.Query().Get("since"))
		fmt.Fprint(w, `{"status":"true","items":[],"count":0}`)
	}, 0)

	items, err := c.EpisodesByFeedID(context.Background(), 42, EpisodeQuery{Max: 1000, Since: 1700000000})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecentChanges(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recent/data", r.URL.Path)
		assert.Equal(t, "300", r.URL.Query().Get("max"))
		fmt.Fprint(w, `{"status":"true","items":[
			{"feedId":1,"episodeId":10,"episodeTimestamp":1700000100,"episodeAdded":1700000200},
			{"feedId":2,"episodeId":20,"episodeTimestamp":1700000300}
		]}`)
	}, 0)

	items, err := c.RecentChanges(context.Background(), RecentQuery{Max: 300})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1700000200), items[0].Timestamp())
	assert.Equal(t, int64(1700000300), items[1].Timestamp())
}

func TestRegisterByURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "https://example.com/feed.xml", r.URL.Query().Get("url"))
		fmt.Fprint(w, `{"status":"true","feedId":99,"existed":false}`)
	}, 0)

	reg, err := c.RegisterByURL(context.Background(), "https://example.com/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, int64(99), reg.FeedID)
	assert.False(t, reg.Existed)
}

func TestClientStopsOnCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, 5)
	c.backoffBase = time.Hour
	c.backoffMax = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.FeedByID(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoff(t *testing.T) {
	c := New(Options{BackoffBase: time.Second, BackoffMax: 5 * time.Second})
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
	assert.Equal(t, 5*time.Second, c.backoff(4))
}
