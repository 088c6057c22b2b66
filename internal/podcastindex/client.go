// Package podcastindex is a client for the PodcastIndex directory API.
package podcastindex

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://api.podcastindex.org/api/1.0"
	defaultUserAgent   = "podcast-curator/1.0"
	defaultBackoffBase = 500 * time.Millisecond
	defaultBackoffMax  = 10 * time.Second
	maxErrorBody       = 512
)

// Options configures a Client. Zero values take the defaults above; a zero
// RateLimit disables pacing.
type Options struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	UserAgent   string
	HTTPClient  *http.Client
	Timeout     time.Duration
	RateLimit   float64
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Logger      *log.Logger
}

// Client talks to the directory. It retries transport errors, 429 and 5xx
// responses with exponential backoff and never retries other 4xx responses.
type Client struct {
	baseURL     string
	apiKey      string
	apiSecret   string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration
	logger      *log.Logger
	now         func() time.Time
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		apiSecret:   opts.APISecret,
		userAgent:   opts.UserAgent,
		httpClient:  opts.HTTPClient,
		maxRetries:  opts.MaxRetries,
		backoffBase: opts.BackoffBase,
		backoffMax:  opts.BackoffMax,
		logger:      opts.Logger,
		now:         time.Now,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.backoffBase <= 0 {
		c.backoffBase = defaultBackoffBase
	}
	if c.backoffMax <= 0 {
		c.backoffMax = defaultBackoffMax
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// SearchByTerm returns feeds matching term.
func (c *Client) SearchByTerm(ctx context.Context, term string, max int) ([]Feed, error) {
	params := url.Values{"q": {term}}
	if max > 0 {
		params.Set("max", strconv.Itoa(max))
	}
	var resp struct {
		Feeds []Feed `json:"feeds"`
	}
	if err := c.do(ctx, http.MethodGet, "/search/byterm", params, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Feeds, nil
}

// FeedByID returns the feed, or nil when the directory does not know it.
func (c *Client) FeedByID(ctx context.Context, id int64) (*Feed, error) {
	return c.feedLookup(ctx, "/podcasts/byfeedid", url.Values{"id": {strconv.FormatInt(id, 10)}})
}

// FeedByGUID returns the feed with the given podcast:guid, or nil.
func (c *Client) FeedByGUID(ctx context.Context, guid string) (*Feed, error) {
	return c.feedLookup(ctx, "/podcasts/byguid", url.Values{"guid": {guid}})
}

// FeedByURL returns the feed with the given subscribe URL, or nil.
func (c *Client) FeedByURL(ctx context.Context, feedURL string) (*Feed, error) {
	return c.feedLookup(ctx, "/podcasts/byfeedurl", url.Values{"url": {feedURL}})
}

// RegisterByURL adds a feed URL to the directory and returns its feed id.
// Registering a known URL returns the existing id.
func (c *Client) RegisterByURL(ctx context.Context, feedURL string) (*Registration, error) {
	var resp struct {
		Status      string `json:"status"`
		FeedID      int64  `json:"feedId"`
		Existed     bool   `json:"existed"`
		Description string `json:"description"`
	}
	if err := c.do(ctx, http.MethodPost, "/add/byfeedurl", url.Values{"url": {feedURL}}, &resp); err != nil {
		return nil, err
	}
	if resp.FeedID == 0 {
		return nil, &APIError{Endpoint: "/add/byfeedurl", StatusCode: http.StatusOK, Body: resp.Description}
	}
	return &Registration{FeedID: resp.FeedID, Existed: resp.Existed}, nil
}

// EpisodesByFeedID lists a feed's episodes published after q.Since, at most q.Max.
// Item order is whatever the directory returns.
func (c *Client) EpisodesByFeedID(ctx context.Context, feedID int64, q EpisodeQuery) ([]Episode, error) {
	params := url.Values{"id": {strconv.FormatInt(feedID, 10)}}
	if q.Max > 0 {
		params.Set("max", strconv.Itoa(q.Max))
	}
	if q.Since > 0 {
		params.Set("since", strconv.FormatInt(q.Since, 10))
	}
	var resp struct {
		Items []Episode `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/episodes/byfeedid", params, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Items, nil
}

// RecentChanges lists recently added items across all feeds.
func (c *Client) RecentChanges(ctx context.Context, q RecentQuery) ([]RecentItem, error) {
	params := url.Values{}
	if q.Max > 0 {
		params.Set("max", strconv.Itoa(q.Max))
	}
	if q.Since > 0 {
		params.Set("since", strconv.FormatInt(q.Since, 10))
	}
	var resp struct {
		Items []RecentItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/recent/data", params, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) feedLookup(ctx context.Context, endpoint string, params url.Values) (*Feed, error) {
	var resp struct {
		Status string          `json:"status"`
		Feed   json.RawMessage `json:"feed"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, params, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	// Unknown feeds come back as 200 with "feed": [] or a status of "false".
	raw := bytes.TrimSpace(resp.Feed)
	if resp.Status == "false" || len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var feed Feed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("podcastindex %s: failed to decode feed: %w", endpoint, err)
	}
	if feed.ID == 0 {
		return nil, nil
	}
	return &feed, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Warnf("podcastindex %s failed (attempt %d/%d), retrying in %v: %v",
				endpoint, attempt, c.maxRetries+1, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.attempt(ctx, method, endpoint, params, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable || ctx.Err() != nil {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.sign(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Endpoint: endpoint, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       snippet,
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("podcastindex %s: failed to decode response: %w", endpoint, err)
	}
	return nil
}

// sign attaches the keyed-hash auth headers: the Authorization value is the
// hex SHA-1 of key, secret and the unix time sent in X-Auth-Date.
func (c *Client) sign(req *http.Request) {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	sum := sha1.Sum([]byte(c.apiKey + c.apiSecret + ts))

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Auth-Key", c.apiKey)
	req.Header.Set("X-Auth-Date", ts)
	req.Header.Set("Authorization", hex.EncodeToString(sum[:]))
	req.Header.Set("Accept", "application/json")
}

// backoff doubles from backoffBase per attempt, capped at backoffMax.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > c.backoffMax {
			return c.backoffMax
		}
	}
	return delay
}
