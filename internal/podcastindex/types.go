package podcastindex

// Feed is a podcast as described by the directory. Timestamps are unix seconds,
// zero when unknown.
type Feed struct {
	ID                     int64             `json:"id"`
	PodcastGUID            string            `json:"podcastGuid"`
	Title                  string            `json:"title"`
	URL                    string            `json:"url"`
	OriginalURL            string            `json:"originalUrl"`
	Link                   string            `json:"link"`
	Description            string            `json:"description"`
	Author                 string            `json:"author"`
	OwnerName              string            `json:"ownerName"`
	Image                  string            `json:"image"`
	Artwork                string            `json:"artwork"`
	LastUpdateTime         int64             `json:"lastUpdateTime"`
	LastCrawlTime          int64             `json:"lastCrawlTime"`
	LastParseTime          int64             `json:"lastParseTime"`
	LastGoodHTTPStatusTime int64             `json:"lastGoodHttpStatusTime"`
	LastHTTPStatus         int               `json:"lastHttpStatus"`
	ContentType            string            `json:"contentType"`
	ItunesID               *int64            `json:"itunesId"`
	Language               string            `json:"language"`
	Explicit               bool              `json:"explicit"`
	Medium                 string            `json:"medium"`
	Dead                   int               `json:"dead"`
	Locked                 int               `json:"locked"`
	DuplicateOf            *int64            `json:"duplicateOf"`
	EpisodeCount           int               `json:"episodeCount"`
	CrawlErrors            int               `json:"crawlErrors"`
	ParseErrors            int               `json:"parseErrors"`
	NewestItemPubdate      int64             `json:"newestItemPubdate"`
	OldestItemPubdate      int64             `json:"oldestItemPubdate"`
	Categories             map[string]string `json:"categories"`
	Value                  *Value            `json:"value"`
}

// Value is a value-for-value (monetization) block.
type Value struct {
	Model        ValueModel         `json:"model"`
	Destinations []ValueDestination `json:"destinations"`
}

type ValueModel struct {
	Type      string `json:"type"`
	Method    string `json:"method"`
	Suggested string `json:"suggested"`
}

type ValueDestination struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Type        string `json:"type"`
	Split       int    `json:"split"`
	Fee         bool   `json:"fee"`
	CustomKey   string `json:"customKey"`
	CustomValue string `json:"customValue"`
}

// Episode is one feed item. GUID is frequently empty upstream.
type Episode struct {
	ID              int64  `json:"id"`
	FeedID          int64  `json:"feedId"`
	GUID            string `json:"guid"`
	Title           string `json:"title"`
	Link            string `json:"link"`
	Description     string `json:"description"`
	DatePublished   int64  `json:"datePublished"`
	DateCrawled     int64  `json:"dateCrawled"`
	EnclosureURL    string `json:"enclosureUrl"`
	EnclosureType   string `json:"enclosureType"`
	EnclosureLength int64  `json:"enclosureLength"`
	Duration        *int   `json:"duration"`
	Explicit        int    `json:"explicit"`
	EpisodeNumber   *int   `json:"episode"`
	EpisodeType     string `json:"episodeType"`
	Season          *int   `json:"season"`
	Image           string `json:"image"`
	TranscriptURL   string `json:"transcriptUrl"`
	ChaptersURL     string `json:"chaptersUrl"`
	Value           *Value `json:"value"`
}

// RecentItem is one entry of the cross-feed "recent data" listing.
type RecentItem struct {
	FeedID           int64  `json:"feedId"`
	FeedURL          string `json:"feedUrl"`
	EpisodeID        int64  `json:"episodeId"`
	EpisodeTitle     string `json:"episodeTitle"`
	EpisodeTimestamp int64  `json:"episodeTimestamp"`
	EpisodeAdded     int64  `json:"episodeAdded"`
}

// Timestamp is the moment the item changed upstream: when it was added to
// the directory, falling back to its publish time.
func (r RecentItem) Timestamp() int64 {
	if r.EpisodeAdded > 0 {
		return r.EpisodeAdded
	}
	return r.EpisodeTimestamp
}

// EpisodeQuery bounds an episode listing. Since is a unix-seconds lower bound
// on publish time; zero means unbounded.
type EpisodeQuery struct {
	Max   int
	Since int64
}

// RecentQuery bounds a recent-data listing.
type RecentQuery struct {
	Max   int
	Since int64
}

// Registration is the outcome of adding a feed URL to the directory.
type Registration struct {
	FeedID  int64
	Existed bool
}
