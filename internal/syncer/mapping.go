package syncer

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"podcast-curator/internal/models"
	"podcast-curator/internal/podcastindex"
)

// unixTime converts upstream unix seconds; zero and negatives mean unknown.
func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func podcastFromFeed(f *podcastindex.Feed) *models.Podcast {
	p := &models.Podcast{
		FeedID:                 f.ID,
		PodcastGUID:            optionalString(f.PodcastGUID),
		URL:                    f.URL,
		OriginalURL:            f.OriginalURL,
		Title:                  f.Title,
		Author:                 f.Author,
		OwnerName:              f.OwnerName,
		Description:            f.Description,
		Link:                   f.Link,
		Image:                  f.Image,
		Artwork:                f.Artwork,
		Language:               f.Language,
		ItunesID:               f.ItunesID,
		Explicit:               f.Explicit,
		Medium:                 f.Medium,
		EpisodeCount:           f.EpisodeCount,
		LastUpdateTime:         unixTime(f.LastUpdateTime),
		LastCrawlTime:          unixTime(f.LastCrawlTime),
		LastParseTime:          unixTime(f.LastParseTime),
		LastGoodHTTPStatusTime: unixTime(f.LastGoodHTTPStatusTime),
		OldestItemPubdate:      unixTime(f.OldestItemPubdate),
		NewestItemPubdate:      unixTime(f.NewestItemPubdate),
		CrawlErrors:            f.CrawlErrors,
		ParseErrors:            f.ParseErrors,
		Dead:                   f.Dead != 0,
		DuplicateOf:            f.DuplicateOf,
		Locked:                 f.Locked != 0,
	}
	if p.DuplicateOf != nil && *p.DuplicateOf == 0 {
		p.DuplicateOf = nil
	}

	if f.Value != nil {
		p.ValueModelType = f.Value.Model.Type
		p.ValueModelMethod = f.Value.Model.Method
		p.ValueModelSuggested = f.Value.Model.Suggested
		for _, d := range f.Value.Destinations {
			if strings.TrimSpace(d.Address) == "" {
				continue
			}
			p.ValueDestinations = append(p.ValueDestinations, models.ValueDestination{
				Name:        d.Name,
				Address:     d.Address,
				Type:        d.Type,
				Split:       d.Split,
				Fee:         d.Fee,
				CustomKey:   optionalString(d.CustomKey),
				CustomValue: optionalString(d.CustomValue),
			})
		}
	}

	for rawID, name := range f.Categories {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		p.Categories = append(p.Categories, models.Category{ID: id, Name: name})
	}
	sort.Slice(p.Categories, func(i, j int) bool { return p.Categories[i].ID < p.Categories[j].ID })

	return p
}

func episodeFromUpstream(podcastID int64, id EpisodeIdentity, ep podcastindex.Episode) *models.Episode {
	e := &models.Episode{
		PodcastID:       podcastID,
		GUID:            id.Key(),
		Title:           ep.Title,
		Description:     ep.Description,
		Link:            ep.Link,
		EnclosureURL:    ep.EnclosureURL,
		EnclosureType:   ep.EnclosureType,
		EnclosureLength: ep.EnclosureLength,
		Duration:        ep.Duration,
		DatePublished:   unixTime(ep.DatePublished),
		DateCrawled:     unixTime(ep.DateCrawled),
		Season:          ep.Season,
		EpisodeNumber:   ep.EpisodeNumber,
		EpisodeType:     ep.EpisodeType,
		Explicit:        ep.Explicit != 0,
		Image:           ep.Image,
		TranscriptURL:   ep.TranscriptURL,
		ChaptersURL:     ep.ChaptersURL,
	}
	if id.ExternalID > 0 {
		ext := id.ExternalID
		e.ExternalID = &ext
	}
	if ep.Value != nil {
		e.ValueModelType = ep.Value.Model.Type
		e.ValueModelMethod = ep.Value.Model.Method
		if raw, err := json.Marshal(ep.Value); err == nil {
			e.ValueJSON = raw
		}
	}
	return e
}
