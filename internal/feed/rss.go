package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"podcast-curator/internal/models"
)

var enclosureTypes = map[string]podcast.EnclosureType{
	"audio/mpeg":      podcast.MP3,
	"audio/mp3":       podcast.MP3,
	"audio/x-m4a":     podcast.M4A,
	"audio/mp4":       podcast.M4A,
	"video/x-m4v":     podcast.M4V,
	"video/mp4":       podcast.MP4,
	"video/quicktime": podcast.MOV,
	"application/pdf": podcast.PDF,
}

// enclosureType maps a MIME type onto the library's enclosure kinds. Unknown
// audio types fall back to MP3; anything else has no enclosure.
func enclosureType(mime string) (podcast.EnclosureType, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if t, ok := enclosureTypes[mime]; ok {
		return t, true
	}
	if strings.HasPrefix(mime, "audio/") || mime == "" {
		return podcast.MP3, true
	}
	return 0, false
}

// GenerateRSS renders a stored podcast and its episodes as an RSS preview.
// selfURL is advertised as the feed's atom:link.
func GenerateRSS(p *models.Podcast, episodes []models.Episode, selfURL string) (string, error) {
	link := p.Link
	if link == "" {
		link = p.URL
	}
	description := p.Description
	if description == "" {
		description = p.Title
	}

	var published, built time.Time
	if p.NewestItemPubdate != nil {
		published = *p.NewestItemPubdate
	}
	if p.LastSyncedAt != nil {
		built = *p.LastSyncedAt
	}
	feed := podcast.New(p.Title, link, description, &published, &built)
	feed.Language = p.Language
	feed.IAuthor = p.Author
	if img := firstNonEmpty(p.Artwork, p.Image); img != "" {
		feed.AddImage(img)
	}
	for _, c := range p.Categories {
		feed.AddCategory(c.Name, nil)
	}
	if selfURL != "" {
		feed.AddAtomLink(selfURL)
	}

	for _, e := range episodes {
		item := podcast.Item{
			Title:       firstNonEmpty(e.Title, "Untitled episode"),
			Description: firstNonEmpty(e.Description, e.Title, "No description"),
			Link:        e.Link,
			GUID:        e.GUID,
			PubDate:     e.DatePublished,
		}
		if e.EnclosureURL != "" {
			if t, ok := enclosureType(e.EnclosureType); ok {
				item.AddEnclosure(e.EnclosureURL, t, e.EnclosureLength)
			}
		}
		if e.Duration != nil && *e.Duration > 0 {
			item.AddDuration(int64(*e.Duration))
		}
		if e.Image != "" {
			item.AddImage(e.Image)
		}
		if _, err := feed.AddItem(item); err != nil {
			return "", fmt.Errorf("episode %s: %w", e.GUID, err)
		}
	}

	return feed.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
