package syncer

import (
	"fmt"
	"strconv"
	"strings"

	"podcast-curator/internal/podcastindex"
)

const syntheticKeyPrefix = "pi-"

// EpisodeIdentity is the resolved identity of an upstream episode: the
// directory's numeric id plus the feed-supplied guid when there is one.
type EpisodeIdentity struct {
	ExternalID int64
	GUID       string
}

// HasGUID reports whether the upstream item carried a usable guid.
func (id EpisodeIdentity) HasGUID() bool {
	return id.GUID != ""
}

// Key is the per-podcast dedup key: the guid, or pi-<external id> when the
// item has none. It is what gets stored in episodes.guid.
func (id EpisodeIdentity) Key() string {
	if id.HasGUID() {
		return id.GUID
	}
	return SyntheticKey(id.ExternalID)
}

// SyntheticKey is the fallback dedup key for guid-less episodes.
func SyntheticKey(externalID int64) string {
	return syntheticKeyPrefix + strconv.FormatInt(externalID, 10)
}

// ResolveEpisode returns the identity of ep. ok is false when the item has
// neither a guid nor an external id and cannot be stored.
func ResolveEpisode(ep podcastindex.Episode) (EpisodeIdentity, bool) {
	id := EpisodeIdentity{ExternalID: ep.ID, GUID: strings.TrimSpace(ep.GUID)}
	if !id.HasGUID() && id.ExternalID <= 0 {
		return id, false
	}
	return id, true
}

type resolvedEpisode struct {
	identity EpisodeIdentity
	episode  podcastindex.Episode
}

// dedupeByKey collapses items sharing a dedup key or a positive external id.
// The later item in fetch order wins and takes the earliest slot it matched,
// matching what sequential upserts would have produced.
func dedupeByKey(items []podcastindex.Episode) (out []resolvedEpisode, skipped int) {
	byKey := make(map[string]int, len(items))
	byExternal := make(map[int64]int, len(items))
	var dropped map[int]bool

	for _, ep := range items {
		id, ok := ResolveEpisode(ep)
		if !ok {
			skipped++
			continue
		}
		item := resolvedEpisode{identity: id, episode: ep}
		key := id.Key()

		slot := -1
		if i, seen := byKey[key]; seen {
			slot = i
		}
		if i, seen := byExternal[id.ExternalID]; seen && id.ExternalID > 0 {
			switch {
			case slot < 0:
				slot = i
			case i != slot:
				// The item ties two earlier ones together; fold them into one slot.
				keep, drop := min(i, slot), max(i, slot)
				if dropped == nil {
					dropped = make(map[int]bool)
				}
				dropped[drop] = true
				remapSlot(byKey, drop, keep)
				remapSlot(byExternal, drop, keep)
				slot = keep
			}
		}

		if slot < 0 {
			slot = len(out)
			out = append(out, item)
		} else {
			out[slot] = item
		}
		byKey[key] = slot
		if id.ExternalID > 0 {
			byExternal[id.ExternalID] = slot
		}
	}

	if len(dropped) > 0 {
		kept := out[:0]
		for i, it := range out {
			if !dropped[i] {
				kept = append(kept, it)
			}
		}
		out = kept
	}
	return out, skipped
}

func remapSlot[K comparable](index map[K]int, from, to int) {
	for k, v := range index {
		if v == from {
			index[k] = to
		}
	}
}

// FeedRefKind tags which identifier a FeedRef carries.
type FeedRefKind int

const (
	FeedRefID FeedRefKind = iota
	FeedRefGUID
	FeedRefURL
)

// FeedRef identifies a feed by one of the directory's lookup keys. Only the
// numeric id is authoritative; GUID and URL are resolved to it first.
type FeedRef struct {
	Kind FeedRefKind
	ID   int64
	GUID string
	URL  string
}

func RefByID(id int64) FeedRef      { return FeedRef{Kind: FeedRefID, ID: id} }
func RefByGUID(guid string) FeedRef { return FeedRef{Kind: FeedRefGUID, GUID: guid} }
func RefByURL(url string) FeedRef   { return FeedRef{Kind: FeedRefURL, URL: url} }

func (r FeedRef) String() string {
	switch r.Kind {
	case FeedRefGUID:
		return "guid:" + r.GUID
	case FeedRefURL:
		return "url:" + r.URL
	default:
		return fmt.Sprintf("feed:%d", r.ID)
	}
}
