package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"podcast-curator/internal/db"
	"podcast-curator/internal/feed"
)

const rssEpisodeLimit = 100

// GetRSSFeed renders the stored podcast as RSS.
func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	feedID, err := strconv.ParseInt(mux.Vars(r)["feedId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid feed id", http.StatusBadRequest)
		return
	}

	podcast, err := h.store.GetPodcastByFeedID(r.Context(), feedID)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Podcast not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Errorf("Error getting podcast: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	episodes, err := h.store.ListEpisodes(r.Context(), podcast.ID, rssEpisodeLimit)
	if err != nil {
		h.logger.Errorf("Error getting episodes: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(podcast, episodes, selfURL(r))
	if err != nil {
		h.logger.Errorf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}

func selfURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}
