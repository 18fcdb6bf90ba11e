package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"podcast-archiver/internal/feed"
)

// GetRSSFeed serves a mirror feed of the podcast's episodes that are present
// in the object store.
func (h *Handlers) GetRSSFeed(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	podcast, err := h.catalog.GetPodcast(r.Context(), name)
	if err != nil {
		h.logger.Error("error getting podcast", zap.String("feed", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if podcast == nil {
		http.Error(w, "Podcast not found", http.StatusNotFound)
		return
	}

	episodes, err := h.catalog.GetPresentEpisodes(r.Context(), name)
	if err != nil {
		h.logger.Error("error getting episodes", zap.String("feed", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateMirror(*podcast, episodes, feed.BaseURL(r, h.baseURL))
	if err != nil {
		h.logger.Error("error generating RSS", zap.String("feed", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}
