package feed

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/eduncan911/podcast"

	"podcast-archiver/internal/models"
)

// BaseURL prefers the configured base and otherwise derives one from the
// request, honouring X-Forwarded-Proto.
func BaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateMirror renders an RSS document listing the podcast's episodes that
// are present in the object store. Episodes without a remote URL are skipped.
func GenerateMirror(p models.Podcast, episodes []models.Episode, baseURL string) (string, error) {
	lastBuild := time.Now()
	if len(episodes) > 0 {
		lastBuild = episodes[0].DownloadedDate
	}

	feed := podcast.New(
		p.Name,
		fmt.Sprintf("%s/rss/%s", baseURL, url.PathEscape(p.Name)),
		fmt.Sprintf("Archived episodes of %s.", p.Name),
		&lastBuild, &lastBuild,
	)

	for _, episode := range episodes {
		if episode.RemoteFileURL == nil || !episode.InDrive {
			continue
		}

		pubDate := episode.DownloadedDate
		if episode.PublishedDate != nil {
			if t, err := dateparse.ParseAny(*episode.PublishedDate); err == nil {
				pubDate = t
			}
		}

		item := podcast.Item{
			Title:       episode.Title,
			Description: episode.Title,
			PubDate:     &pubDate,
		}
		if episode.GUID != nil {
			item.GUID = *episode.GUID
		}
		var size int64
		if episode.FileSize != nil {
			size = *episode.FileSize
		}
		item.AddEnclosure(*episode.RemoteFileURL, enclosureType(*episode.RemoteFileURL), size)
		if _, err := feed.AddItem(item); err != nil {
			return "", fmt.Errorf("add mirror item %d: %w", episode.ID, err)
		}
	}

	return feed.String(), nil
}

func enclosureType(location string) podcast.EnclosureType {
	switch strings.ToLower(path.Ext(strings.SplitN(location, "?", 2)[0])) {
	case ".m4a":
		return podcast.M4A
	case ".mp4":
		return podcast.MP4
	default:
		return podcast.MP3
	}
}
