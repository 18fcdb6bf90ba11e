package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/net/html/charset"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Entry is one candidate episode from a feed. PublishedAt is zero when the
// feed's date text could not be parsed; AudioURL is empty when the item has no
// enclosure.
type Entry struct {
	Title       string
	Published   string
	PublishedAt time.Time
	AudioURL    string
	GUID        string
}

// Valid reports whether the entry has both a usable date and audio.
func (e Entry) Valid() bool {
	return !e.PublishedAt.IsZero() && e.AudioURL != ""
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	PubDate   string `xml:"pubDate"`
	Published string `xml:"published"`
	Date      string `xml:"date"`
	GUID      string `xml:"guid"`
	Enclosure []struct {
		URL string `xml:"url,attr"`
	} `xml:"enclosure"`
}

// Reader fetches and parses RSS feeds over HTTP.
type Reader struct {
	client *http.Client
}

// NewReader returns a Reader whose requests are bounded by timeout. Zero
// leaves the bound to the context passed to Fetch.
func NewReader(timeout time.Duration) *Reader {
	return &Reader{client: &http.Client{Timeout: timeout}}
}

// Timeout is the client-side bound on each request, zero when unbounded.
func (r *Reader) Timeout() time.Duration {
	return r.client.Timeout
}

// Fetch returns up to max entries in document order. Malformed items are
// returned with the unusable fields left empty rather than failing the fetch.
func (r *Reader) Fetch(ctx context.Context, url string, max int) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch feed %s: unexpected status %s", url, resp.Status)
	}

	return Parse(resp.Body, max)
}

// Parse decodes an RSS document.
func Parse(body io.Reader, max int) ([]Entry, error) {
	decoder := xml.NewDecoder(body)
	decoder.Strict = false
	decoder.CharsetReader = charset.NewReaderLabel

	var doc rssDocument
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		if max > 0 && len(entries) >= max {
			break
		}
		entries = append(entries, item.entry())
	}
	return entries, nil
}

func (i rssItem) entry() Entry {
	e := Entry{
		Title: strings.TrimSpace(i.Title),
		GUID:  strings.TrimSpace(i.GUID),
	}
	if e.Title == "" {
		e.Title = "(no title)"
	}

	for _, text := range []string{i.PubDate, i.Published, i.Date} {
		if text = strings.TrimSpace(text); text != "" {
			e.Published = text
			break
		}
	}
	if e.Published != "" {
		if t, err := dateparse.ParseAny(e.Published); err == nil {
			e.PublishedAt = t
		}
	}

	for _, enc := range i.Enclosure {
		if url := strings.TrimSpace(enc.URL); url != "" {
			e.AudioURL = url
			break
		}
	}
	return e
}
