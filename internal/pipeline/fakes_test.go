package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/db"
	"podcast-archiver/internal/downloader"
	"podcast-archiver/internal/feed"
	"podcast-archiver/internal/models"
	"podcast-archiver/internal/storage"
)

type memCatalog struct {
	mu       sync.Mutex
	nextID   int64
	episodes []models.Episode
	podcasts map[string]models.Podcast
	runs     []models.RunHistory
	pingErr  error
	addErr   map[string]error
	// titleErr fails AddEpisode for single episodes by title.
	titleErr map[string]error
}

func newMemCatalog() *memCatalog {
	return &memCatalog{podcasts: map[string]models.Podcast{}, addErr: map[string]error{}, titleErr: map[string]error{}}
}

func (c *memCatalog) Ping(context.Context) error { return c.pingErr }

func (c *memCatalog) EpisodeExists(_ context.Context, url, guid string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.episodes {
		if (url != "" && e.URL == url) || (guid != "" && e.GUID != nil && *e.GUID == guid) {
			return true, nil
		}
	}
	return false, nil
}

func (c *memCatalog) AddEpisode(_ context.Context, ep models.NewEpisode) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.addErr[ep.PodcastName]; err != nil {
		return 0, err
	}
	if err := c.titleErr[ep.Title]; err != nil {
		return 0, err
	}
	seq := 0
	for _, e := range c.episodes {
		if e.PodcastName == ep.PodcastName && e.PodcastSeq != nil && *e.PodcastSeq > seq {
			seq = *e.PodcastSeq
		}
	}
	seq++
	c.nextID++
	row := models.Episode{
		ID:             c.nextID,
		PodcastName:    ep.PodcastName,
		Title:          ep.Title,
		URL:            ep.URL,
		GUID:           ep.GUID,
		PublishedDate:  ep.PublishedDate,
		DownloadedDate: time.Now(),
		RemoteFileID:   ep.RemoteFileID,
		RemoteFileURL:  ep.RemoteFileURL,
		FileSize:       ep.FileSize,
		Status:         db.StatusReserved,
		PodcastSeq:     &seq,
	}
	if ep.RemoteFileID != nil {
		row.Status = db.StatusUploaded
		row.InDrive = true
	}
	c.episodes = append(c.episodes, row)
	return row.ID, nil
}

func (c *memCatalog) GetEpisodeByID(_ context.Context, id int64) (*models.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.episodes {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (c *memCatalog) UpdateEpisodeRemoteInfo(_ context.Context, id int64, remoteID, remoteURL string, size *int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.episodes {
		if c.episodes[i].ID == id {
			c.episodes[i].RemoteFileID = &remoteID
			c.episodes[i].RemoteFileURL = &remoteURL
			if size != nil {
				c.episodes[i].FileSize = size
			}
			c.episodes[i].InDrive = true
			c.episodes[i].Status = db.StatusUploaded
			return nil
		}
	}
	return fmt.Errorf("episode %d not found", id)
}

func (c *memCatalog) MarkEpisodePresence(_ context.Context, id int64, present bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.episodes {
		if c.episodes[i].ID == id {
			c.episodes[i].InDrive = present
		}
	}
	return nil
}

func (c *memCatalog) GetPresentEpisodes(_ context.Context, podcast string) ([]models.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Episode
	for _, e := range c.episodes {
		if e.PodcastName == podcast && e.InDrive && e.RemoteFileID != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (c *memCatalog) ListRemoteEpisodes(_ context.Context, podcast string) ([]models.Episode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Episode
	for _, e := range c.episodes {
		if e.PodcastName == podcast && e.InDrive && e.RemoteFileID != nil && e.PodcastSeq != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *memCatalog) RemoteObjectKnown(_ context.Context, podcast, remoteID, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.episodes {
		if (e.RemoteFileID != nil && *e.RemoteFileID == remoteID) || e.URL == db.RemoteURL(remoteID) ||
			(e.PodcastName == podcast && e.Title == name) {
			return true, nil
		}
	}
	return false, nil
}

func (c *memCatalog) AddOrUpdatePodcast(_ context.Context, p models.PodcastUpsert) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.addErr[p.Name]; err != nil {
		return 0, err
	}
	keep := models.KeepAll
	if p.KeepCount != nil {
		keep = *p.KeepCount
	}
	now := time.Now()
	record := models.Podcast{
		ID:             int64(len(c.podcasts) + 1),
		Name:           p.Name,
		RSSURL:         p.RSSURL,
		FolderName:     p.FolderName,
		LastChecked:    &now,
		RemoteFolderID: p.RemoteFolderID,
		Enabled:        true,
		KeepCount:      keep,
	}
	if existing, ok := c.podcasts[p.Name]; ok {
		record.ID = existing.ID
	}
	c.podcasts[p.Name] = record
	return record.ID, nil
}

func (c *memCatalog) GetPodcast(_ context.Context, name string) (*models.Podcast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.podcasts[name]; ok {
		return &p, nil
	}
	return nil, nil
}

func (c *memCatalog) AddRunHistory(_ context.Context, runID, runType, status, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var msg *string
	if message != "" {
		msg = &message
	}
	c.runs = append(c.runs, models.RunHistory{ID: int64(len(c.runs) + 1), RunID: runID, Timestamp: time.Now(), RunType: runType, Status: status, Message: msg})
	return nil
}

func (c *memCatalog) GetStats(context.Context) (models.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := models.Stats{EpisodeCount: int64(len(c.episodes))}
	feeds := map[string]struct{}{}
	for _, e := range c.episodes {
		feeds[e.PodcastName] = struct{}{}
		if e.FileSize != nil {
			stats.TotalBytes += *e.FileSize
		}
	}
	stats.DistinctFeedCount = int64(len(feeds))
	return stats, nil
}

func (c *memCatalog) byPodcast(podcast string) []models.Episode {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Episode
	for _, e := range c.episodes {
		if e.PodcastName == podcast {
			out = append(out, e)
		}
	}
	return out
}

func (c *memCatalog) runCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

type fakeFeeds struct {
	entries map[string][]feed.Entry
	errs    map[string]error
}

func (f *fakeFeeds) Fetch(_ context.Context, url string, max int) ([]feed.Entry, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	entries := f.entries[url]
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	return entries, nil
}

type fakeDownloader struct {
	mu       sync.Mutex
	requests []downloader.Request
	fail     map[string]error
}

func (d *fakeDownloader) Fetch(_ context.Context, req downloader.Request) (*downloader.Download, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if err := d.fail[req.URL]; err != nil {
		return nil, err
	}
	body := "audio:" + req.URL
	return &downloader.Download{
		Body:     io.NopCloser(strings.NewReader(body)),
		Filename: downloader.GenerateFilename(req.Title, req.URL, req.Prefix),
		Size:     int64(len(body)),
	}, nil
}

// failingStore rejects uploads of the named files.
type failingStore struct {
	storage.ObjectStore
	failUpload map[string]bool
}

func (s *failingStore) Upload(ctx context.Context, body io.Reader, size int64, name, folderID, contentType string) (storage.UploadResult, error) {
	if s.failUpload[name] {
		return storage.UploadResult{}, &storage.Error{Code: storage.CodeWriteFailed, Retryable: true, Err: errors.New("503")}
	}
	return s.ObjectStore.Upload(ctx, body, size, name, folderID, contentType)
}

type fakeLock struct {
	held     bool
	unlocked int
}

func (l *fakeLock) TryLock() (bool, error) { return !l.held, nil }
func (l *fakeLock) Unlock() error          { l.unlocked++; return nil }

func staticConfig(podcasts ...config.Podcast) ConfigLoader {
	return func() (*config.Document, error) {
		return &config.Document{Podcasts: podcasts, Settings: config.DefaultSettings()}, nil
	}
}

func entryAt(title string, published time.Time) feed.Entry {
	slug := strings.ToLower(strings.ReplaceAll(title, " ", "-"))
	return feed.Entry{
		Title:       title,
		Published:   published.Format(time.RFC1123Z),
		PublishedAt: published,
		AudioURL:    "https://cdn.example.com/" + slug + ".mp3",
		GUID:        "guid-" + slug,
	}
}
