package pipeline

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/db"
	"podcast-archiver/internal/feed"
	"podcast-archiver/internal/models"
	"podcast-archiver/internal/storage"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	catalog    *memCatalog
	feeds      *fakeFeeds
	downloader *fakeDownloader
	store      *storage.LocalStore
	root       string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	require.NoError(t, err)
	return &harness{
		catalog:    newMemCatalog(),
		feeds:      &fakeFeeds{entries: map[string][]feed.Entry{}, errs: map[string]error{}},
		downloader: &fakeDownloader{fail: map[string]error{}},
		store:      store,
		root:       root,
	}
}

func (h *harness) orchestrator(podcasts ...config.Podcast) *Orchestrator {
	return New(Deps{
		Catalog:    h.catalog,
		Feeds:      h.feeds,
		Downloader: h.downloader,
		Store:      h.store,
		LoadConfig: staticConfig(podcasts...),
	}, nil)
}

func (h *harness) remoteFiles(t *testing.T, folder string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(h.root, "Podcasts", folder))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func podcast(name string, keep *int) config.Podcast {
	return config.Podcast{Name: name, RSSURL: "https://feeds.example.com/" + name, FolderName: name, KeepCount: keep}
}

func intPtr(v int) *int { return &v }

func TestRunOnceUploadsOldestFirstWithSequence(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", nil)
	h.feeds.entries[show.RSSURL] = []feed.Entry{
		entryAt("Episode 3", base.Add(48*time.Hour)),
		entryAt("Episode 1", base),
		entryAt("Episode 2", base.Add(24*time.Hour)),
	}

	summary, err := h.orchestrator(show).RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Feeds)
	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 3, summary.Uploaded)
	assert.True(t, summary.OK())
	assert.Equal(t, []string{"1-Episode_1.mp3", "2-Episode_2.mp3", "3-Episode_3.mp3"}, h.remoteFiles(t, "Show"))

	for _, ep := range h.catalog.byPodcast("Show") {
		assert.Equal(t, models.LifecyclePresent, ep.Lifecycle(), ep.Title)
		require.NotNil(t, ep.FileSize)
	}

	record, err := h.catalog.GetPodcast(context.Background(), "Show")
	require.NoError(t, err)
	require.NotNil(t, record.RemoteFolderID)
	assert.Equal(t, "Podcasts/Show/", *record.RemoteFolderID)
	assert.Equal(t, models.KeepAll, record.KeepCount)

	require.Len(t, h.catalog.runs, 2)
	assert.Equal(t, models.RunStatusStarted, h.catalog.runs[0].Status)
	assert.Equal(t, models.RunStatusCompleted, h.catalog.runs[1].Status)
	assert.Equal(t, summary.RunID, h.catalog.runs[1].RunID)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", nil)
	h.feeds.entries[show.RSSURL] = []feed.Entry{entryAt("A", base), entryAt("B", base.Add(time.Hour))}
	o := h.orchestrator(show)

	_, err := o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)
	second, err := o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Discovered)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, h.catalog.byPodcast("Show"), 2)
	assert.Len(t, h.downloader.requests, 2)
}

func TestSequenceIncreasesAcrossPasses(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", nil)
	o := h.orchestrator(show)

	h.feeds.entries[show.RSSURL] = []feed.Entry{entryAt("A", base), entryAt("B", base.Add(time.Hour))}
	_, err := o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)

	h.feeds.entries[show.RSSURL] = append(h.feeds.entries[show.RSSURL], entryAt("C", base.Add(2*time.Hour)), entryAt("D", base.Add(3*time.Hour)))
	_, err = o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)

	seen := map[int]string{}
	last := 0
	for _, ep := range h.catalog.byPodcast("Show") {
		require.NotNil(t, ep.PodcastSeq)
		_, dup := seen[*ep.PodcastSeq]
		assert.False(t, dup, "sequence %d reused", *ep.PodcastSeq)
		assert.Greater(t, *ep.PodcastSeq, last)
		seen[*ep.PodcastSeq] = ep.Title
		last = *ep.PodcastSeq
	}
	assert.Equal(t, map[int]string{1: "A", 2: "B", 3: "C", 4: "D"}, seen)
	assert.Equal(t, []string{"1-A.mp3", "2-B.mp3", "3-C.mp3", "4-D.mp3"}, h.remoteFiles(t, "Show"))
}

func TestSelectCandidatesNeverPads(t *testing.T) {
	var entries []feed.Entry
	for i := 0; i < 12; i++ {
		e := entryAt(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour))
		switch {
		case i%3 == 0 && i != 0:
			e.AudioURL = ""
		case i%3 == 1:
			e.PublishedAt = time.Time{}
		case i == 11:
			e.AudioURL = ""
		}
		entries = append(entries, e)
	}
	var valid []string
	for _, e := range entries {
		if e.Valid() {
			valid = append(valid, e.Title)
		}
	}
	require.Len(t, valid, 4)

	selected := SelectCandidates(entries, 5)
	var titles []string
	for _, e := range selected {
		titles = append(titles, e.Title)
	}
	assert.Equal(t, valid, titles, "oldest first")
}

func TestSelectCandidatesTruncatesToNewest(t *testing.T) {
	var entries []feed.Entry
	for i := 0; i < 8; i++ {
		entries = append(entries, entryAt(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour)))
	}

	selected := SelectCandidates(entries, 3)
	require.Len(t, selected, 3)
	assert.Equal(t, "f", selected[0].Title)
	assert.Equal(t, "h", selected[2].Title)
}

func TestDownloadFailureLeavesEpisodeReserved(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", nil)
	broken := entryAt("Broken", base.Add(time.Hour))
	h.feeds.entries[show.RSSURL] = []feed.Entry{entryAt("Good", base), broken, entryAt("Later", base.Add(2*time.Hour))}
	h.downloader.fail[broken.AudioURL] = errors.New("connection reset")
	o := h.orchestrator(show)

	summary, err := o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EpisodeErrors)
	assert.Equal(t, 2, summary.Uploaded)
	assert.False(t, summary.OK())
	assert.Equal(t, []string{"1-Good.mp3", "3-Later.mp3"}, h.remoteFiles(t, "Show"))

	var reservedEp *models.Episode
	for _, ep := range h.catalog.byPodcast("Show") {
		if ep.Title == "Broken" {
			ep := ep
			reservedEp = &ep
		}
	}
	require.NotNil(t, reservedEp)
	require.NotNil(t, reservedEp.PodcastSeq)
	assert.Equal(t, 2, *reservedEp.PodcastSeq)
	assert.False(t, reservedEp.InDrive)
	assert.Equal(t, models.LifecycleReserved, reservedEp.Lifecycle())

	second, err := o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Discovered)
	assert.Len(t, h.catalog.byPodcast("Show"), 3)
}

func TestUploadFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", nil)
	h.feeds.entries[show.RSSURL] = []feed.Entry{entryAt("One", base), entryAt("Two", base.Add(time.Hour))}

	o := New(Deps{
		Catalog:    h.catalog,
		Feeds:      h.feeds,
		Downloader: h.downloader,
		Store:      &failingStore{ObjectStore: h.store, failUpload: map[string]bool{"1-One.mp3": true}},
		LoadConfig: staticConfig(show),
	}, nil)

	summary, err := o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EpisodeErrors)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, []string{"2-Two.mp3"}, h.remoteFiles(t, "Show"))
}

func TestCatalogOutageAbortsOnlyThatFeed(t *testing.T) {
	h := newHarness(t)
	a, b, c := podcast("A", nil), podcast("B", nil), podcast("C", nil)
	for _, p := range []config.Podcast{a, b, c} {
		h.feeds.entries[p.RSSURL] = []feed.Entry{entryAt(p.Name+" ep", base)}
	}
	h.catalog.addErr["B"] = &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}

	summary, err := h.orchestrator(a, b, c).RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Feeds)
	assert.Equal(t, 1, summary.FeedErrors)
	assert.Equal(t, []string{"B"}, summary.FailedFeeds)
	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, []string{"1-A_ep.mp3"}, h.remoteFiles(t, "A"))
	assert.Empty(t, h.remoteFiles(t, "B"))
	assert.Equal(t, []string{"1-C_ep.mp3"}, h.remoteFiles(t, "C"))
	assert.Contains(t, summary.String(), "failed: B")
	assert.Equal(t, models.RunStatusError, h.catalog.runs[len(h.catalog.runs)-1].Status)
}

func TestFeedFetchFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	a, b := podcast("A", nil), podcast("B", nil)
	h.feeds.errs[a.RSSURL] = errors.New("timeout")
	h.feeds.entries[b.RSSURL] = []feed.Entry{entryAt("B ep", base)}

	summary, err := h.orchestrator(a, b).RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FeedErrors)
	assert.Equal(t, 1, summary.Uploaded)
}

func TestPingFailureAbortsPass(t *testing.T) {
	h := newHarness(t)
	h.catalog.pingErr = errors.New("dial tcp: connection refused")

	_, err := h.orchestrator(podcast("Show", nil)).RunOnce(context.Background(), models.RunTypeProcess)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrCatalogUnavailable)
	assert.Empty(t, h.catalog.runs)
	assert.Empty(t, h.downloader.requests)
}

func TestRetentionRunsAfterUploads(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", intPtr(2))
	h.feeds.entries[show.RSSURL] = []feed.Entry{entryAt("A", base), entryAt("B", base.Add(time.Hour)), entryAt("C", base.Add(2*time.Hour))}

	summary, err := h.orchestrator(show).RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, []string{"2-B.mp3", "3-C.mp3"}, h.remoteFiles(t, "Show"))
	for _, ep := range h.catalog.byPodcast("Show") {
		if ep.Title == "A" {
			assert.Equal(t, models.LifecycleAbsent, ep.Lifecycle())
		} else {
			assert.Equal(t, models.LifecyclePresent, ep.Lifecycle())
		}
	}
	assert.Len(t, h.catalog.byPodcast("Show"), 3, "rows are retained")
}

func TestNoDestinationStillCatalogues(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", intPtr(1))
	h.feeds.entries[show.RSSURL] = []feed.Entry{entryAt("A", base), entryAt("B", base.Add(time.Hour))}

	o := New(Deps{Catalog: h.catalog, Feeds: h.feeds, Downloader: h.downloader, LoadConfig: staticConfig(show)}, nil)
	summary, err := o.RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 0, summary.Uploaded)
	assert.Empty(t, h.downloader.requests)
	for _, ep := range h.catalog.byPodcast("Show") {
		assert.Equal(t, models.LifecycleReserved, ep.Lifecycle())
	}
}

func TestExistingRemoteObjectIsAdopted(t *testing.T) {
	h := newHarness(t)
	show := podcast("Show", nil)
	h.feeds.entries[show.RSSURL] = []feed.Entry{entryAt("A", base)}

	folder, err := h.store.EnsureFolder(context.Background(), "Show", "Podcasts/")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "Podcasts", "Show", "1-A.mp3"), []byte("old"), 0o644))

	summary, err := h.orchestrator(show).RunOnce(context.Background(), models.RunTypeProcess)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AlreadyExisted)
	assert.Equal(t, 0, summary.Uploaded)

	eps := h.catalog.byPodcast("Show")
	require.Len(t, eps, 1)
	assert.Equal(t, folder+"1-A.mp3", *eps[0].RemoteFileID)
	assert.True(t, eps[0].InDrive)
}

func TestRunOnceRespectsLock(t *testing.T) {
	h := newHarness(t)
	lock := &fakeLock{held: true}
	o := New(Deps{Catalog: h.catalog, Feeds: h.feeds, Downloader: h.downloader, Store: h.store, LoadConfig: staticConfig(), Lock: lock}, nil)

	_, err := o.RunOnce(context.Background(), models.RunTypeManual)
	assert.ErrorIs(t, err, ErrPassInProgress)
	assert.Equal(t, 0, lock.unlocked)

	lock.held = false
	_, err = o.RunOnce(context.Background(), models.RunTypeManual)
	require.NoError(t, err)
	assert.Equal(t, 1, lock.unlocked)
}

func TestRunForeverKeepsGoing(t *testing.T) {
	h := newHarness(t)
	calls := 0
	o := New(Deps{
		Catalog:    h.catalog,
		Feeds:      h.feeds,
		Downloader: h.downloader,
		Store:      h.store,
		LoadConfig: func() (*config.Document, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("bad yaml")
			}
			return &config.Document{Settings: config.DefaultSettings()}, nil
		},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.RunForever(ctx, 10*time.Millisecond, models.RunTypeScheduled) }()

	require.Eventually(t, func() bool { return h.catalog.runCount() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunForever did not stop after cancel")
	}
	assert.Error(t, o.RunForever(context.Background(), 0, models.RunTypeScheduled))
}

func TestFilenamePrefixPreference(t *testing.T) {
	seq := 7
	assert.Equal(t, "7", filenamePrefix(&seq, 2, 99))
	assert.Equal(t, "2", filenamePrefix(nil, 2, 99))
	assert.Equal(t, "99", filenamePrefix(nil, 0, 99))
}
