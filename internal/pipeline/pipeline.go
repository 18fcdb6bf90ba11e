package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/db"
	"podcast-archiver/internal/downloader"
	"podcast-archiver/internal/feed"
	"podcast-archiver/internal/logging"
	"podcast-archiver/internal/models"
	"podcast-archiver/internal/retention"
	"podcast-archiver/internal/storage"
)

// oversample is how many raw feed entries are requested per episode the pass
// may keep, so entries without a date or audio do not starve the cap.
const oversample = 10

var (
	// ErrNoDestination marks feeds whose remote folder could not be resolved.
	ErrNoDestination = errors.New("no remote destination")
	// ErrPassInProgress is returned when the run lock is held elsewhere.
	ErrPassInProgress = errors.New("a pass is already in progress")
)

// Catalog is everything the orchestrator needs from the persistent catalog.
type Catalog interface {
	retention.Catalog
	Ping(ctx context.Context) error
	EpisodeExists(ctx context.Context, url, guid string) (bool, error)
	AddEpisode(ctx context.Context, ep models.NewEpisode) (int64, error)
	GetEpisodeByID(ctx context.Context, id int64) (*models.Episode, error)
	UpdateEpisodeRemoteInfo(ctx context.Context, id int64, remoteID, remoteURL string, size *int64) error
	AddOrUpdatePodcast(ctx context.Context, p models.PodcastUpsert) (int64, error)
	GetPodcast(ctx context.Context, name string) (*models.Podcast, error)
	AddRunHistory(ctx context.Context, runID, runType, status, message string) error
	GetStats(ctx context.Context) (models.Stats, error)
	RemoteObjectKnown(ctx context.Context, podcast, remoteID, name string) (bool, error)
	ListRemoteEpisodes(ctx context.Context, podcast string) ([]models.Episode, error)
}

// FeedReader returns up to max raw entries of a feed.
type FeedReader interface {
	Fetch(ctx context.Context, url string, max int) ([]feed.Entry, error)
}

// Downloader fetches one episode's audio.
type Downloader interface {
	Fetch(ctx context.Context, req downloader.Request) (*downloader.Download, error)
}

// Locker serialises passes.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// ConfigLoader returns the current podcasts document. It is called at the
// start of every pass so edits apply without a restart.
type ConfigLoader func() (*config.Document, error)

// Deps are the orchestrator's collaborators. Store may be nil, in which case
// episodes are still catalogued but nothing is downloaded or uploaded.
type Deps struct {
	Catalog    Catalog
	Feeds      FeedReader
	Downloader Downloader
	Store      storage.ObjectStore
	LoadConfig ConfigLoader
	Lock       Locker
}

// Orchestrator runs passes over every enabled podcast.
type Orchestrator struct {
	catalog    Catalog
	feeds      FeedReader
	downloader Downloader
	store      storage.ObjectStore
	loadConfig ConfigLoader
	lock       Locker
	logger     *zap.Logger
}

func New(deps Deps, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		catalog:    deps.Catalog,
		feeds:      deps.Feeds,
		downloader: deps.Downloader,
		store:      deps.Store,
		loadConfig: deps.LoadConfig,
		lock:       deps.Lock,
		logger:     logger,
	}
}

// RunOnce runs one full pass. Per-feed and per-episode failures are counted in
// the summary; an error is returned only when the pass could not run at all.
func (o *Orchestrator) RunOnce(ctx context.Context, runType string) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), RunType: runType}
	started := time.Now()
	log := o.logger.With(zap.String(logging.FieldRunID, summary.RunID), zap.String("run_type", runType))

	if o.lock != nil {
		ok, err := o.lock.TryLock()
		if err != nil {
			return summary, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return summary, ErrPassInProgress
		}
		defer func() {
			if err := o.lock.Unlock(); err != nil {
				log.Warn("failed to release run lock", zap.Error(err))
			}
		}()
	}

	if err := o.catalog.Ping(ctx); err != nil {
		log.Error("catalog unavailable, aborting pass", zap.Error(err))
		if !errors.Is(err, db.ErrCatalogUnavailable) {
			err = fmt.Errorf("%w: %w", db.ErrCatalogUnavailable, err)
		}
		return summary, err
	}
	o.recordRun(ctx, log, summary.RunID, runType, models.RunStatusStarted, "")

	doc, err := o.loadConfig()
	if err != nil {
		log.Error("failed to load podcasts config", zap.Error(err))
		o.recordRun(ctx, log, summary.RunID, runType, models.RunStatusError, err.Error())
		return summary, fmt.Errorf("load config: %w", err)
	}
	settings := doc.Settings

	rootID, err := o.ensureRoot(ctx, settings)
	if err != nil {
		log.Error("remote root folder unavailable, uploads disabled for this pass", zap.Error(err))
	}

	for _, podcast := range doc.EnabledPodcasts() {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(started)
			o.recordRun(ctx, log, summary.RunID, runType, models.RunStatusError, "cancelled: "+summary.String())
			return summary, err
		}

		summary.Feeds++
		result, err := o.ProcessFeed(ctx, podcast, settings, rootID)
		summary.add(result)
		if err != nil {
			summary.FeedErrors++
			summary.FailedFeeds = append(summary.FailedFeeds, podcast.Name)
			log.Error("failed to process feed", zap.String(logging.FieldFeed, podcast.Name), zap.Error(err))
		}
	}
	summary.Duration = time.Since(started)

	o.logStats(ctx, log)

	status := models.RunStatusCompleted
	if summary.FeedErrors > 0 {
		status = models.RunStatusError
	}
	o.recordRun(ctx, log, summary.RunID, runType, status, summary.String())
	log.Info("pass finished", zap.String("summary", summary.String()))
	return summary, nil
}

// RunForever runs a pass immediately and then once per interval until ctx is
// cancelled. Pass errors are logged and never stop the loop.
func (o *Orchestrator) RunForever(ctx context.Context, interval time.Duration, runType string) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunOnce(ctx, runType); err != nil {
			o.logger.Error("pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) ensureRoot(ctx context.Context, settings config.Settings) (string, error) {
	if o.store == nil {
		return "", ErrNoDestination
	}
	ctx, cancel := withTimeout(ctx, settings.RequestTimeout())
	defer cancel()

	id, err := o.store.EnsureFolder(ctx, settings.RootFolder, "")
	if err != nil {
		return "", fmt.Errorf("ensure root folder %q: %w", settings.RootFolder, err)
	}
	return id, nil
}

func (o *Orchestrator) recordRun(ctx context.Context, log *zap.Logger, runID, runType, status, message string) {
	if err := o.catalog.AddRunHistory(ctx, runID, runType, status, message); err != nil {
		log.Warn("failed to record run history", zap.String("status", status), zap.Error(err))
	}
}

func (o *Orchestrator) logStats(ctx context.Context, log *zap.Logger) {
	stats, err := o.catalog.GetStats(ctx)
	if err != nil {
		log.Warn("failed to read catalog stats", zap.Error(err))
		return
	}
	log.Info("catalog stats",
		zap.Int64("episodes", stats.EpisodeCount),
		zap.Int64("podcasts", stats.DistinctFeedCount),
		zap.String("total_mb", fmt.Sprintf("%.1f", stats.TotalMB())))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
