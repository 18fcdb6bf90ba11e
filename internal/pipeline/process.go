package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/downloader"
	"podcast-archiver/internal/feed"
	"podcast-archiver/internal/logging"
	"podcast-archiver/internal/models"
	"podcast-archiver/internal/retention"
	"podcast-archiver/internal/storage"
)

// reserved is a newly catalogued episode waiting for transfer.
type reserved struct {
	entry     feed.Entry
	id        int64
	seq       *int
	uploadNum int
}

// SelectCandidates keeps entries with both a parsed date and audio, takes the
// limit newest and returns them oldest first.
func SelectCandidates(entries []feed.Entry, limit int) []feed.Entry {
	valid := make([]feed.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Valid() {
			valid = append(valid, e)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].PublishedAt.After(valid[j].PublishedAt)
	})
	if limit > 0 && len(valid) > limit {
		valid = valid[:limit]
	}

	for i, j := 0, len(valid)-1; i < j; i, j = i+1, j-1 {
		valid[i], valid[j] = valid[j], valid[i]
	}
	return valid
}

// filenamePrefix prefers the podcast sequence, then the upload number, then
// the catalog id.
func filenamePrefix(seq *int, uploadNum int, id int64) string {
	switch {
	case seq != nil:
		return strconv.Itoa(*seq)
	case uploadNum > 0:
		return strconv.Itoa(uploadNum)
	default:
		return strconv.FormatInt(id, 10)
	}
}

// ProcessFeed catalogues new episodes of one podcast, transfers them oldest
// first and applies retention. rootID is the remote root folder, or "" when
// no destination is available. A returned error means the feed was aborted;
// the result still counts the work done before that.
func (o *Orchestrator) ProcessFeed(ctx context.Context, p config.Podcast, settings config.Settings, rootID string) (FeedResult, error) {
	var result FeedResult
	log := o.logger.With(zap.String(logging.FieldFeed, p.Name))

	keepCount := models.KeepAll
	if p.KeepCount != nil {
		keepCount = *p.KeepCount
	}

	folderID, err := o.resolveFolder(ctx, p, settings, rootID)
	if err != nil {
		log.Warn("uploads skipped for this feed", zap.Error(err))
	}

	upsert := models.PodcastUpsert{Name: p.Name, RSSURL: p.RSSURL, FolderName: p.FolderName, KeepCount: &keepCount}
	if folderID != "" {
		upsert.RemoteFolderID = &folderID
	}
	if _, err := o.catalog.AddOrUpdatePodcast(ctx, upsert); err != nil {
		return result, fmt.Errorf("record podcast: %w", err)
	}

	fetchCtx, cancel := withTimeout(ctx, settings.RequestTimeout())
	entries, err := o.feeds.Fetch(fetchCtx, p.RSSURL, settings.MaxEpisodesPerCheck*oversample)
	cancel()
	if err != nil {
		return result, fmt.Errorf("fetch feed: %w", err)
	}

	candidates := SelectCandidates(entries, settings.MaxEpisodesPerCheck)
	log.Info("feed checked", zap.Int("entries", len(entries)), zap.Int("candidates", len(candidates)))

	var pending []reserved
	for _, entry := range candidates {
		exists, err := o.catalog.EpisodeExists(ctx, entry.AudioURL, entry.GUID)
		if err != nil {
			return result, fmt.Errorf("check episode %q: %w", entry.Title, err)
		}
		if exists {
			result.Skipped++
			continue
		}

		id, seq, err := o.reserve(ctx, p.Name, entry)
		if err != nil {
			return result, fmt.Errorf("reserve episode %q: %w", entry.Title, err)
		}
		result.Discovered++
		pending = append(pending, reserved{entry: entry, id: id, seq: seq, uploadNum: len(pending) + 1})

		fields := []zap.Field{zap.Int64(logging.FieldEpisodeID, id), zap.String(logging.FieldTitle, entry.Title)}
		if seq != nil {
			fields = append(fields, zap.Int(logging.FieldSeq, *seq))
		}
		log.Info("new episode", fields...)
	}

	if folderID == "" {
		if len(pending) > 0 {
			log.Warn("no destination, new episodes left reserved", zap.Int("episodes", len(pending)))
		}
		return result, nil
	}

	for _, ep := range pending {
		if err := o.transfer(ctx, log, ep, folderID, settings, &result); err != nil {
			return result, err
		}
	}

	if keepCount > 0 {
		reconciler := retention.New(o.catalog, o.store, settings.RequestTimeout(), o.logger)
		res, err := reconciler.Reconcile(ctx, p.Name, keepCount)
		result.Deleted += res.Deleted
		if err != nil {
			return result, fmt.Errorf("retention: %w", err)
		}
	}
	return result, nil
}

func (o *Orchestrator) resolveFolder(ctx context.Context, p config.Podcast, settings config.Settings, rootID string) (string, error) {
	if o.store == nil || rootID == "" {
		return "", ErrNoDestination
	}
	ctx, cancel := withTimeout(ctx, settings.RequestTimeout())
	defer cancel()

	id, err := o.store.EnsureFolder(ctx, p.FolderName, rootID)
	if err != nil {
		return "", fmt.Errorf("%w: ensure folder %q: %w", ErrNoDestination, p.FolderName, err)
	}
	return id, nil
}

// reserve inserts the catalog row, assigning the next sequence, and reads the
// sequence back.
func (o *Orchestrator) reserve(ctx context.Context, podcast string, entry feed.Entry) (int64, *int, error) {
	ep := models.NewEpisode{
		PodcastName: podcast,
		Title:       entry.Title,
		URL:         entry.AudioURL,
	}
	if entry.GUID != "" {
		guid := entry.GUID
		ep.GUID = &guid
	}
	if entry.Published != "" {
		published := entry.Published
		ep.PublishedDate = &published
	}

	id, err := o.catalog.AddEpisode(ctx, ep)
	if err != nil {
		return 0, nil, err
	}
	row, err := o.catalog.GetEpisodeByID(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	if row == nil {
		return id, nil, nil
	}
	return id, row.PodcastSeq, nil
}

// transfer downloads and uploads one reserved episode. Transfer failures are
// logged and counted; only catalog failures are returned.
func (o *Orchestrator) transfer(ctx context.Context, log *zap.Logger, ep reserved, folderID string, settings config.Settings, result *FeedResult) error {
	prefix := filenamePrefix(ep.seq, ep.uploadNum, ep.id)
	epLog := log.With(zap.Int64(logging.FieldEpisodeID, ep.id), zap.String(logging.FieldTitle, ep.entry.Title))

	transferCtx, cancel := withTimeout(ctx, settings.TransferTimeout())
	defer cancel()

	download, err := o.downloader.Fetch(transferCtx, downloader.Request{URL: ep.entry.AudioURL, Title: ep.entry.Title, Prefix: prefix})
	if err != nil {
		epLog.Error("download failed, episode stays reserved", zap.Error(err))
		result.EpisodeErrors++
		return nil
	}
	defer download.Close()
	result.Downloaded++

	upload, err := o.store.Upload(transferCtx, download.Body, download.Size, download.Filename, folderID, storage.ContentType(download.Filename))
	if err != nil {
		epLog.Error("upload failed, episode stays reserved", zap.String("filename", download.Filename), zap.Error(err))
		result.EpisodeErrors++
		return nil
	}

	size := download.Size
	if err := o.catalog.UpdateEpisodeRemoteInfo(ctx, ep.id, upload.RemoteID, upload.RemoteURL, &size); err != nil {
		return fmt.Errorf("record upload of episode %d: %w", ep.id, err)
	}

	if upload.Status == storage.StatusAlreadyExists {
		result.AlreadyExisted++
		epLog.Info("remote object already existed", zap.String(logging.FieldRemoteID, upload.RemoteID))
		return nil
	}
	result.Uploaded++
	epLog.Info("uploaded episode", zap.String(logging.FieldRemoteID, upload.RemoteID), zap.Int64("bytes", download.Size))
	return nil
}
