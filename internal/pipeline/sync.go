package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/db"
	"podcast-archiver/internal/downloader"
	"podcast-archiver/internal/logging"
	"podcast-archiver/internal/models"
	"podcast-archiver/internal/storage"
)

// SyncResult counts remote objects examined, imported and failed per
// podcast. Err is set when the podcast's import stopped early.
type SyncResult struct {
	Podcast  string
	Listed   int
	Imported int
	Failed   int
	Err      error
}

// Sync imports remote objects that the catalog does not know about, so that
// files uploaded by earlier deployments take part in retention. Imported rows
// get the next sequence and are marked present.
func (o *Orchestrator) Sync(ctx context.Context) ([]SyncResult, error) {
	if o.store == nil {
		return nil, ErrNoDestination
	}
	doc, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rootID, err := o.ensureRoot(ctx, doc.Settings)
	if err != nil {
		return nil, err
	}

	var results []SyncResult
	for _, p := range doc.EnabledPodcasts() {
		res := o.syncPodcast(ctx, p, doc.Settings, rootID)
		if res.Err != nil {
			o.logger.Error("sync failed", zap.String(logging.FieldFeed, p.Name), zap.Error(res.Err))
		}
		results = append(results, res)
	}
	return results, nil
}

func (o *Orchestrator) syncPodcast(ctx context.Context, p config.Podcast, settings config.Settings, rootID string) SyncResult {
	res := SyncResult{Podcast: p.Name}
	log := o.logger.With(zap.String(logging.FieldFeed, p.Name))

	folderID, err := o.cachedFolder(ctx, p, settings, rootID)
	if err != nil {
		res.Err = err
		return res
	}

	listCtx, cancel := withTimeout(ctx, settings.RequestTimeout())
	objects, err := o.store.List(listCtx, folderID)
	cancel()
	if err != nil {
		res.Err = fmt.Errorf("list folder: %w", err)
		return res
	}
	res.Listed = len(objects)
	sortForImport(objects)

	for _, obj := range objects {
		objLog := log.With(zap.String(logging.FieldRemoteID, obj.ID))
		known, err := o.catalog.RemoteObjectKnown(ctx, p.Name, obj.ID, obj.Name)
		if errors.Is(err, db.ErrCatalogUnavailable) {
			res.Err = err
			return res
		}
		if err != nil {
			res.Failed++
			objLog.Error("failed to check remote object", zap.Error(err))
			continue
		}
		if known {
			continue
		}

		remoteID, remoteURL, size := obj.ID, obj.URL, obj.Size
		published := obj.CreatedTime.UTC().Format(time.RFC1123Z)
		id, err := o.catalog.AddEpisode(ctx, models.NewEpisode{
			PodcastName:   p.Name,
			Title:         obj.Name,
			URL:           db.RemoteURL(obj.ID),
			PublishedDate: &published,
			RemoteFileID:  &remoteID,
			RemoteFileURL: &remoteURL,
			FileSize:      &size,
		})
		if errors.Is(err, db.ErrCatalogUnavailable) {
			res.Err = fmt.Errorf("import %q: %w", obj.Name, err)
			return res
		}
		if err != nil {
			res.Failed++
			objLog.Error("failed to import remote object", zap.Error(err))
			continue
		}
		res.Imported++
		objLog.Info("imported remote object", zap.Int64(logging.FieldEpisodeID, id))
	}
	return res
}

// sortForImport orders objects so imported rows get sequences in episode
// order: names carrying a numeric prefix first, by that number, then the rest
// by creation time. Stores list by name, which puts "10-" before "2-".
func sortForImport(objects []storage.Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		a, b := objects[i], objects[j]
		na, okA := downloader.NumericPrefix(a.Name)
		nb, okB := downloader.NumericPrefix(b.Name)
		switch {
		case okA && okB:
			if na != nb {
				return na < nb
			}
		case okA != okB:
			return okA
		default:
			if !a.CreatedTime.Equal(b.CreatedTime) {
				return a.CreatedTime.Before(b.CreatedTime)
			}
		}
		return a.Name < b.Name
	})
}

// cachedFolder prefers the folder id recorded on the podcast and creates the
// folder otherwise.
func (o *Orchestrator) cachedFolder(ctx context.Context, p config.Podcast, settings config.Settings, rootID string) (string, error) {
	record, err := o.catalog.GetPodcast(ctx, p.Name)
	if err != nil {
		return "", err
	}
	if record != nil && record.RemoteFolderID != nil && *record.RemoteFolderID != "" {
		return *record.RemoteFolderID, nil
	}

	folderID, err := o.resolveFolder(ctx, p, settings, rootID)
	if err != nil {
		return "", err
	}

	upsert := models.PodcastUpsert{Name: p.Name, RSSURL: p.RSSURL, FolderName: p.FolderName, RemoteFolderID: &folderID, KeepCount: p.KeepCount}
	if _, err := o.catalog.AddOrUpdatePodcast(ctx, upsert); err != nil {
		return "", err
	}
	return folderID, nil
}
