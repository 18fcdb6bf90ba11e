package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"podcast-archiver/internal/logging"
	"podcast-archiver/internal/models"
	"podcast-archiver/internal/storage"
)

// Catalog is the part of the catalog the reconciler reads and updates.
type Catalog interface {
	GetPresentEpisodes(ctx context.Context, podcast string) ([]models.Episode, error)
	MarkEpisodePresence(ctx context.Context, id int64, present bool) error
}

// Deleter removes remote objects.
type Deleter interface {
	Delete(ctx context.Context, remoteID string) error
}

// Result counts what one reconciliation did.
type Result struct {
	Present int
	Deleted int
	Failed  int
}

// Reconciler trims each podcast's remote copies down to its keep count.
type Reconciler struct {
	catalog Catalog
	store   Deleter
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a Reconciler. timeout bounds each delete call; zero disables
// the bound.
func New(catalog Catalog, store Deleter, timeout time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{catalog: catalog, store: store, timeout: timeout, logger: logger}
}

// Reconcile deletes the remote copies of every present episode beyond the
// keepCount most recently discovered ones. A keepCount of KeepAll (or any
// non-positive value) is a no-op. A delete the store answers with not-found
// counts as deleted and marks the episode absent, since the copy is gone
// either way. Other delete failures leave the episode present for the next
// pass; only catalog failures are returned.
func (r *Reconciler) Reconcile(ctx context.Context, podcast string, keepCount int) (Result, error) {
	log := r.logger.With(zap.String(logging.FieldFeed, podcast))
	if keepCount <= 0 {
		log.Debug("retention disabled", zap.Int("keep_count", keepCount))
		return Result{}, nil
	}

	present, err := r.catalog.GetPresentEpisodes(ctx, podcast)
	if err != nil {
		return Result{}, fmt.Errorf("load present episodes: %w", err)
	}

	result := Result{Present: len(present)}
	if len(present) <= keepCount {
		log.Info("retention satisfied", zap.Int("present", len(present)), zap.Int("keep_count", keepCount))
		return result, nil
	}

	surplus := present[keepCount:]
	log.Info("applying retention",
		zap.Int("present", len(present)),
		zap.Int("keep_count", keepCount),
		zap.Int("surplus", len(surplus)))

	for _, episode := range surplus {
		if episode.RemoteFileID == nil {
			continue
		}
		epLog := log.With(
			zap.Int64(logging.FieldEpisodeID, episode.ID),
			zap.String(logging.FieldRemoteID, *episode.RemoteFileID))

		if err := r.delete(ctx, *episode.RemoteFileID); err != nil {
			if !storage.IsNotFound(err) {
				epLog.Error("failed to delete remote copy", zap.Error(err))
				result.Failed++
				continue
			}
			epLog.Warn("remote copy already gone")
		}

		if err := r.catalog.MarkEpisodePresence(ctx, episode.ID, false); err != nil {
			return result, fmt.Errorf("mark episode %d absent: %w", episode.ID, err)
		}
		result.Deleted++
		epLog.Info("deleted remote copy", zap.String(logging.FieldTitle, episode.Title))
	}

	return result, nil
}

func (r *Reconciler) delete(ctx context.Context, remoteID string) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.store.Delete(ctx, remoteID)
}
