package pipeline

import (
	"context"
	"fmt"
	"path"
	"strconv"

	"go.uber.org/zap"

	"podcast-archiver/internal/downloader"
	"podcast-archiver/internal/logging"
)

// RenamePlan is one remote object whose name does not follow
// "<seq>-<name>".
type RenamePlan struct {
	Podcast     string
	EpisodeID   int64
	RemoteID    string
	CurrentName string
	DesiredName string
	Applied     bool
	Err         error
}

// Rename finds present episodes whose remote name does not start with their
// sequence. With apply set it renames them and records the new object id.
// An empty podcast covers every enabled podcast.
func (o *Orchestrator) Rename(ctx context.Context, podcast string, apply bool) ([]RenamePlan, error) {
	if apply && o.store == nil {
		return nil, ErrNoDestination
	}
	doc, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var plans []RenamePlan
	for _, p := range doc.EnabledPodcasts() {
		if podcast != "" && p.Name != podcast {
			continue
		}
		episodes, err := o.catalog.ListRemoteEpisodes(ctx, p.Name)
		if err != nil {
			return plans, fmt.Errorf("list episodes of %s: %w", p.Name, err)
		}
		for _, ep := range episodes {
			if ep.PodcastSeq == nil || ep.RemoteFileID == nil {
				continue
			}
			current := path.Base(*ep.RemoteFileID)
			desired := downloader.ApplyPrefix(current, strconv.Itoa(*ep.PodcastSeq))
			if current == desired {
				continue
			}
			plans = append(plans, RenamePlan{
				Podcast:     p.Name,
				EpisodeID:   ep.ID,
				RemoteID:    *ep.RemoteFileID,
				CurrentName: current,
				DesiredName: desired,
			})
		}
	}

	if !apply {
		return plans, nil
	}

	for i := range plans {
		plan := &plans[i]
		log := o.logger.With(zap.String(logging.FieldFeed, plan.Podcast), zap.Int64(logging.FieldEpisodeID, plan.EpisodeID))

		renameCtx, cancel := withTimeout(ctx, doc.Settings.RequestTimeout())
		obj, err := o.store.Rename(renameCtx, plan.RemoteID, plan.DesiredName)
		cancel()
		if err != nil {
			plan.Err = err
			log.Error("rename failed", zap.String(logging.FieldRemoteID, plan.RemoteID), zap.Error(err))
			continue
		}
		if err := o.catalog.UpdateEpisodeRemoteInfo(ctx, plan.EpisodeID, obj.ID, obj.URL, nil); err != nil {
			return plans, fmt.Errorf("record rename of episode %d: %w", plan.EpisodeID, err)
		}
		plan.Applied = true
		log.Info("renamed remote object", zap.String("from", plan.CurrentName), zap.String("to", plan.DesiredName))
	}
	return plans, nil
}
