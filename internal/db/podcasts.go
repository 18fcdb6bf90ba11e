package db

import (
	"context"
	"database/sql"
	"errors"

	"podcast-archiver/internal/models"
)

const podcastColumns = `id, name, rss_url, folder_name, last_checked, remote_folder_id, enabled, keep_count`

// AddOrUpdatePodcast upserts a podcast keyed on name and returns its id.
func (s *Store) AddOrUpdatePodcast(ctx context.Context, p models.PodcastUpsert) (int64, error) {
	keepCount := models.KeepAll
	if p.KeepCount != nil {
		keepCount = *p.KeepCount
	}

	query := `
		INSERT INTO podcasts (name, rss_url, folder_name, last_checked, remote_folder_id, keep_count)
		VALUES ($1, $2, $3, NOW(), $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			rss_url = EXCLUDED.rss_url,
			folder_name = EXCLUDED.folder_name,
			last_checked = EXCLUDED.last_checked,
			remote_folder_id = EXCLUDED.remote_folder_id,
			keep_count = EXCLUDED.keep_count
		RETURNING id
	`
	var id int64
	if err := s.db.GetContext(ctx, &id, query, p.Name, p.RSSURL, p.FolderName, p.RemoteFolderID, keepCount); err != nil {
		return 0, wrapErr("upsert podcast", err)
	}
	return id, nil
}

// GetPodcast returns the podcast or nil when it is not catalogued.
func (s *Store) GetPodcast(ctx context.Context, name string) (*models.Podcast, error) {
	podcast := models.Podcast{}
	err := s.db.GetContext(ctx, &podcast, "SELECT "+podcastColumns+" FROM podcasts WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get podcast", err)
	}
	return &podcast, nil
}

func (s *Store) ListPodcasts(ctx context.Context) ([]models.Podcast, error) {
	var podcasts []models.Podcast
	if err := s.db.SelectContext(ctx, &podcasts, "SELECT "+podcastColumns+" FROM podcasts ORDER BY name"); err != nil {
		return nil, wrapErr("list podcasts", err)
	}
	return podcasts, nil
}

func (s *Store) UpdatePodcastFolderID(ctx context.Context, name, folderID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE podcasts SET remote_folder_id = $1 WHERE name = $2", folderID, name)
	return wrapErr("update podcast folder", err)
}
