package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"podcast-archiver/internal/models"
)

const (
	StatusReserved = "reserved"
	StatusUploaded = "uploaded"
)

const episodeColumns = `id, podcast_name, episode_title, episode_url, episode_guid, published_date, downloaded_date,
	file_path, remote_file_id, remote_file_url, file_size, status, in_drive, podcast_seq`

// EpisodeExists reports whether an episode matches url or guid. Empty keys are
// ignored; with neither key it reports false.
func (s *Store) EpisodeExists(ctx context.Context, url, guid string) (bool, error) {
	var (
		conds []string
		args  []any
	)
	if url != "" {
		args = append(args, url)
		conds = append(conds, "episode_url = $1")
	}
	if guid != "" {
		args = append(args, guid)
		if len(args) == 1 {
			conds = append(conds, "episode_guid = $1")
		} else {
			conds = append(conds, "episode_guid = $2")
		}
	}
	if len(conds) == 0 {
		return false, nil
	}

	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM episodes WHERE " + strings.Join(conds, " OR ") + ")"
	if err := s.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, wrapErr("check episode exists", err)
	}
	return exists, nil
}

// AddEpisode inserts a new episode and assigns it the next podcast_seq for its
// podcast. The max-then-insert runs under a per-podcast transaction-scoped
// advisory lock so concurrent writers can never allocate the same sequence.
func (s *Store) AddEpisode(ctx context.Context, ep models.NewEpisode) (int64, error) {
	status := StatusReserved
	inDrive := false
	if ep.RemoteFileID != nil {
		status = StatusUploaded
		inDrive = true
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrapErr("begin add episode", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ep.PodcastName); err != nil {
		return 0, wrapErr("lock podcast sequence", err)
	}

	var id int64
	err = tx.GetContext(ctx, &id, `
		INSERT INTO episodes
			(podcast_name, episode_title, episode_url, episode_guid, published_date, file_path,
			 remote_file_id, remote_file_url, file_size, status, in_drive, podcast_seq)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::text,
			$7::text, $8::text, $9::bigint, $10::text, $11::boolean, COALESCE(MAX(podcast_seq), 0) + 1
		FROM episodes
		WHERE podcast_name = $1
		RETURNING id`,
		ep.PodcastName, ep.Title, ep.URL, ep.GUID, ep.PublishedDate, ep.FilePath,
		ep.RemoteFileID, ep.RemoteFileURL, ep.FileSize, status, inDrive)
	if err != nil {
		return 0, wrapErr("insert episode", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapErr("commit episode", err)
	}
	return id, nil
}

// GetEpisodeByID returns the episode or nil when no row has that id.
func (s *Store) GetEpisodeByID(ctx context.Context, id int64) (*models.Episode, error) {
	episode := models.Episode{}
	err := s.db.GetContext(ctx, &episode, "SELECT "+episodeColumns+" FROM episodes WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get episode", err)
	}
	return &episode, nil
}

// UpdateEpisodeRemoteInfo attaches the uploaded object and marks the episode
// present. A nil size leaves the recorded size unchanged.
func (s *Store) UpdateEpisodeRemoteInfo(ctx context.Context, id int64, remoteID, remoteURL string, size *int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE episodes
		SET remote_file_id = $1, remote_file_url = $2, file_size = COALESCE($3, file_size), in_drive = TRUE, status = $4
		WHERE id = $5`,
		remoteID, remoteURL, size, StatusUploaded, id)
	return wrapErr("update episode remote info", err)
}

// MarkEpisodePresence sets only the presence flag.
func (s *Store) MarkEpisodePresence(ctx context.Context, id int64, present bool) error {
	_, err := s.db.ExecContext(ctx, "UPDATE episodes SET in_drive = $1 WHERE id = $2", present, id)
	return wrapErr("mark episode presence", err)
}

// GetPresentEpisodes returns the podcast's episodes believed to exist in the
// remote store, newest discovery first.
func (s *Store) GetPresentEpisodes(ctx context.Context, podcast string) ([]models.Episode, error) {
	var episodes []models.Episode
	err := s.db.SelectContext(ctx, &episodes, `
		SELECT `+episodeColumns+`
		FROM episodes
		WHERE podcast_name = $1 AND remote_file_id IS NOT NULL AND in_drive = TRUE
		ORDER BY downloaded_date DESC, id DESC`,
		podcast)
	if err != nil {
		return nil, wrapErr("get present episodes", err)
	}
	return episodes, nil
}

// ListEpisodes returns episodes newest discovery first. An empty podcast lists
// every podcast; a limit of zero or less means no limit.
func (s *Store) ListEpisodes(ctx context.Context, podcast string, limit int) ([]models.Episode, error) {
	query := "SELECT " + episodeColumns + " FROM episodes"
	var args []any
	if podcast != "" {
		query += " WHERE podcast_name = $1"
		args = append(args, podcast)
	}
	query += " ORDER BY downloaded_date DESC, id DESC"
	if limit > 0 {
		args = append(args, limit)
		if podcast != "" {
			query += " LIMIT $2"
		} else {
			query += " LIMIT $1"
		}
	}

	var episodes []models.Episode
	if err := s.db.SelectContext(ctx, &episodes, query, args...); err != nil {
		return nil, wrapErr("list episodes", err)
	}
	return episodes, nil
}

// RemoteObjectKnown reports whether a remote object is already represented in
// the catalog, by object id, by its synthetic url, or by podcast and title.
func (s *Store) RemoteObjectKnown(ctx context.Context, podcast, remoteID, name string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM episodes
			WHERE remote_file_id = $1 OR episode_url = $2 OR (podcast_name = $3 AND episode_title = $4)
		)`,
		remoteID, RemoteURL(remoteID), podcast, name)
	if err != nil {
		return false, wrapErr("check remote object", err)
	}
	return exists, nil
}

// RemoteURL is the dedup url recorded for episodes imported from the remote
// store rather than discovered in a feed.
func RemoteURL(remoteID string) string {
	return "remote://" + remoteID
}

// ListRemoteEpisodes returns the podcast's present episodes that carry a
// sequence, in sequence order.
func (s *Store) ListRemoteEpisodes(ctx context.Context, podcast string) ([]models.Episode, error) {
	var episodes []models.Episode
	err := s.db.SelectContext(ctx, &episodes, `
		SELECT `+episodeColumns+`
		FROM episodes
		WHERE podcast_name = $1 AND remote_file_id IS NOT NULL AND in_drive = TRUE AND podcast_seq IS NOT NULL
		ORDER BY podcast_seq`,
		podcast)
	if err != nil {
		return nil, wrapErr("list remote episodes", err)
	}
	return episodes, nil
}
