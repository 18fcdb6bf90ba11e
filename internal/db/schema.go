package db

import "context"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS episodes (
		id BIGSERIAL PRIMARY KEY,
		podcast_name TEXT NOT NULL,
		episode_title TEXT NOT NULL,
		episode_url TEXT NOT NULL UNIQUE,
		episode_guid TEXT,
		published_date TEXT,
		downloaded_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		file_path TEXT,
		remote_file_id TEXT,
		remote_file_url TEXT,
		file_size BIGINT,
		status TEXT NOT NULL DEFAULT 'reserved',
		in_drive BOOLEAN NOT NULL DEFAULT FALSE,
		podcast_seq INTEGER,
		UNIQUE (podcast_name, podcast_seq)
	)`,
	`CREATE TABLE IF NOT EXISTS podcasts (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		rss_url TEXT NOT NULL,
		folder_name TEXT NOT NULL,
		last_checked TIMESTAMPTZ,
		remote_folder_id TEXT,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		keep_count INTEGER NOT NULL DEFAULT -1
	)`,
	`CREATE TABLE IF NOT EXISTS run_history (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		run_type TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_episode_url ON episodes(episode_url)`,
	`CREATE INDEX IF NOT EXISTS idx_podcast_name ON episodes(podcast_name)`,
	`CREATE INDEX IF NOT EXISTS idx_episode_guid ON episodes(episode_guid)`,
}

// EnsureSchema creates the catalog tables and indexes if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrapErr("create schema", err)
		}
	}
	return nil
}
