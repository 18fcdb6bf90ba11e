package models

import "time"

// KeepAll is the keep_count sentinel meaning every uploaded episode stays in
// the remote store.
const KeepAll = -1

// Podcast is the catalog record for one configured feed.
type Podcast struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	RSSURL         string     `db:"rss_url" json:"rss_url"`
	FolderName     string     `db:"folder_name" json:"folder_name"`
	LastChecked    *time.Time `db:"last_checked" json:"last_checked,omitempty"`
	RemoteFolderID *string    `db:"remote_folder_id" json:"remote_folder_id,omitempty"`
	Enabled        bool       `db:"enabled" json:"enabled"`
	KeepCount      int        `db:"keep_count" json:"keep_count"`
}

// RetainsAll reports whether retention is disabled for the podcast.
func (p Podcast) RetainsAll() bool {
	return p.KeepCount <= 0
}

// PodcastUpsert is the input to the feed upsert. A nil KeepCount is stored as
// KeepAll.
type PodcastUpsert struct {
	Name           string
	RSSURL         string
	FolderName     string
	RemoteFolderID *string
	KeepCount      *int
}
