package models

import "time"

// Episode is one discovered remote media item. Rows are never deleted; only
// the remote copy is, which flips InDrive to false.
type Episode struct {
	ID             int64     `db:"id" json:"id"`
	PodcastName    string    `db:"podcast_name" json:"podcast_name"`
	Title          string    `db:"episode_title" json:"title"`
	URL            string    `db:"episode_url" json:"url"`
	GUID           *string   `db:"episode_guid" json:"guid,omitempty"`
	PublishedDate  *string   `db:"published_date" json:"published_date,omitempty"`
	DownloadedDate time.Time `db:"downloaded_date" json:"downloaded_date"`
	FilePath       *string   `db:"file_path" json:"file_path,omitempty"`
	RemoteFileID   *string   `db:"remote_file_id" json:"remote_file_id,omitempty"`
	RemoteFileURL  *string   `db:"remote_file_url" json:"remote_file_url,omitempty"`
	FileSize       *int64    `db:"file_size" json:"file_size,omitempty"`
	Status         string    `db:"status" json:"status"`
	InDrive        bool      `db:"in_drive" json:"in_drive"`
	PodcastSeq     *int      `db:"podcast_seq" json:"podcast_seq,omitempty"`
}

// NewEpisode carries the fields supplied when an episode is first catalogued.
type NewEpisode struct {
	PodcastName   string
	Title         string
	URL           string
	GUID          *string
	PublishedDate *string
	FilePath      *string
	RemoteFileID  *string
	RemoteFileURL *string
	FileSize      *int64
}

// Lifecycle reports where the episode's remote copy stands.
func (e Episode) Lifecycle() string {
	switch {
	case e.InDrive && e.RemoteFileID != nil:
		return LifecyclePresent
	case e.RemoteFileID != nil:
		return LifecycleAbsent
	default:
		return LifecycleReserved
	}
}

const (
	LifecycleReserved = "reserved"
	LifecyclePresent  = "present"
	LifecycleAbsent   = "absent"
)
