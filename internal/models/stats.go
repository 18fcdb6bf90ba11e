package models

// Stats summarises the catalog.
type Stats struct {
	EpisodeCount      int64 `db:"episode_count" json:"episode_count"`
	DistinctFeedCount int64 `db:"distinct_feed_count" json:"distinct_feed_count"`
	TotalBytes        int64 `db:"total_bytes" json:"total_bytes"`
}

// TotalMB returns TotalBytes in mebibytes.
func (s Stats) TotalMB() float64 {
	return float64(s.TotalBytes) / (1024 * 1024)
}
