package db

import (
	"context"

	"podcast-archiver/internal/models"
)

// GetStats counts episodes, distinct podcasts with episodes, and recorded bytes.
func (s *Store) GetStats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS episode_count,
			COUNT(DISTINCT podcast_name) AS distinct_feed_count,
			COALESCE(SUM(file_size), 0) AS total_bytes
		FROM episodes`)
	if err != nil {
		return models.Stats{}, wrapErr("get stats", err)
	}
	return stats, nil
}
