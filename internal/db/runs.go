package db

import (
	"context"

	"podcast-archiver/internal/models"
)

// AddRunHistory appends a run-history entry.
func (s *Store) AddRunHistory(ctx context.Context, runID, runType, status, message string) error {
	var msg *string
	if message != "" {
		msg = &message
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO run_history (run_id, run_type, status, message) VALUES ($1, $2, $3, $4)",
		runID, runType, status, msg)
	return wrapErr("add run history", err)
}

// ListRunHistory returns the most recent entries first.
func (s *Store) ListRunHistory(ctx context.Context, limit int) ([]models.RunHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.RunHistory
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, run_id, timestamp, run_type, status, message
		FROM run_history
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, wrapErr("list run history", err)
	}
	return runs, nil
}
