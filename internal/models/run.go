package models

import "time"

const (
	RunTypeProcess   = "process"
	RunTypeManual    = "manual"
	RunTypeScheduled = "scheduled"

	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusError     = "error"
)

// RunHistory is one append-only entry describing an orchestration pass.
type RunHistory struct {
	ID        int64     `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	RunType   string    `db:"run_type" json:"run_type"`
	Status    string    `db:"status" json:"status"`
	Message   *string   `db:"message" json:"message,omitempty"`
}
