package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeRunPass = "pass:run"
)

// RunPassPayload says who asked for the pass. Kind ends up in run history.
type RunPassPayload struct {
	Kind string `json:"kind"`
}

// NewRunPassTask builds a pass task. MaxRetry is zero: a failed pass is simply
// picked up again by the next scheduled one.
func NewRunPassTask(kind string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(RunPassPayload{Kind: kind})
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.MaxRetry(0)}, opts...)
	return asynq.NewTask(TypeRunPass, payload, opts...), nil
}

// UniqueFor keeps a second pass task from being queued while one is pending.
func UniqueFor(d time.Duration) asynq.Option {
	if d <= 0 {
		d = time.Hour
	}
	return asynq.Unique(d)
}

// ParseRunPassPayload decodes a pass task payload. An empty payload is a
// scheduled pass.
func ParseRunPassPayload(data []byte, fallback string) (RunPassPayload, error) {
	p := RunPassPayload{Kind: fallback}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.Kind == "" {
		p.Kind = fallback
	}
	return p, nil
}
