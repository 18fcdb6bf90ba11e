package handlers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"podcast-archiver/internal/models"
)

// Status is the dashboard summary served by /api/status.
type Status struct {
	CatalogOK    bool               `json:"catalog_ok"`
	CatalogError string             `json:"catalog_error,omitempty"`
	LastRun      *models.RunHistory `json:"last_run,omitempty"`
	Stats        *models.Stats      `json:"stats,omitempty"`
	CheckedAt    time.Time          `json:"checked_at"`
}

// StatusCache holds one computed Status for ttl.
type StatusCache struct {
	mu        sync.Mutex
	value     Status
	timestamp time.Time
	ttl       time.Duration
	load      func(ctx context.Context) Status
	now       func() time.Time
}

func NewStatusCache(ttl time.Duration, load func(ctx context.Context) Status) *StatusCache {
	return &StatusCache{ttl: ttl, load: load, now: time.Now}
}

// Refresh returns the cached status, recomputing it when forced, when nothing
// is cached yet or when the cached value is older than ttl.
func (c *StatusCache) Refresh(ctx context.Context, force bool) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !force && !c.timestamp.IsZero() && now.Sub(c.timestamp) < c.ttl {
		return c.value
	}
	c.value = c.load(ctx)
	c.timestamp = now
	return c.value
}

func (h *Handlers) loadStatus(ctx context.Context) Status {
	st := Status{CheckedAt: time.Now().UTC()}
	if err := h.catalog.Ping(ctx); err != nil {
		st.CatalogError = err.Error()
		return st
	}
	st.CatalogOK = true

	runs, err := h.catalog.ListRunHistory(ctx, 1)
	if err != nil {
		h.logger.Warn("status: failed to read run history", zap.Error(err))
	} else if len(runs) > 0 {
		st.LastRun = &runs[0]
	}

	stats, err := h.catalog.GetStats(ctx)
	if err != nil {
		h.logger.Warn("status: failed to read stats", zap.Error(err))
	} else {
		st.Stats = &stats
	}
	return st
}
