package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"podcast-archiver/internal/middleware"
	"podcast-archiver/internal/models"
	"podcast-archiver/pkg/tasks"
)

// DefaultStatusTTL is how long a computed status is served before the catalog
// is asked again.
const DefaultStatusTTL = 30 * time.Second

// Catalog is the read side of the catalog the API exposes.
type Catalog interface {
	Ping(ctx context.Context) error
	GetStats(ctx context.Context) (models.Stats, error)
	ListRunHistory(ctx context.Context, limit int) ([]models.RunHistory, error)
	ListPodcasts(ctx context.Context) ([]models.Podcast, error)
	GetPodcast(ctx context.Context, name string) (*models.Podcast, error)
	ListEpisodes(ctx context.Context, podcast string, limit int) ([]models.Episode, error)
	GetPresentEpisodes(ctx context.Context, podcast string) ([]models.Episode, error)
}

type Options struct {
	// BaseURL overrides the scheme and host used in mirror feeds.
	BaseURL   string
	StatusTTL time.Duration
	// RunUniqueTTL bounds how long a queued manual pass blocks another one.
	RunUniqueTTL time.Duration
}

type Handlers struct {
	catalog      Catalog
	asynqClient  tasks.TaskEnqueuer
	status       *StatusCache
	baseURL      string
	runUniqueTTL time.Duration
	logger       *zap.Logger
}

func New(catalog Catalog, asynqClient tasks.TaskEnqueuer, opts Options, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = DefaultStatusTTL
	}
	if opts.RunUniqueTTL <= 0 {
		opts.RunUniqueTTL = 30 * time.Minute
	}
	h := &Handlers{
		catalog:      catalog,
		asynqClient:  asynqClient,
		baseURL:      opts.BaseURL,
		runUniqueTTL: opts.RunUniqueTTL,
		logger:       logger,
	}
	h.status = NewStatusCache(opts.StatusTTL, h.loadStatus)
	return h
}

// NewRouter mounts the API behind bearer auth and the mirror feeds without it,
// since podcast clients cannot send custom headers. Both are rate limited.
func NewRouter(h *Handlers, token string, limiter *middleware.RateLimiterMiddleware) *mux.Router {
	r := mux.NewRouter()
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(token))
	api.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)
	api.HandleFunc("/runs", h.GetRuns).Methods(http.MethodGet)
	api.HandleFunc("/podcasts", h.GetPodcasts).Methods(http.MethodGet)
	api.HandleFunc("/podcasts/{name}/episodes", h.GetEpisodes).Methods(http.MethodGet)
	api.HandleFunc("/run", h.PostRun).Methods(http.MethodPost)

	r.HandleFunc("/rss/{name}", h.GetRSSFeed).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	return r
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
