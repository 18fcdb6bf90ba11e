package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"podcast-archiver/internal/models"
	"podcast-archiver/pkg/tasks"
)

const (
	defaultRunsLimit     = 50
	defaultEpisodesLimit = 100
	maxLimit             = 1000
)

// episodeView adds the derived lifecycle state to an episode.
type episodeView struct {
	models.Episode
	Lifecycle string `json:"lifecycle"`
}

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"
	writeJSON(w, http.StatusOK, h.status.Refresh(r.Context(), force))
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"episode_count":       stats.EpisodeCount,
		"distinct_feed_count": stats.DistinctFeedCount,
		"total_bytes":         stats.TotalBytes,
		"total_mb":            stats.TotalMB(),
	})
}

func (h *Handlers) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRunsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := h.catalog.ListRunHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list run history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if runs == nil {
		runs = []models.RunHistory{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handlers) GetPodcasts(w http.ResponseWriter, r *http.Request) {
	podcasts, err := h.catalog.ListPodcasts(r.Context())
	if err != nil {
		h.logger.Error("failed to list podcasts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if podcasts == nil {
		podcasts = []models.Podcast{}
	}
	writeJSON(w, http.StatusOK, podcasts)
}

func (h *Handlers) GetEpisodes(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	limit, err := parseLimit(r, defaultEpisodesLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	podcast, err := h.catalog.GetPodcast(r.Context(), name)
	if err != nil {
		h.logger.Error("failed to get podcast", zap.String("feed", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if podcast == nil {
		writeError(w, http.StatusNotFound, "podcast not found")
		return
	}

	episodes, err := h.catalog.ListEpisodes(r.Context(), name, limit)
	if err != nil {
		h.logger.Error("failed to list episodes", zap.String("feed", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	views := make([]episodeView, 0, len(episodes))
	for _, ep := range episodes {
		views = append(views, episodeView{Episode: ep, Lifecycle: ep.Lifecycle()})
	}
	writeJSON(w, http.StatusOK, views)
}

// PostRun queues a manual pass. Only one manual pass may be queued at a time.
func (h *Handlers) PostRun(w http.ResponseWriter, r *http.Request) {
	task, err := tasks.NewRunPassTask(models.RunTypeManual, asynq.Unique(h.runUniqueTTL))
	if err != nil {
		h.logger.Error("could not create pass task", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	info, err := h.asynqClient.Enqueue(task)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		writeError(w, http.StatusConflict, "a pass is already queued")
		return
	case err != nil:
		h.logger.Error("could not enqueue pass task", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "could not queue pass")
		return
	}

	h.logger.Info("manual pass queued", zap.String("task_id", info.ID))
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
