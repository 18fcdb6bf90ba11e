package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"podcast-archiver/internal/models"
	"podcast-archiver/internal/pipeline"
	"podcast-archiver/pkg/tasks"
)

// PassRunner runs one pass. *pipeline.Orchestrator implements it.
type PassRunner interface {
	RunOnce(ctx context.Context, runType string) (pipeline.Summary, error)
}

type TaskHandler struct {
	runner PassRunner
	logger *zap.Logger
}

func NewTaskHandler(runner PassRunner, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{runner: runner, logger: logger}
}

// HandleRunPassTask runs a pass for a pass:run task. A pass already holding
// the run lock is not a task failure: the running pass covers this request.
func (h *TaskHandler) HandleRunPassTask(ctx context.Context, t *asynq.Task) error {
	p, err := tasks.ParseRunPassPayload(t.Payload(), models.RunTypeScheduled)
	if err != nil {
		return err
	}

	log := h.logger.With(zap.String("task", t.Type()), zap.String("kind", p.Kind))
	log.Info("starting pass")

	summary, err := h.runner.RunOnce(ctx, p.Kind)
	switch {
	case errors.Is(err, pipeline.ErrPassInProgress):
		log.Info("another pass holds the run lock, skipping")
		return nil
	case err != nil:
		return fmt.Errorf("run pass: %w", err)
	}

	if !summary.OK() {
		log.Warn("pass finished with failed feeds", zap.Strings("failed", summary.FailedFeeds))
	}
	log.Info("pass done", zap.String("summary", summary.String()), zap.Duration("duration", summary.Duration))
	return nil
}

// Register wires every task type this package handles into mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeRunPass, h.HandleRunPassTask)
}
