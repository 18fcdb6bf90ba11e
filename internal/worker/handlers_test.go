package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-archiver/internal/db"
	"podcast-archiver/internal/models"
	"podcast-archiver/internal/pipeline"
	"podcast-archiver/pkg/tasks"
)

type fakeRunner struct {
	kinds   []string
	summary pipeline.Summary
	err     error
}

func (f *fakeRunner) RunOnce(ctx context.Context, runType string) (pipeline.Summary, error) {
	f.kinds = append(f.kinds, runType)
	return f.summary, f.err
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleRunPassTask(t *testing.T) {
	t.Run("runs with the payload kind", func(t *testing.T) {
		runner := &fakeRunner{summary: pipeline.Summary{Feeds: 2}}
		h := NewTaskHandler(runner, nil)

		task, err := tasks.NewRunPassTask(models.RunTypeManual)
		require.NoError(t, err)

		assert.NoError(t, h.HandleRunPassTask(context.Background(), task))
		assert.Equal(t, []string{models.RunTypeManual}, runner.kinds)
	})

	t.Run("empty payload is a scheduled pass", func(t *testing.T) {
		runner := &fakeRunner{}
		h := NewTaskHandler(runner, nil)

		err := h.HandleRunPassTask(context.Background(), asynq.NewTask(tasks.TypeRunPass, nil))
		assert.NoError(t, err)
		assert.Equal(t, []string{models.RunTypeScheduled}, runner.kinds)
	})

	t.Run("held lock is not a failure", func(t *testing.T) {
		runner := &fakeRunner{err: pipeline.ErrPassInProgress}
		h := NewTaskHandler(runner, nil)

		task := asynq.NewTask(tasks.TypeRunPass, mustMarshal(t, tasks.RunPassPayload{Kind: models.RunTypeScheduled}))
		assert.NoError(t, h.HandleRunPassTask(context.Background(), task))
	})

	t.Run("catalog outage fails the task", func(t *testing.T) {
		runner := &fakeRunner{err: db.ErrCatalogUnavailable}
		h := NewTaskHandler(runner, nil)

		task := asynq.NewTask(tasks.TypeRunPass, nil)
		err := h.HandleRunPassTask(context.Background(), task)
		assert.ErrorIs(t, err, db.ErrCatalogUnavailable)
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		runner := &fakeRunner{}
		h := NewTaskHandler(runner, nil)

		err := h.HandleRunPassTask(context.Background(), asynq.NewTask(tasks.TypeRunPass, []byte("{")))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		assert.Empty(t, runner.kinds)
	})

	t.Run("feed failures still complete the task", func(t *testing.T) {
		runner := &fakeRunner{summary: pipeline.Summary{Feeds: 3, FeedErrors: 1, FailedFeeds: []string{"B"}}}
		h := NewTaskHandler(runner, nil)

		assert.NoError(t, h.HandleRunPassTask(context.Background(), asynq.NewTask(tasks.TypeRunPass, nil)))
	})
}

func TestRegister(t *testing.T) {
	runner := &fakeRunner{}
	h := NewTaskHandler(runner, nil)
	mux := asynq.NewServeMux()
	h.Register(mux)

	err := mux.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeRunPass, nil))
	assert.NoError(t, err)
	assert.Len(t, runner.kinds, 1)
}

func TestNewRunPassTask(t *testing.T) {
	task, err := tasks.NewRunPassTask(models.RunTypeManual)
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeRunPass, task.Type())

	p, err := tasks.ParseRunPassPayload(task.Payload(), models.RunTypeScheduled)
	require.NoError(t, err)
	assert.Equal(t, models.RunTypeManual, p.Kind)
}
