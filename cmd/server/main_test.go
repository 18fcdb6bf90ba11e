package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"podcast-archiver/internal/config"
	"podcast-archiver/internal/test"
	"podcast-archiver/pkg/tasks"
)

func TestNewHandler(t *testing.T) {
	store, mock := test.NewMockDB(t)
	enqueuer := &test.MockTaskEnqueuer{}
	handler := newHandler(store, enqueuer, config.Env{APIToken: "secret"}, zap.NewNop())

	t.Run("health is public", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("manual run needs the token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/run", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Empty(t, enqueuer.EnqueuedTasks)
	})

	t.Run("manual run with token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		require.Len(t, enqueuer.EnqueuedTasks, 1)
		assert.Equal(t, tasks.TypeRunPass, enqueuer.EnqueuedTasks[0].Type())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
