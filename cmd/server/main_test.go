package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"podcast-curator/internal/app"
	"podcast-curator/internal/config"
	"podcast-curator/internal/logging"
	"podcast-curator/internal/podcastindex"
	"podcast-curator/internal/test"
	"podcast-curator/pkg/tasks"
)

func newTestApp(t *testing.T) (*app.App, sqlmock.Sqlmock, *test.MockTaskEnqueuer) {
	t.Helper()
	store, mock := test.NewMockDB(t)
	enqueuer := &test.MockTaskEnqueuer{}
	cfg := &config.Config{
		API: config.APIConfig{RateLimit: 1, RateBurst: 1},
	}
	logger := logging.Discard()
	client := podcastindex.New(podcastindex.Options{BaseURL: "http://127.0.0.1:0", Logger: logger})
	return app.Build(cfg, logger, store, client, enqueuer), mock, enqueuer
}

func TestRouterQueuesSyncAll(t *testing.T) {
	a, mock, enqueuer := newTestApp(t)

	rows := sqlmock.NewRows([]string{"id", "job_type", "status"}).AddRow(1, "sync_all", "PENDING")
	mock.ExpectQuery("INSERT INTO sync_logs").WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/all", nil)
	rr := httptest.NewRecorder()
	newRouter(a, a.Logger).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	if assert.Len(t, enqueuer.EnqueuedTasks, 1) {
		assert.Equal(t, tasks.TypeSyncAllPodcasts, enqueuer.EnqueuedTasks[0].Type())
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouterRateLimitsAPI(t *testing.T) {
	a, _, _ := newTestApp(t)
	router := newRouter(a, a.Logger)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
