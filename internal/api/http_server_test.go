package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"driftq/internal/config"
	"driftq/internal/database"
	"driftq/internal/dispatch"
	"driftq/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	status     *models.EngineStatus
	actions    []models.QueuedAction
	failed     []models.QueuedAction
	retryErr   error
	removeErr  error
	cleared    int64
	syncErr    error
	exportPath string
	exportErr  error
}

func (f *fakeQueue) Snapshot(ctx context.Context) (*models.EngineStatus, error) {
	return f.status, nil
}

func (f *fakeQueue) ListQueue(ctx context.Context) ([]models.QueuedAction, error) {
	return f.actions, nil
}

func (f *fakeQueue) ListFailed(ctx context.Context) ([]models.QueuedAction, error) {
	return f.failed, nil
}

func (f *fakeQueue) RetryAction(ctx context.Context, id string) error  { return f.retryErr }
func (f *fakeQueue) RemoveAction(ctx context.Context, id string) error { return f.removeErr }

func (f *fakeQueue) ClearFailed(ctx context.Context) (int64, error) { return f.cleared, nil }
func (f *fakeQueue) TriggerSync(ctx context.Context) error          { return f.syncErr }

func (f *fakeQueue) ExportQueue(ctx context.Context, dir string) (string, error) {
	return f.exportPath, f.exportErr
}

type fakeMutator struct {
	outcome    *dispatch.Outcome
	err        error
	actionType string
}

func (f *fakeMutator) ExecuteOrQueue(ctx context.Context, actionType string, payload json.RawMessage) (*dispatch.Outcome, error) {
	f.actionType = actionType
	return f.outcome, f.err
}

func newTestServer(t *testing.T, queue *fakeQueue, mutator *fakeMutator) *HTTPServer {
	t.Helper()
	logger := zerolog.Nop()
	cfg := config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}
	return NewHTTPServer(cfg, queue, mutator, t.TempDir(), &logger)
}

func doRequest(t *testing.T, srv *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	queue := &fakeQueue{status: &models.EngineStatus{State: models.SyncIdle, Online: true, QueueDepth: 2}}
	srv := newTestServer(t, queue, &fakeMutator{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.EngineStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.SyncIdle, got.State)
	assert.True(t, got.Online)
	assert.Equal(t, 2, got.QueueDepth)
}

func TestHandleActions(t *testing.T) {
	t.Run("Executed", func(t *testing.T) {
		mutator := &fakeMutator{outcome: &dispatch.Outcome{Executed: true}}
		srv := newTestServer(t, &fakeQueue{}, mutator)

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/actions",
			`{"action_type":"createTodo","payload":{"title":"Buy milk"}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "createTodo", mutator.actionType)
	})

	t.Run("Queued", func(t *testing.T) {
		mutator := &fakeMutator{outcome: &dispatch.Outcome{
			Queued: true,
			Action: &models.QueuedAction{ID: "a-1", ActionType: "createTodo", Status: models.ActionPending},
		}}
		srv := newTestServer(t, &fakeQueue{}, mutator)

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/actions",
			`{"action_type":"createTodo","payload":{"title":"Buy milk"}}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"a-1"`)
	})

	t.Run("UnregisteredType", func(t *testing.T) {
		mutator := &fakeMutator{err: &dispatch.UnregisteredActionError{ActionType: "nope"}}
		srv := newTestServer(t, &fakeQueue{}, mutator)

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/actions",
			`{"action_type":"nope","payload":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("RemoteFailure", func(t *testing.T) {
		mutator := &fakeMutator{err: errors.New("execute createTodo: 502 Bad Gateway")}
		srv := newTestServer(t, &fakeQueue{}, mutator)

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/actions",
			`{"action_type":"createTodo","payload":{}}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		srv := newTestServer(t, &fakeQueue{}, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/actions", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingActionType", func(t *testing.T) {
		srv := newTestServer(t, &fakeQueue{}, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/actions", `{"payload":{}}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		srv := newTestServer(t, &fakeQueue{}, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodGet, "/api/v1/actions", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleSync(t *testing.T) {
	t.Run("Completed", func(t *testing.T) {
		queue := &fakeQueue{status: &models.EngineStatus{State: models.SyncIdle}}
		srv := newTestServer(t, queue, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/sync", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Paused", func(t *testing.T) {
		queue := &fakeQueue{syncErr: errors.New("remote session is not authenticated")}
		srv := newTestServer(t, queue, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/sync", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "not authenticated")
	})
}

func TestHandleQueue(t *testing.T) {
	queue := &fakeQueue{actions: []models.QueuedAction{
		{ID: "a-1", ActionType: "createTodo", Status: models.ActionPending},
		{ID: "a-2", ActionType: "updateTodo", Status: models.ActionFailed},
	}}
	srv := newTestServer(t, queue, &fakeMutator{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestHandleQueueFailed(t *testing.T) {
	queue := &fakeQueue{
		failed:  []models.QueuedAction{{ID: "a-2", Status: models.ActionFailed}},
		cleared: 1,
	}
	srv := newTestServer(t, queue, &fakeMutator{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/queue/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/queue/failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cleared":1`)
}

func TestHandleQueueItem(t *testing.T) {
	t.Run("Retry", func(t *testing.T) {
		srv := newTestServer(t, &fakeQueue{}, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/queue/a-1/retry", "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("RetryNotFound", func(t *testing.T) {
		queue := &fakeQueue{retryErr: database.ErrActionNotFound}
		srv := newTestServer(t, queue, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/queue/missing/retry", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("RetryNotFailed", func(t *testing.T) {
		queue := &fakeQueue{retryErr: errors.New("action a-1 is pending, only failed actions can be retried")}
		srv := newTestServer(t, queue, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodPost, "/api/v1/queue/a-1/retry", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Remove", func(t *testing.T) {
		srv := newTestServer(t, &fakeQueue{}, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodDelete, "/api/v1/queue/a-1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("RemoveNotFound", func(t *testing.T) {
		queue := &fakeQueue{removeErr: database.ErrActionNotFound}
		srv := newTestServer(t, queue, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodDelete, "/api/v1/queue/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("EmptyID", func(t *testing.T) {
		srv := newTestServer(t, &fakeQueue{}, &fakeMutator{})

		rec := doRequest(t, srv, http.MethodDelete, "/api/v1/queue/", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleExport(t *testing.T) {
	queue := &fakeQueue{exportPath: "exports/queue_2026-01-01_120000.xlsx"}
	srv := newTestServer(t, queue, &fakeMutator{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".xlsx")
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeQueue{}, &fakeMutator{})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
