package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/LMS-sub004/internal/contentsync"
	"github.com/ordokr/LMS-sub004/internal/crypto"
	"github.com/ordokr/LMS-sub004/internal/executor"
	"github.com/ordokr/LMS-sub004/internal/metrics"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/orchestrator"
	"github.com/ordokr/LMS-sub004/internal/platform"
	"github.com/ordokr/LMS-sub004/internal/queue"
	"github.com/ordokr/LMS-sub004/internal/server/handlers"
	"github.com/ordokr/LMS-sub004/internal/storage/boltdb"
	"github.com/ordokr/LMS-sub004/internal/storage/sqlite"
	"github.com/ordokr/LMS-sub004/internal/syncstate"
	"github.com/ordokr/LMS-sub004/internal/vclock"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

const (
	testOperator = "admin"
	testPassword = "correct-horse-battery"
)

type testServer struct {
	srv       *httptest.Server
	store     *sqlite.Storage
	forum     map[string]string
	replicaID string
	token     string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := metrics.NewRegistry()

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	meta, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "node.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	replicaID, err := meta.EnsureReplicaID(ctx)
	require.NoError(t, err)

	states, err := syncstate.NewManager(store, replicaID, logger, reg)
	require.NoError(t, err)

	forumContent := map[string]string{}
	course := &platform.AdapterMock{
		GetContentFunc: func(_ context.Context, remoteID string) (string, error) {
			if remoteID == "c-missing" {
				return "", platform.ErrNotFound
			}
			return "course body " + remoteID, nil
		},
	}
	forum := &platform.AdapterMock{
		GetContentFunc: func(_ context.Context, remoteID string) (string, error) {
			return forumContent[remoteID], nil
		},
		UpdateContentFunc: func(_ context.Context, remoteID, content string) error {
			forumContent[remoteID] = content
			return nil
		},
	}

	exec := executor.New(states, store, executor.Config{BodyTimeout: 5 * time.Second}, logger, reg)
	syncer := contentsync.New(store, course, forum, exec, logger)
	q := queue.New(store, syncer, states, queue.Config{Concurrency: 1}, logger, reg)
	orch := orchestrator.New(store, meta, states, syncer, q, nil, orchestrator.Config{}, logger, reg)

	hash, err := crypto.HashPassword(testPassword)
	require.NoError(t, err)

	router := NewRouter(ctx, Deps{
		Logger:    logger,
		Metrics:   reg,
		DB:        store,
		Operators: handlers.OperatorMap{testOperator: hash},
		JWT: handlers.JWTConfig{
			Secret:         []byte("router-test-secret-router-test-secret"),
			AccessTokenTTL: time.Hour,
		},
		States:         states,
		Content:        syncer,
		Runner:         exec,
		Syncer:         orch,
		Queue:          q,
		TxLog:          store,
		Mappings:       store,
		Version:        "test",
		ReplicaID:      replicaID,
		LoginRateLimit: 100,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	ts := &testServer{srv: srv, store: store, forum: forumContent, replicaID: replicaID}
	ts.token = ts.login(t)
	return ts
}

func (ts *testServer) login(t *testing.T) string {
	t.Helper()
	var tok api.TokenResponse
	status := ts.do(t, http.MethodPost, "/api/v1/auth/login",
		api.LoginRequest{Username: testOperator, Password: testPassword}, &tok, false)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

// do выполняет запрос и декодирует ответ в out (если out != nil)
func (ts *testServer) do(t *testing.T, method, path string, body, out any, auth bool) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) putMapping(t *testing.T, kind models.EntityKind, id string) {
	t.Helper()
	status := ts.do(t, http.MethodPut, "/api/v1/mappings/"+string(kind)+"/"+id,
		api.MappingRequest{CourseRemoteID: "c-" + id, ForumRemoteID: "f-" + id}, nil, true)
	require.Equal(t, http.StatusOK, status)
}

func TestRouter_PublicAndProtected(t *testing.T) {
	ts := setupTestServer(t)

	var health api.HealthResponse
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/health", nil, &health, false))
	assert.Equal(t, "ok", health.Database)
	assert.Equal(t, ts.replicaID, health.Replica)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/entities", nil, nil, false))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/entities", nil, nil, true))
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodDelete, "/api/v1/entities", nil, nil, true))

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodPost, "/api/v1/auth/login",
		api.LoginRequest{Username: testOperator, Password: "wrong-password-x"}, nil, false))

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `path="GET /api/v1/entities"`)
}

func TestRouter_EventsAndTransactions(t *testing.T) {
	ts := setupTestServer(t)

	var state models.EntityVersionState
	status := ts.do(t, http.MethodPost, "/api/v1/entities/topic/42/events",
		api.EventRequest{Source: "course"}, &state, true)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, uint64(1), state.Course.Get(ts.replicaID))
	assert.Equal(t, models.StatusPendingSync, state.Status)

	var got models.EntityVersionState
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/entities/topic/42", nil, &got, true))
	assert.Equal(t, state.Course, got.Course)

	var txs []models.SyncTransaction
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/entities/topic/42/transactions", nil, &txs, true))
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionCommitted, txs[0].Status)
	assert.Equal(t, models.SystemCourse, txs[0].Source)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown entity", http.MethodGet, "/api/v1/entities/topic/404", nil, http.StatusNotFound},
		{"unknown kind", http.MethodGet, "/api/v1/entities/widget/1", nil, http.StatusBadRequest},
		{"bad source", http.MethodPost, "/api/v1/entities/topic/42/events", map[string]string{"source": "mars"}, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/v1/entities?limit=-5", nil, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/v1/entities?status=weird", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ts.do(t, tt.method, tt.path, tt.body, nil, true))
		})
	}
}

func TestRouter_DetectAndResolve(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	// расхождение двух реплик: курс видел только node-a, форум только node-b
	seeded := models.NewEntityVersionState(models.KindPost, "7", time.Now().UTC())
	seeded.Course = vclock.VersionVector{"node-a": 1}
	seeded.Forum = vclock.VersionVector{"node-b": 1}
	require.NoError(t, ts.store.UpsertState(ctx, seeded))

	var detect api.DetectResponse
	course, forum := "a", "b"
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/entities/post/7/detect",
		api.DetectRequest{Course: &course, Forum: &forum}, &detect, true))
	assert.True(t, detect.Conflict)
	assert.Equal(t, string(models.StatusConflict), detect.Status)

	var conflicts []models.EntityVersionState
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/entities?status=conflict", nil, &conflicts, true))
	require.Len(t, conflicts, 1)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/v1/entities/post/7/resolve",
		api.ResolveRequest{Strategy: "coin_flip"}, nil, true))

	var resolved models.EntityVersionState
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/entities/post/7/resolve",
		api.ResolveRequest{Strategy: "merge"}, &resolved, true))
	assert.Equal(t, models.StatusSynced, resolved.Status)
	assert.Equal(t, vclock.VersionVector{"node-a": 1, "node-b": 1}, resolved.Course)

	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/v1/entities/post/7/resolve",
		api.ResolveRequest{Strategy: "merge"}, nil, true))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/v1/entities/post/8/resolve",
		api.ResolveRequest{Strategy: "merge"}, nil, true))
}

func TestRouter_DetectOneSide(t *testing.T) {
	ts := setupTestServer(t)

	// сторона без содержимого не получает событие
	forum := "forum body"
	var detect api.DetectResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/entities/topic/9/detect",
		api.DetectRequest{Forum: &forum}, &detect, true))
	assert.False(t, detect.Conflict)

	var state models.EntityVersionState
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/entities/topic/9", nil, &state, true))
	assert.Empty(t, state.Course)
	assert.Equal(t, uint64(1), state.Forum.Get(ts.replicaID))

	// без тела содержимое читается только с замапленных платформ
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/v1/mappings/topic/10",
		api.MappingRequest{CourseRemoteID: "c-10"}, nil, true))
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/entities/topic/10/detect",
		nil, &detect, true))

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/entities/topic/10", nil, &state, true))
	assert.Equal(t, uint64(1), state.Course.Get(ts.replicaID))
	assert.Empty(t, state.Forum)
}

func TestRouter_MappingsAndTransfer(t *testing.T) {
	ts := setupTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/v1/entities/topic/1/transfer",
		api.TransferRequest{Direction: "course_to_forum"}, nil, true))

	ts.putMapping(t, models.KindTopic, "1")

	var mapping models.EntityMapping
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/mappings/topic/1", nil, &mapping, true))
	assert.Equal(t, "f-1", mapping.ForumRemoteID)

	var mappings []models.EntityMapping
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/mappings/topic", nil, &mappings, true))
	assert.Len(t, mappings, 1)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/v1/mappings/topic/2",
		api.MappingRequest{}, nil, true))

	var res api.TransferResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/entities/topic/1/transfer",
		api.TransferRequest{Direction: "course_to_forum"}, &res, true))
	assert.Equal(t, len("course body c-1"), res.Bytes)
	assert.Equal(t, "course body c-1", ts.forum["f-1"])

	// без тела содержимое читается с платформ
	var detect api.DetectResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/entities/topic/1/detect", nil, &detect, true))
	assert.False(t, detect.Conflict)
}

func TestRouter_Queue(t *testing.T) {
	ts := setupTestServer(t)
	ts.putMapping(t, models.KindPost, "1")

	var item models.QueueItem
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/v1/queue",
		api.EnqueueRequest{Kind: "post", EntityID: "1", Direction: "course_to_forum"}, &item, true))
	assert.Equal(t, models.QueuePending, item.Status)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, "/api/v1/queue",
		api.EnqueueRequest{Kind: "widget", EntityID: "1", Direction: "course_to_forum"}, nil, true))

	var stats map[string]int
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/queue/stats", nil, &stats, true))
	assert.Equal(t, 1, stats[string(models.QueuePending)])

	var drain api.DrainResponse
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/queue/drain", nil, &drain, true))
	assert.Equal(t, 1, drain.Completed)

	var got models.QueueItem
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/queue/"+item.ID, nil, &got, true))
	assert.Equal(t, models.QueueCompleted, got.Status)

	// завершенный элемент повторно не запускается
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/v1/queue/"+item.ID+"/retry", nil, nil, true))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/queue/missing", nil, nil, true))

	var items []models.QueueItem
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/queue?status=completed", nil, &items, true))
	assert.Len(t, items, 1)
}

func TestRouter_FullSync(t *testing.T) {
	ts := setupTestServer(t)
	ts.putMapping(t, models.KindUser, "u1")
	ts.putMapping(t, models.KindCourse, "missing")

	var summary api.SyncSummary
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/sync", nil, &summary, true))
	assert.False(t, summary.Skipped)
	assert.False(t, summary.Success)
	require.Len(t, summary.Kinds, len(models.AllKinds()))
	assert.Equal(t, 1, summary.Kinds[0].Succeeded)
	assert.Equal(t, 1, summary.Kinds[1].Failed)

	var status api.SyncStatus
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/sync/status", nil, &status, true))
	assert.False(t, status.Running)
	require.NotNil(t, status.LastSummary)
	assert.False(t, status.LastFullSync.IsZero())
	require.NotEmpty(t, status.RecentErrors)
	assert.Contains(t, status.RecentErrors[0], "missing")
}

func TestRouter_MalformedBody(t *testing.T) {
	ts := setupTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/v1/auth/login", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body.Message)
}
