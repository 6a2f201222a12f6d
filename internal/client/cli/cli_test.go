package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordokr/LMS-sub004/internal/client/api"
	"github.com/ordokr/LMS-sub004/internal/client/iocli"
	"github.com/ordokr/LMS-sub004/internal/client/storage"
	"github.com/ordokr/LMS-sub004/internal/client/storage/boltdb"
	"github.com/ordokr/LMS-sub004/internal/crypto"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/vclock"
	pkgapi "github.com/ordokr/LMS-sub004/pkg/api"
)

type testCli struct {
	cli      *Cli
	out      *bytes.Buffer
	sessions *boltdb.Storage
	srv      *httptest.Server
}

// setupTestCli поднимает сервер с обработчиками mux и CLI с вводом input
func setupTestCli(t *testing.T, mux *http.ServeMux, input string) *testCli {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sessions, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	out := &bytes.Buffer{}
	c := New(iocli.NewStreams(strings.NewReader(input), out), api.NewClient(srv.URL), sessions, srv.URL)
	return &testCli{cli: c, out: out, sessions: sessions, srv: srv}
}

func (tc *testCli) login(t *testing.T) {
	t.Helper()
	require.NoError(t, tc.sessions.SaveSession(context.Background(), &storage.Session{
		Username:    "admin",
		ServerURL:   tc.srv.URL,
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireToken(t *testing.T, r *http.Request) {
	assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
}

func TestParse_FlagsAfterPositionals(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		positional int
		wantPos    []string
		wantSource string
		wantErr    bool
	}{
		{"flags first", []string{"-source", "course", "topic", "42"}, 2, []string{"topic", "42"}, "course", false},
		{"flags last", []string{"topic", "42", "-source", "forum"}, 2, []string{"topic", "42"}, "forum", false},
		{"flags between", []string{"topic", "-source=local", "42"}, 2, []string{"topic", "42"}, "local", false},
		{"too few", []string{"topic"}, 2, nil, "", true},
		{"too many", []string{"topic", "42", "extra"}, 2, nil, "", true},
		{"unknown flag", []string{"-bogus", "topic", "42"}, 2, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Cli{io: iocli.NewStreams(strings.NewReader(""), &bytes.Buffer{})}
			fs := c.flags("event", "<type> <id>")
			source := fs.String("source", "", "")

			pos, err := parse(fs, tt.args, tt.positional)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, pos)
			assert.Equal(t, tt.wantSource, *source)
		})
	}
}

func TestRun_Usage(t *testing.T) {
	tc := setupTestCli(t, http.NewServeMux(), "")

	assert.ErrorIs(t, tc.cli.Run(context.Background(), nil), ErrUsage)
	assert.Contains(t, tc.out.String(), "Usage:")

	tc.out.Reset()
	assert.ErrorIs(t, tc.cli.Run(context.Background(), []string{"frobnicate"}), ErrUsage)
	assert.Contains(t, tc.out.String(), "Unknown command: frobnicate")
}

func TestRun_RequiresSession(t *testing.T) {
	tc := setupTestCli(t, http.NewServeMux(), "")
	ctx := context.Background()

	err := tc.cli.Run(ctx, []string{"entities"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authenticated")

	require.NoError(t, tc.sessions.SaveSession(ctx, &storage.Session{
		ServerURL: tc.srv.URL, AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute),
	}))
	err = tc.cli.Run(ctx, []string{"entities"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")

	require.NoError(t, tc.sessions.SaveSession(ctx, &storage.Session{
		ServerURL: "http://elsewhere:8080", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour),
	}))
	err = tc.cli.Run(ctx, []string{"entities"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http://elsewhere:8080")
}

func TestRun_LoginAndLogout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req pkgapi.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username != "admin" || req.Password != "correct-horse-battery" {
			writeJSON(w, http.StatusUnauthorized, pkgapi.ErrorResponse{Error: "Unauthorized", Message: "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, pkgapi.TokenResponse{AccessToken: "fresh-token", ExpiresIn: 3600})
	})

	tc := setupTestCli(t, mux, "admin\ncorrect-horse-battery\n")
	ctx := context.Background()

	require.NoError(t, tc.cli.Run(ctx, []string{"login"}))
	assert.Contains(t, tc.out.String(), "Login successful")

	session, err := tc.sessions.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", session.AccessToken)
	assert.Equal(t, tc.srv.URL, session.ServerURL)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	require.NoError(t, tc.cli.Run(ctx, []string{"logout"}))
	_, err = tc.sessions.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	// повторный logout не ошибка
	require.NoError(t, tc.cli.Run(ctx, []string{"logout"}))
	assert.Contains(t, tc.out.String(), "Not logged in.")
}

func TestRun_LoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, pkgapi.ErrorResponse{Error: "Unauthorized", Message: "invalid credentials"})
	})

	tc := setupTestCli(t, mux, "wrong-password-123\n")
	ctx := context.Background()

	err := tc.cli.Run(ctx, []string{"login", "-u", "admin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	_, err = tc.sessions.GetSession(ctx)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestRun_EventSendsFlagsAfterArguments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/entities/{kind}/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		requireToken(t, r)
		assert.Equal(t, "topic", r.PathValue("kind"))
		assert.Equal(t, "42", r.PathValue("id"))

		var req pkgapi.EventRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "forum", req.Source)
		assert.Equal(t, "delete", req.Operation)

		writeJSON(w, http.StatusAccepted, models.EntityVersionState{
			Kind:     models.KindTopic,
			EntityID: "42",
			Status:   models.StatusPendingSync,
			Forum:    vclock.VersionVector{"node_b": 1, "node_a": 3},
		})
	})

	tc := setupTestCli(t, mux, "")
	tc.login(t)

	require.NoError(t, tc.cli.Run(context.Background(), []string{"event", "topic", "42", "-source", "forum", "-op", "delete"}))
	assert.Contains(t, tc.out.String(), "Forum:     {node_a:3, node_b:1}")
	assert.Contains(t, tc.out.String(), "Local:     {}")
}

func TestRun_EntitiesAndResolve(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/entities", func(w http.ResponseWriter, r *http.Request) {
		requireToken(t, r)
		assert.Equal(t, "conflict", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, []models.EntityVersionState{
			{Kind: models.KindPost, EntityID: "7", Status: models.StatusConflict},
		})
	})
	mux.HandleFunc("POST /api/v1/entities/{kind}/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
		requireToken(t, r)
		var req pkgapi.ResolveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Strategy != "merge" {
			writeJSON(w, http.StatusBadRequest, pkgapi.ErrorResponse{Error: "Bad Request", Message: "unknown strategy"})
			return
		}
		writeJSON(w, http.StatusOK, models.EntityVersionState{Kind: models.KindPost, EntityID: "7", Status: models.StatusSynced})
	})

	tc := setupTestCli(t, mux, "")
	tc.login(t)
	ctx := context.Background()

	require.NoError(t, tc.cli.Run(ctx, []string{"entities", "-status", "conflict"}))
	assert.Contains(t, tc.out.String(), "post")
	assert.Contains(t, tc.out.String(), "Total: 1")

	require.NoError(t, tc.cli.Run(ctx, []string{"resolve", "post", "7", "merge"}))
	assert.Contains(t, tc.out.String(), "Conflict resolved with merge")

	err := tc.cli.Run(ctx, []string{"resolve", "post", "7", "coin_flip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestRun_ExpiredTokenOnServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/queue/drain", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, pkgapi.ErrorResponse{Error: "Unauthorized", Message: "invalid token"})
	})

	tc := setupTestCli(t, mux, "")
	tc.login(t)

	err := tc.cli.Run(context.Background(), []string{"drain"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
	assert.Contains(t, err.Error(), "login again")
}

func TestRun_SyncReportsErrors(t *testing.T) {
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sync", func(w http.ResponseWriter, r *http.Request) {
		requireToken(t, r)
		writeJSON(w, http.StatusOK, pkgapi.SyncSummary{
			StartedAt:  started,
			FinishedAt: started.Add(2 * time.Second),
			Kinds:      []pkgapi.KindSummary{{Kind: "topic", Succeeded: 3, Failed: 1, Queued: 1}},
			Errors:     []string{"topic:9: forum update content: unexpected status 502"},
		})
	})

	tc := setupTestCli(t, mux, "")
	tc.login(t)

	err := tc.cli.Run(context.Background(), []string{"sync"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, tc.out.String(), "topic:9")
	assert.Contains(t, tc.out.String(), "Duration: 2s")
}

func TestRun_QueueCommands(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/queue", func(w http.ResponseWriter, r *http.Request) {
		var req pkgapi.EnqueueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "forum_to_course", req.Direction)
		assert.Equal(t, 5, req.MaxAttempts)
		writeJSON(w, http.StatusCreated, models.QueueItem{ID: "q1", Kind: models.KindUser, EntityID: "u1", MaxAttempts: 5, Status: models.QueuePending})
	})
	mux.HandleFunc("GET /api/v1/queue/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"pending": 2, "failed": 1})
	})
	mux.HandleFunc("POST /api/v1/queue/{id}/retry", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "q1" {
			writeJSON(w, http.StatusNotFound, pkgapi.ErrorResponse{Error: "Not Found", Message: "queue item not found"})
			return
		}
		writeJSON(w, http.StatusOK, models.QueueItem{ID: "q1", Status: models.QueuePending})
	})

	tc := setupTestCli(t, mux, "")
	tc.login(t)
	ctx := context.Background()

	require.NoError(t, tc.cli.Run(ctx, []string{"enqueue", "user", "u1", "-direction", "forum_to_course", "-max-attempts", "5"}))
	assert.Contains(t, tc.out.String(), "Queued user:u1 as q1")

	require.NoError(t, tc.cli.Run(ctx, []string{"queue", "stats"}))
	assert.Contains(t, tc.out.String(), "pending     2")
	assert.Contains(t, tc.out.String(), "failed      1")

	require.NoError(t, tc.cli.Run(ctx, []string{"retry", "q1"}))
	assert.Contains(t, tc.out.String(), "Queue item q1 is pending again")

	err := tc.cli.Run(ctx, []string{"retry", "q2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue item not found")
}

func TestRun_HashPassword(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"matching passwords", "long-password-123\nlong-password-123\n", ""},
		{"mismatch", "long-password-123\nlong-password-124\n", "do not match"},
		{"too short", "short\n", "at least"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := setupTestCli(t, http.NewServeMux(), tt.input)

			err := tc.cli.Run(context.Background(), []string{"hash-password"})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSpace(tc.out.String()), "\n")
			hash := lines[len(lines)-1]
			hash = hash[strings.Index(hash, "$argon2id$"):]
			require.NoError(t, crypto.VerifyPassword("long-password-123", hash))
		})
	}
}
