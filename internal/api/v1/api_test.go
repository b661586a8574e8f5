package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/plexorg/internal/analyzer"
	"github.com/vmunix/plexorg/internal/api/v1/mocks"
	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/events"
	"github.com/vmunix/plexorg/internal/media"
	"github.com/vmunix/plexorg/internal/organizer"
	"github.com/vmunix/plexorg/internal/plex"
	"github.com/vmunix/plexorg/internal/store"
)

type testEnv struct {
	conv  *mocks.MockConversions
	org   *mocks.MockOrganizer
	store *store.Store
	deps  ServerDeps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	env := &testEnv{
		conv:  mocks.NewMockConversions(ctrl),
		org:   mocks.NewMockOrganizer(ctrl),
		store: st,
	}
	env.deps = ServerDeps{
		Conversions: env.conv,
		Organizer:   env.org,
		Store:       st,
		Config: func() organizer.Config {
			cfg := organizer.DefaultConfig()
			cfg.MediaRoot = "/media"
			return cfg
		},
		EventLog: events.NewEventLog(st.DB()),
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	srv, err := New(e.deps)
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	var r *http.Request
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, target, bytes.NewReader(buf))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNew_MissingDependency(t *testing.T) {
	_, err := New(ServerDeps{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC().Truncate(time.Second)
	env.conv.EXPECT().List().Return([]conversion.Task{
		{ID: "t1", InputPath: "/dl/a.mkv", OutputPath: "/media/a.mp4", Status: conversion.StatusProcessing, Progress: 0.4, QueuedAt: now, StartedAt: now},
		{ID: "t2", Status: conversion.StatusPending, QueuedAt: now},
	})
	env.conv.EXPECT().Stats().Return(conversion.Stats{Pending: 1, Processing: 1, MaxConcurrent: 2})

	w := env.do(t, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[ListTasksResponse](t, w)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "processing", resp.Items[0].Status)
	assert.InDelta(t, 0.4, resp.Items[0].Progress, 1e-9)
	require.NotNil(t, resp.Items[0].StartedAt)
	assert.Nil(t, resp.Items[1].StartedAt)
	assert.Equal(t, 2, resp.Stats.MaxConcurrent)
}

func TestListTasks_Archived(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.ArchiveTask(context.Background(), conversion.Task{
		ID: "old", Status: conversion.StatusCompleted, QueuedAt: time.Now(), CompletedAt: time.Now(),
	}))
	env.conv.EXPECT().List().Return(nil)
	env.conv.EXPECT().Stats().Return(conversion.Stats{})

	resp := decode[ListTasksResponse](t, env.do(t, http.MethodGet, "/api/v1/tasks?archived=true", nil))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "old", resp.Items[0].ID)
	assert.True(t, resp.Items[0].Archived)
}

func TestGetTask(t *testing.T) {
	env := newTestEnv(t)
	env.conv.EXPECT().Get("t1").Return(conversion.Task{ID: "t1", Status: conversion.StatusCompleted}, nil)

	w := env.do(t, http.MethodGet, "/api/v1/tasks/t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode[TaskResponse](t, w).Status)
}

func TestGetTask_FallsBackToArchive(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.ArchiveTask(context.Background(), conversion.Task{
		ID: "t9", Status: conversion.StatusFailed, Error: "boom", QueuedAt: time.Now(),
	}))
	env.conv.EXPECT().Get("t9").Return(conversion.Task{}, conversion.ErrTaskNotFound)

	resp := decode[TaskResponse](t, env.do(t, http.MethodGet, "/api/v1/tasks/t9", nil))
	assert.True(t, resp.Archived)
	assert.Equal(t, "boom", resp.Error)
}

func TestGetTask_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.conv.EXPECT().Get("nope").Return(conversion.Task{}, conversion.ErrTaskNotFound)

	w := env.do(t, http.MethodGet, "/api/v1/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, w).Code)
}

func TestCancelTask(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"cancelled", nil, http.StatusNoContent},
		{"unknown", conversion.ErrTaskNotFound, http.StatusNotFound},
		{"finished", conversion.ErrTaskFinished, http.StatusConflict},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.conv.EXPECT().Cancel("t1").Return(tt.err)
			assert.Equal(t, tt.want, env.do(t, http.MethodDelete, "/api/v1/tasks/t1", nil).Code)
		})
	}
}

func TestSetConcurrency(t *testing.T) {
	env := newTestEnv(t)
	env.conv.EXPECT().SetMaxConcurrent(3).Return(nil)
	env.conv.EXPECT().SetMaxConcurrent(9).Return(errors.New("out of range"))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/v1/concurrency", ConcurrencyRequest{MaxConcurrent: 3}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/v1/concurrency", ConcurrencyRequest{MaxConcurrent: 9}).Code)
}

func TestOrganize(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "Heat.1995.1080p.mp4")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	env.org.EXPECT().
		Organize(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, files []media.CompletedFile, cfg organizer.Config) ([]organizer.Result, error) {
			require.Len(t, files, 1)
			assert.Equal(t, path, files[0].Path)
			assert.Equal(t, "/media", cfg.MediaRoot)
			return []organizer.Result{{
				File: path, Action: organizer.ActionSymlink, Success: true,
				LibraryPath: "/media/Movies/Heat (1995)/Heat.1995.1080p.mp4",
			}}, nil
		})

	w := env.do(t, http.MethodPost, "/api/v1/organize", OrganizeRequest{Paths: []string{path}})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[OrganizeResponse](t, w)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, organizer.ActionSymlink, resp.Results[0].Action)
	assert.Equal(t, 1, resp.Summary.Symlinked)
	assert.Equal(t, []string{"/media/Movies/Heat (1995)"}, resp.Summary.LibraryPaths)
}

func TestOrganize_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/v1/organize", OrganizeRequest{}).Code)
	w := env.do(t, http.MethodPost, "/api/v1/organize", OrganizeRequest{Paths: []string{"/no/such/file.mkv"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PATH", decode[errorResponse](t, w).Code)
}

func TestOrganize_ConfigurationError(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "a.mkv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	env.org.EXPECT().Organize(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &organizer.ConfigurationError{Field: "MediaRoot", Reason: "required"})

	w := env.do(t, http.MethodPost, "/api/v1/organize", OrganizeRequest{Paths: []string{path}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.AddHistory(ctx, &store.HistoryEntry{BatchID: "b1", File: "/dl/a.mkv", Action: "symlink", Success: true}))
	require.NoError(t, env.store.AddHistory(ctx, &store.HistoryEntry{BatchID: "b1", File: "/dl/b.avi", Action: "convert", Error: "enqueue failed"}))

	all := decode[[]HistoryResponse](t, env.do(t, http.MethodGet, "/api/v1/history", nil))
	assert.Len(t, all, 2)

	failed := decode[[]HistoryResponse](t, env.do(t, http.MethodGet, "/api/v1/history?failed=true", nil))
	require.Len(t, failed, 1)
	assert.Equal(t, "/dl/b.avi", failed[0].File)
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, path string) (analyzer.Analysis, error) {
	if strings.HasSuffix(path, ".bad") {
		return analyzer.Analysis{}, &analyzer.AnalysisError{Path: path, Err: errors.New("invalid data")}
	}
	return analyzer.Analysis{Path: path, VideoCodec: "h264", PlexCompatible: true}, nil
}

func TestAnalyze(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/v1/analyze?path=/a.mp4", nil).Code)

	env.deps.Analyzer = stubAnalyzer{}
	w := env.do(t, http.MethodGet, "/api/v1/analyze?path=/a.mp4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[analyzer.Analysis](t, w).PlexCompatible)

	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodGet, "/api/v1/analyze?path=/a.bad", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/analyze", nil).Code)
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.deps.EventLog.Append(ctx, &events.ConversionQueued{
		BaseEvent: events.NewBaseEvent(events.EventConversionQueued, events.EntityTask, "t1"),
		InputPath: "/dl/a.avi",
	})
	require.NoError(t, err)

	all := decode[ListEventsResponse](t, env.do(t, http.MethodGet, "/api/v1/events", nil))
	require.Equal(t, 1, all.Total)
	assert.Equal(t, events.EventConversionQueued, all.Items[0].EventType)
	data, ok := all.Items[0].Data.(map[string]any)
	require.True(t, ok, "payload decoded through the registry")
	assert.Equal(t, "/dl/a.avi", data["input_path"])

	since := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	recent := decode[ListEventsResponse](t, env.do(t, http.MethodGet, "/api/v1/events?since="+since, nil))
	assert.Equal(t, 1, recent.Total)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	none := decode[ListEventsResponse](t, env.do(t, http.MethodGet, "/api/v1/events?since="+future, nil))
	assert.Equal(t, 0, none.Total)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/events?since=yesterday", nil).Code)

	forTask := decode[ListEventsResponse](t, env.do(t, http.MethodGet, "/api/v1/tasks/t1/events", nil))
	assert.Equal(t, 1, forTask.Total)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/tasks/t2/events", nil).Code)
}

type stubPlex struct{}

func (stubPlex) Identity(context.Context) (*plex.Identity, error) {
	return &plex.Identity{Name: "nas", Version: "1.40"}, nil
}

func (stubPlex) Sections(context.Context) ([]plex.Section, error) {
	return []plex.Section{{Key: "1", Title: "Movies", Type: plex.TypeMovie, Locations: []plex.Location{{Path: "/data/Movies"}}}}, nil
}

func (stubPlex) ScanDir(context.Context, string) (*plex.Section, error) {
	return nil, plex.ErrNoSection
}

func TestPlexStatus(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/v1/plex", nil).Code)

	env.deps.Plex = stubPlex{}
	resp := decode[PlexStatusResponse](t, env.do(t, http.MethodGet, "/api/v1/plex", nil))
	assert.Equal(t, "nas", resp.Name)
	require.Len(t, resp.Sections, 1)
	assert.Equal(t, []string{"/data/Movies"}, resp.Sections[0].Locations)
}
