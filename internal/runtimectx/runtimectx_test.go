package runtimectx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudgather/cloudgather/internal/cgerrors"
	"github.com/cloudgather/cloudgather/internal/logring"
	"github.com/cloudgather/cloudgather/internal/scheduler"
	"github.com/cloudgather/cloudgather/internal/store"
)

func newTestRuntime(t *testing.T) (*Runtime, *store.TaskStore) {
	t.Helper()

	dir := t.TempDir()

	tasks := store.NewTaskStore(dir)
	require.NoError(t, tasks.Load())

	settings := store.NewSettingsStore(dir)
	require.NoError(t, settings.Load())

	rt := New(tasks, settings, nil, logring.NewRegistry(10), dir, 0, "")

	return rt, tasks
}

func TestDispatchSyncCopiesFiles(t *testing.T) {
	rt, tasks := newTestRuntime(t)

	srcDir := t.TempDir()
	dstDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644))

	task, err := tasks.Upsert(&store.Task{
		Name:    "sync1",
		Kind:    store.KindSync,
		Cron:    "* * * * *",
		Enabled: true,
		Sync:    &store.SyncFields{SourcePath: srcDir, TargetPath: dstDir, ThreadCap: 2},
	})
	require.NoError(t, err)

	stats, err := rt.Dispatch(context.Background(), task, scheduler.Entry{TaskID: task.ID, Kind: scheduler.EntrySync})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Success)

	data, err := os.ReadFile(filepath.Join(dstDir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestDispatchStrmGeneratesPointerFile(t *testing.T) {
	rt, tasks := newTestRuntime(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			w.Write([]byte(`{"code":200,"data":{"token":"tok-1"}}`))
		case "/api/fs/list":
			w.Write([]byte(`{"code":200,"data":{"content":[{"name":"movie.mkv","size":100,"is_dir":false,"sign":"sig"}],"total":1}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	require.NoError(t, rt.Settings.Update(&store.Settings{
		OpenList:   store.OpenListConnection{BaseURL: srv.URL},
		Extensions: store.DefaultSettings().Extensions,
		RetryCount: 3,
	}))

	targetDir := t.TempDir()

	task, err := tasks.Upsert(&store.Task{
		Name:    "strm1",
		Kind:    store.KindStrm,
		Cron:    "* * * * *",
		Enabled: true,
		Strm:    &store.StrmFields{SourceDir: "/movies", TargetDir: targetDir, MaxWorkers: 2},
	})
	require.NoError(t, err)

	stats, err := rt.Dispatch(context.Background(), task, scheduler.Entry{TaskID: task.ID, Kind: scheduler.EntryStrm})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Success)

	data, err := os.ReadFile(filepath.Join(targetDir, "movie.strm"))
	require.NoError(t, err)
	require.Contains(t, string(data), "sign=sig")
}

func TestDispatchUnknownKindErrors(t *testing.T) {
	rt, tasks := newTestRuntime(t)

	task := &store.Task{
		ID:      "broken",
		Name:    "broken",
		Kind:    store.Kind("bogus"),
		Cron:    "* * * * *",
		Enabled: true,
	}

	// The store refuses an unknown kind, so Dispatch gets the record directly.
	_, err := tasks.Upsert(task)
	require.ErrorIs(t, err, cgerrors.ErrInvalidTask)

	_, err = rt.Dispatch(context.Background(), task, scheduler.Entry{TaskID: task.ID})
	require.Error(t, err)
}
