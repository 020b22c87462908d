package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudgather/cloudgather/internal/cache"
	"github.com/cloudgather/cloudgather/internal/store"
)

func newTestTask(src, dst string) *store.Task {
	return &store.Task{
		ID:   "t1",
		Kind: store.KindSync,
		Sync: &store.SyncFields{
			SourcePath: src,
			TargetPath: dst,
			ThreadCap:  1,
			Rules:      store.RuleFlags{NotExists: true},
		},
	}
}

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()

	c := cache.NewSyncCache(dir, "t1")
	require.NoError(t, c.Load())

	return New(Deps{Cache: c})
}

func TestRunCopiesNewFileThenSkipsOnRefire(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.mkv"), make([]byte, 1024), 0o644))

	task := newTestTask(src, dst)
	e := newTestEngine(t, dst)

	stats, err := e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Success)

	_, statErr := os.Stat(filepath.Join(dst, "a.mkv"))
	require.NoError(t, statErr)

	stats, err = e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 0, stats.Success)
	require.Equal(t, 1, stats.Skipped)
}

func TestRunExcludeFilterSkipsNonMatching(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.nfo"), []byte("x"), 0o644))

	task := newTestTask(src, dst)
	task.Sync.Suffix = store.SuffixFilter{Mode: store.SuffixExclude, List: []string{"nfo"}}

	e := newTestEngine(t, dst)

	stats, err := e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.SkippedFiltered)

	_, err = os.Stat(filepath.Join(dst, "a.mkv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, "b.nfo"))
	require.True(t, os.IsNotExist(err))
}

func TestRunSizeDiffTriggersResync(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	srcPath := filepath.Join(src, "a.mkv")
	require.NoError(t, os.WriteFile(srcPath, make([]byte, 100), 0o644))

	task := newTestTask(src, dst)
	e := newTestEngine(t, dst)

	_, err := e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(srcPath, make([]byte, 200), 0o644))
	task.Sync.Rules.SizeDiff = true

	stats, err := e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Success)

	info, err := os.Stat(filepath.Join(dst, "a.mkv"))
	require.NoError(t, err)
	require.EqualValues(t, 200, info.Size())
}

func TestRunDeleteSourceImmediate(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "x.mp4"), []byte("x"), 0o644))

	task := newTestTask(src, dst)
	task.Sync.DeleteSource = store.DeletePolicy{Enabled: true, DelayDays: 0, TimeBase: store.DeleteBaseSyncComplete}

	e := newTestEngine(t, dst)

	_, err := e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(src, "x.mp4"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dst, "x.mp4"))
	require.NoError(t, err)

	entry, ok := e.deps.Cache.Get("x.mp4")
	require.True(t, ok)
	require.Equal(t, cache.StatusDeleted, entry.Status)
}

func TestRunFullOverwriteIgnoresDecisionRule(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.mkv"), []byte("x"), 0o644))

	task := newTestTask(src, dst)
	e := newTestEngine(t, dst)

	stats, err := e.Run(context.Background(), task, ModeFullOverwrite)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Success)
}

func TestRunReconstructMarksExistingTargetsSynced(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	content := make([]byte, 50)
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.mkv"), content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.mkv"), content, 0o644))

	task := newTestTask(src, dst)
	e := newTestEngine(t, dst)

	stats, err := e.Run(context.Background(), task, ModeReconstruct)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Success)

	entry, ok := e.deps.Cache.Get("a.mkv")
	require.True(t, ok)
	require.Equal(t, cache.StatusSynced, entry.Status)

	stats, err = e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Success)
}

func TestRunEmptySourceYieldsZeroTotal(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	task := newTestTask(src, dst)
	e := newTestEngine(t, dst)

	stats, err := e.Run(context.Background(), task, ModeNormal)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Total)
}

func TestRunMissingSourceReturnsErrSourceMissing(t *testing.T) {
	dst := t.TempDir()
	task := newTestTask(filepath.Join(dst, "does-not-exist"), dst)
	e := newTestEngine(t, dst)

	_, err := e.Run(context.Background(), task, ModeNormal)
	require.Error(t, err)
}

func TestUnionOfRulesFalseActsAsNotExists(t *testing.T) {
	target := fileState{exists: true, size: 10, mtime: time.Now()}
	require.False(t, shouldCopy(store.RuleFlags{}, 10, time.Now(), target))

	target = fileState{exists: false}
	require.True(t, shouldCopy(store.RuleFlags{}, 10, time.Now(), target))
}
