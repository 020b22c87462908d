package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyncCacheSetGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewSyncCache(dir, "task-1")

	require.NoError(t, c.Load())

	entry := SyncEntry{Size: 100, Mtime: time.Now(), Status: StatusSynced}
	c.Set("movies/a.mkv", entry)

	require.NoError(t, c.Persist())

	reloaded := NewSyncCache(dir, "task-1")
	require.NoError(t, reloaded.Load())

	got, ok := reloaded.Get("movies/a.mkv")
	require.True(t, ok)
	require.Equal(t, StatusSynced, got.Status)
	require.Equal(t, int64(100), got.Size)
}

func TestSyncCacheDeleteRemovesEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewSyncCache(dir, "task-1")
	require.NoError(t, c.Load())

	c.Set("a.mkv", SyncEntry{Status: StatusSynced})
	c.Delete("a.mkv")

	_, ok := c.Get("a.mkv")
	require.False(t, ok)
}

func TestSyncCacheSnapshotIsCopy(t *testing.T) {
	dir := t.TempDir()
	c := NewSyncCache(dir, "task-1")
	require.NoError(t, c.Load())

	c.Set("a.mkv", SyncEntry{Status: StatusSynced})

	snap := c.Snapshot()
	snap["a.mkv"] = SyncEntry{Status: StatusFailed}

	got, _ := c.Get("a.mkv")
	require.Equal(t, StatusSynced, got.Status)
}

func TestSyncCacheLoadMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	c := NewSyncCache(dir, "nonexistent")
	require.NoError(t, c.Load())
	require.Empty(t, c.Snapshot())
}
