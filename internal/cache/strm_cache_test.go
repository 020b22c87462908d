package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStrmCacheObserveResetsMissCount(t *testing.T) {
	dir := t.TempDir()
	c := NewStrmCache(dir, "strm-1")
	require.NoError(t, c.Load())

	c.AdvanceScan()
	c.Observe("/Movies/a.mkv", StrmLeaf{RemotePath: "/Movies/a.mkv", LocalStrmPath: "a.strm"})
	c.IncrementMiss("/Movies/a.mkv") // would be a no-op in practice; verifying independence

	c.AdvanceScan()
	c.Observe("/Movies/a.mkv", StrmLeaf{RemotePath: "/Movies/a.mkv", LocalStrmPath: "a.strm"})

	leaf, ok := c.Get("/Movies/a.mkv")
	require.True(t, ok)
	require.Equal(t, 0, leaf.MissCount)
}

func TestStrmCacheMissingComputesDifference(t *testing.T) {
	dir := t.TempDir()
	c := NewStrmCache(dir, "strm-1")
	require.NoError(t, c.Load())

	c.AdvanceScan()
	c.Observe("/a.mkv", StrmLeaf{RemotePath: "/a.mkv"})
	c.Observe("/b.mkv", StrmLeaf{RemotePath: "/b.mkv"})

	observed := map[string]struct{}{"/a.mkv": {}}
	missing := c.Missing(observed)

	require.Equal(t, []string{"/b.mkv"}, missing)
}

func TestStrmCacheIncrementMissAndPrune(t *testing.T) {
	dir := t.TempDir()
	c := NewStrmCache(dir, "strm-1")
	require.NoError(t, c.Load())

	c.AdvanceScan()
	c.Observe("/a.mkv", StrmLeaf{RemotePath: "/a.mkv"})

	n := c.IncrementMiss("/a.mkv")
	require.Equal(t, 1, n)

	n = c.IncrementMiss("/a.mkv")
	require.Equal(t, 2, n)

	c.Prune("/a.mkv")
	_, ok := c.Get("/a.mkv")
	require.False(t, ok)
}

func TestStrmCachePersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewStrmCache(dir, "strm-1")
	require.NoError(t, c.Load())

	c.AdvanceScan()
	c.Observe("/a.mkv", StrmLeaf{RemotePath: "/a.mkv", LocalStrmPath: "a.strm"})
	require.NoError(t, c.Persist())

	reloaded := NewStrmCache(dir, "strm-1")
	require.NoError(t, reloaded.Load())
	require.Equal(t, 1, reloaded.LeafCount())
	require.EqualValues(t, 1, reloaded.Scan)
}

func TestStrmCacheResetClearsLeaves(t *testing.T) {
	dir := t.TempDir()
	c := NewStrmCache(dir, "strm-1")
	require.NoError(t, c.Load())

	c.AdvanceScan()
	c.Observe("/a.mkv", StrmLeaf{RemotePath: "/a.mkv"})
	c.Reset()

	require.Equal(t, 0, c.LeafCount())
}
