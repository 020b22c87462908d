package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewSettingsStore(dir)
	require.NoError(t, s.Load())

	cur := s.Get()
	cur.OpenList.BaseURL = "https://openlist.example.com"
	cur.OpenList.Username = "admin"
	cur.OpenList.SetPassword("hunter2")
	cur.RetryCount = 5

	require.NoError(t, s.Update(cur))

	reloaded := NewSettingsStore(dir)
	require.NoError(t, reloaded.Load())

	got := reloaded.Get()
	require.Equal(t, "https://openlist.example.com", got.OpenList.BaseURL)
	require.Equal(t, 5, got.RetryCount)

	pw, err := got.OpenList.Password()
	require.NoError(t, err)
	require.Equal(t, "hunter2", pw)
}

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	s := NewSettingsStore(dir)
	require.NoError(t, s.Load())

	got := s.Get()
	require.NotEmpty(t, got.Extensions.Video)
	require.Equal(t, 3, got.RetryCount)
}
