package appconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "info", cfg.ConsoleLevel)
	require.Equal(t, 7, cfg.LogSaveDays)
	require.False(t, cfg.IsDocker)
	require.Equal(t, 5*time.Second, cfg.StabilityDelay)
	require.Equal(t, "/config", cfg.ConfigDir)
	require.Equal(t, "", cfg.TZ)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("TZ", "America/New_York")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CONSOLE_LEVEL", "warn")
	t.Setenv("LOG_SAVE_DAYS", "14")
	t.Setenv("IS_DOCKER", "true")
	t.Setenv("STABILITY_DELAY", "45")
	t.Setenv("CONFIG_DIR", "/data/config")
	t.Setenv("PUID", "1000")
	t.Setenv("PGID", "1001")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "America/New_York", cfg.TZ)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "warn", cfg.ConsoleLevel)
	require.Equal(t, 14, cfg.LogSaveDays)
	require.True(t, cfg.IsDocker)
	require.Equal(t, 45*time.Second, cfg.StabilityDelay)
	require.Equal(t, "/data/config", cfg.ConfigDir)
	require.Equal(t, 1000, cfg.PUID)
	require.Equal(t, 1001, cfg.PGID)
}
