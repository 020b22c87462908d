// Package appconfig loads CloudGather's process bootstrap settings — the
// handful of knobs that exist before any task runs — from environment
// variables, via viper. Persistent documents (tasks, settings, cache) live
// in internal/store instead; that split mirrors the teacher's separation
// between its CLI flags/env and its on-disk token/config files.
//
// Grounded on firestige-Otus's internal/otus/config/loader.go for the
// viper key-replacer/AutomaticEnv wiring, minus that example's env prefix:
// spec.md:145 names the recognized variables bare (TZ, LOG_LEVEL, ...), with
// no CLOUDGATHER_ namespace.
package appconfig

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process bootstrap configuration (SPEC_FULL.md A.2).
type Config struct {
	// TZ is the IANA time zone name the cron evaluator and scheduler use
	// for all NextFire computations. Empty means the process's local zone.
	TZ string

	// LogLevel controls the rotating file sink's verbosity.
	LogLevel string

	// ConsoleLevel controls the console sink's verbosity.
	ConsoleLevel string

	// LogSaveDays is the rotation retention window in days.
	LogSaveDays int

	// IsDocker is surfaced for operator visibility only; no default and no
	// core scheduling or worker behavior depends on it.
	IsDocker bool

	// StabilityDelay is how long the Directory Sync Worker waits between
	// sampling a candidate file's mtime twice before treating it as stable
	// (spec.md:145, SPEC_FULL.md C "Stability delay").
	StabilityDelay time.Duration

	// ConfigDir is where tasks.json, settings.json, and cache/ live.
	ConfigDir string

	// PUID/PGID are read and logged at startup only (SPEC_FULL.md C);
	// CloudGather never calls setuid/setgid itself.
	PUID int
	PGID int
}

// Load reads Config from the environment, applying the defaults below for
// anything unset. Env var names match spec.md:145 literally, with no
// namespace prefix.
func Load() (Config, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults(v)

	bindEnv(v, "tz", "log_level", "console_level", "log_save_days", "is_docker",
		"stability_delay", "config_dir", "puid", "pgid")

	stabilitySeconds := v.GetInt("stability_delay")

	cfg := Config{
		TZ:             v.GetString("tz"),
		LogLevel:       v.GetString("log_level"),
		ConsoleLevel:   v.GetString("console_level"),
		LogSaveDays:    v.GetInt("log_save_days"),
		IsDocker:       v.GetBool("is_docker"),
		StabilityDelay: time.Duration(stabilitySeconds) * time.Second,
		ConfigDir:      v.GetString("config_dir"),
		PUID:           v.GetInt("puid"),
		PGID:           v.GetInt("pgid"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("console_level", "info")
	v.SetDefault("log_save_days", 7)
	v.SetDefault("is_docker", false)
	v.SetDefault("stability_delay", 5)
	v.SetDefault("config_dir", "/config")
	v.SetDefault("puid", 0)
	v.SetDefault("pgid", 0)
}

// bindEnv forces viper to look up each key's env var even when no default
// or config-file value set it first; AutomaticEnv alone only binds keys
// viper already knows about.
func bindEnv(v *viper.Viper, keys ...string) {
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
