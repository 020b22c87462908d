// Package runtimectx assembles the process-wide collaborators — task
// store, settings store, OpenList client factory, logger, and log ring —
// into one explicit Runtime, and implements
// scheduler.Dispatcher by routing each admitted entry to the Directory
// Sync Worker or STRM Worker with the right RunMode.
//
// Grounded on the teacher's root.go CLIContext (one struct bundling the
// command tree's collaborators, built once in PersistentPreRunE and
// threaded through cmd.Context()) generalized from a single config+logger
// pair to the full set of long-lived daemon collaborators.
package runtimectx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudgather/cloudgather/internal/cache"
	"github.com/cloudgather/cloudgather/internal/cgerrors"
	"github.com/cloudgather/cloudgather/internal/logring"
	"github.com/cloudgather/cloudgather/internal/openlist"
	"github.com/cloudgather/cloudgather/internal/scheduler"
	"github.com/cloudgather/cloudgather/internal/store"
	"github.com/cloudgather/cloudgather/internal/strmengine"
	"github.com/cloudgather/cloudgather/internal/syncengine"
)

// Runtime bundles CloudGather's long-lived collaborators. One Runtime is
// built at process startup and lives for the process's lifetime.
type Runtime struct {
	Tasks    *store.TaskStore
	Settings *store.SettingsStore
	Logger   *slog.Logger
	LogRing  *logring.Registry

	// ConfigDir is where cache/<task-id>.json documents are rooted.
	ConfigDir string

	// StabilityDelay is threaded into every sync engine built for a run.
	StabilityDelay time.Duration

	// TZ is the IANA time zone name the cron evaluator resolves NextFire
	// against, read from the TZ environment variable (spec.md:145). Empty
	// means the process's local zone.
	TZ string
}

// New builds a Runtime from already-loaded stores.
func New(tasks *store.TaskStore, settings *store.SettingsStore, logger *slog.Logger, ring *logring.Registry, configDir string, stabilityDelay time.Duration, tz string) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runtime{
		Tasks:          tasks,
		Settings:       settings,
		Logger:         logger,
		LogRing:        ring,
		ConfigDir:      configDir,
		StabilityDelay: stabilityDelay,
		TZ:             tz,
	}
}

// NewClient builds an OpenList client bound to the current Global Settings
// snapshot. Callers should build a fresh Client whenever the connection
// settings change (internal/openlist.Client's own contract), which is why
// this is a factory rather than a cached field.
func (r *Runtime) NewClient(readTimeout time.Duration) *openlist.Client {
	settings := r.Settings.Get()

	return openlist.NewClient(openlist.Config{
		BaseURL:     settings.OpenList.BaseURL,
		PublicURL:   settings.OpenList.PublicURL,
		Credentials: &settingsCredentials{conn: &settings.OpenList},
		RetryCount:  settings.RetryCount,
		ReadTimeout: readTimeout,
		Logger:      r.Logger,
	})
}

type settingsCredentials struct {
	conn *store.OpenListConnection
}

func (c *settingsCredentials) Username() string { return c.conn.Username }

func (c *settingsCredentials) Password() (string, error) { return c.conn.Password() }

// Dispatch implements scheduler.Dispatcher: it routes an admitted entry to
// the worker matching the task's kind, with the RunMode implied by the
// entry's kind (spec section 4.7: "Manual trigger, FULL_OVERWRITE and
// RECONSTRUCT enqueue with the same admission path").
func (r *Runtime) Dispatch(ctx context.Context, task *store.Task, entry scheduler.Entry) (store.StatsSnapshot, error) {
	taskLogger := logring.TaskLogger(r.Logger, task.ID)

	publish := func(p store.ProgressSnapshot) {
		r.Tasks.UpdateLive(task.ID, func(t *store.Task) { t.Progress = p })
	}

	switch task.Kind {
	case store.KindSync:
		return r.dispatchSync(ctx, task, entry, taskLogger, publish)
	case store.KindStrm:
		return r.dispatchStrm(ctx, task, entry, taskLogger, publish)
	default:
		return store.StatsSnapshot{}, fmt.Errorf("runtimectx: unknown task kind %q", task.Kind)
	}
}

func (r *Runtime) dispatchSync(ctx context.Context, task *store.Task, entry scheduler.Entry, logger *slog.Logger, publish func(store.ProgressSnapshot)) (store.StatsSnapshot, error) {
	if task.Sync == nil {
		return store.StatsSnapshot{}, fmt.Errorf("%w: task %s has no sync fields", cgerrors.ErrInvalidTask, task.ID)
	}

	settings := r.Settings.Get()

	syncCache := cache.NewSyncCache(r.ConfigDir, task.ID)
	if err := syncCache.Load(); err != nil {
		return store.StatsSnapshot{}, fmt.Errorf("runtimectx: loading sync cache: %w", err)
	}

	engine := syncengine.New(syncengine.Deps{
		Cache:           syncCache,
		Logger:          logger,
		RetryCount:      settings.RetryCount,
		StabilityDelay:  r.StabilityDelay,
		PublishProgress: publish,
	})

	return engine.Run(ctx, task, syncRunMode(entry.Kind))
}

func syncRunMode(kind scheduler.EntryKind) syncengine.RunMode {
	switch kind {
	case scheduler.EntryFullOverwrite:
		return syncengine.ModeFullOverwrite
	case scheduler.EntryReconstruct:
		return syncengine.ModeReconstruct
	default:
		return syncengine.ModeNormal
	}
}

func (r *Runtime) dispatchStrm(ctx context.Context, task *store.Task, entry scheduler.Entry, logger *slog.Logger, publish func(store.ProgressSnapshot)) (store.StatsSnapshot, error) {
	if task.Strm == nil {
		return store.StatsSnapshot{}, fmt.Errorf("%w: task %s has no strm fields", cgerrors.ErrInvalidTask, task.ID)
	}

	settings := r.Settings.Get()

	client := r.NewClient(openlist.DefaultReadTimeout)

	strmCache := cache.NewStrmCache(r.ConfigDir, task.ID)
	if err := strmCache.Load(); err != nil {
		return store.StatsSnapshot{}, fmt.Errorf("runtimectx: loading strm cache: %w", err)
	}

	engine := strmengine.New(strmengine.Deps{
		Cache:           strmCache,
		Extensions:      settings.Extensions,
		BaseURL:         settings.OpenList.BaseURL,
		PublicURL:       settings.OpenList.PublicURL,
		Logger:          logger,
		PublishProgress: publish,
	})

	return engine.Run(ctx, task, client, strmRunMode(entry.Kind))
}

func strmRunMode(kind scheduler.EntryKind) strmengine.RunMode {
	switch kind {
	case scheduler.EntryFullOverwrite:
		return strmengine.ModeFullOverwrite
	case scheduler.EntryReconstruct:
		return strmengine.ModeReconstruct
	default:
		return strmengine.ModeNormal
	}
}
