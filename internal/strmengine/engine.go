// Package strmengine implements the STRM Worker (spec section 4.4): a
// stateless per-invocation engine that, given an STRM task record and an
// OpenList client, walks a remote tree, materializes .strm and companion
// files locally, and maintains an STRM cache tree with anti-mass-delete.
//
// Grounded on the teacher's internal/sync/safety.go (threshold-gated
// destructive-phase abort, S5's big-delete shape) for the anti-mass-delete
// guard, and internal/sync/worker.go for the bounded-pool-over-discovered-
// items shape, rebuilt on golang.org/x/sync/errgroup.
package strmengine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudgather/cloudgather/internal/cache"
	"github.com/cloudgather/cloudgather/internal/cgerrors"
	"github.com/cloudgather/cloudgather/internal/openlist"
	"github.com/cloudgather/cloudgather/internal/store"
)

const (
	listPageSize            = 100
	progressPublishInterval = 500 * time.Millisecond
)

// RunMode mirrors syncengine's mode selection for the analogous STRM
// variants (spec section 4.4: "Full-overwrite for STRM", "Reconstruct for
// STRM").
type RunMode string

const (
	ModeNormal        RunMode = "NORMAL"
	ModeFullOverwrite RunMode = "FULL_OVERWRITE"
	ModeReconstruct   RunMode = "RECONSTRUCT"
)

// Client is the subset of *openlist.Client the STRM Worker needs.
type Client interface {
	List(ctx context.Context, path string, page, perPage int) (openlist.ListPage, error)
	Get(ctx context.Context, path string) (openlist.Entry, error)
	Download(ctx context.Context, entry openlist.Entry, sink io.Writer) error
	Delete(ctx context.Context, dir string, names ...string) error
}

// Deps bundles the Engine's external collaborators (design note: explicit
// Runtime context, no hidden ambient state).
type Deps struct {
	Cache           *cache.StrmCache
	Extensions      store.ExtensionClasses
	BaseURL         string
	PublicURL       string
	Logger          *slog.Logger
	PublishProgress func(store.ProgressSnapshot)
}

// Engine runs one STRM task invocation.
type Engine struct {
	deps Deps
}

func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.PublishProgress == nil {
		deps.PublishProgress = func(store.ProgressSnapshot) {}
	}

	return &Engine{deps: deps}
}

type remoteFile struct {
	remotePath string
	relPath    string
	entry      openlist.Entry
	class      fileClass
}

// Run executes one invocation of task in mode against client.
func (e *Engine) Run(ctx context.Context, task *store.Task, client Client, mode RunMode) (store.StatsSnapshot, error) {
	if task.Strm == nil {
		return store.StatsSnapshot{}, fmt.Errorf("strmengine: task %s has no strm fields", task.ID)
	}

	fields := task.Strm

	if mode == ModeReconstruct {
		return e.runReconstruct(task)
	}

	if mode == ModeFullOverwrite {
		e.deps.Cache.Reset()
	}

	e.deps.Cache.AdvanceScan()

	files, err := e.crawl(ctx, client, fields)
	if err != nil {
		if ctx.Err() != nil {
			return store.StatsSnapshot{}, fmt.Errorf("%w: %v", cgerrors.ErrCancelled, err)
		}

		return store.StatsSnapshot{}, err
	}

	stats := e.generate(ctx, task, client, files, mode)

	stats.ProtectionWarn = e.maintainCache(task, files, fields)

	if fields.SyncLocalDelete {
		e.localToRemoteDelete(ctx, client, task, fields)
	}

	if err := e.deps.Cache.Persist(); err != nil {
		e.deps.Logger.Error("strmengine: cache persist failed", slog.String("task", task.ID), slog.String("error", err.Error()))
	}

	if ctx.Err() != nil {
		return stats, cgerrors.ErrCancelled
	}

	return stats, nil
}

// crawl walks the remote tree starting at fields.SourceDir, classifying
// every file it finds (spec section 4.4: "Remote crawl").
func (e *Engine) crawl(ctx context.Context, client Client, fields *store.StrmFields) ([]remoteFile, error) {
	var files []remoteFile

	var walk func(dir string) error

	walk = func(dir string) error {
		page := 1

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			result, err := client.List(ctx, dir, page, listPageSize)
			if err != nil {
				return fmt.Errorf("%w: listing %s: %v", cgerrors.ErrRemote, dir, err)
			}

			for _, entry := range result.Entries {
				remotePath := path.Join(dir, entry.Name)

				if entry.IsDir {
					if err := walk(remotePath); err != nil {
						return err
					}

					continue
				}

				class := classify(entry.Name, e.deps.Extensions)
				if class == classIgnored {
					continue
				}

				rel, relErr := filepath.Rel(fields.SourceDir, remotePath)
				if relErr != nil {
					rel = remotePath
				}

				files = append(files, remoteFile{remotePath: remotePath, relPath: rel, entry: entry, class: class})
			}

			if len(result.Entries) < listPageSize {
				break
			}

			page++

			if fields.WaitTimeSeconds > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(fields.WaitTimeSeconds) * time.Second):
				}
			}
		}

		return nil
	}

	if err := walk(fields.SourceDir); err != nil {
		return nil, err
	}

	return files, nil
}

// generate writes .strm and extra files for every video/extra entry
// discovered, through a worker pool bounded by maxWorkers (spec section
// 4.4: "fixed-size worker pool of maxWorkers (soft upper bound 10)").
func (e *Engine) generate(ctx context.Context, task *store.Task, client Client, files []remoteFile, mode RunMode) store.StatsSnapshot {
	fields := task.Strm

	maxWorkers := fields.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	if maxWorkers > 10 {
		maxWorkers = 10
	}

	counters := &progressCounters{}
	counters.total.Store(int64(len(files)))

	stop := make(chan struct{})
	go publishLoop(counters, e.deps.PublishProgress, progressPublishInterval, stop)
	defer close(stop)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxWorkers)

	for _, f := range files {
		f := f

		group.Go(func() error {
			e.generateOne(gctx, task, client, f, mode, counters)
			return nil
		})
	}

	_ = group.Wait()

	final := counters.snapshot()

	return store.StatsSnapshot{
		Total:   final.Total,
		Success: final.Success,
		Skipped: final.Skipped,
		Failed:  final.Failed,
	}
}

func (e *Engine) generateOne(ctx context.Context, task *store.Task, client Client, f remoteFile, mode RunMode, counters *progressCounters) {
	defer func() {
		if r := recover(); r != nil {
			e.deps.Logger.Error("strmengine: panic generating entry",
				slog.String("task", task.ID), slog.String("path", f.remotePath), slog.Any("panic", r))
			counters.failed.Add(1)
			counters.done.Add(1)
		}
	}()

	if ctx.Err() != nil {
		counters.done.Add(1)
		return
	}

	fields := task.Strm
	var extras []string
	var failed, wrote bool

	switch f.class {
	case classVideo:
		strmPath := strmPathFor(fields.TargetDir, f.relPath)
		content := strmContent(fields.Mode, f.remotePath, f.entry, e.deps.BaseURL, e.deps.PublicURL)

		var w bool
		var err error

		if mode == ModeFullOverwrite {
			// Full overwrite rewrites every .strm, even one with unchanged content.
			if err = os.MkdirAll(filepath.Dir(strmPath), 0o755); err == nil {
				err = atomicWrite(strmPath, []byte(content))
			}

			w = err == nil
		} else {
			w, err = writeStrmFile(strmPath, content)
		}

		if err != nil {
			e.deps.Logger.Warn("strmengine: writing .strm failed", slog.String("path", f.remotePath), slog.String("error", err.Error()))
			failed = true
		}

		wrote = w
	case classSubtitle:
		if fields.Extra.Subtitle {
			w, err := e.fetchExtra(ctx, client, f, fields.TargetDir, &extras)
			if err != nil {
				failed = true
			}

			wrote = w
		} else {
			wrote = true // not applicable, counts as handled rather than skipped
		}
	case classImage:
		if fields.Extra.Image {
			w, err := e.fetchExtra(ctx, client, f, fields.TargetDir, &extras)
			if err != nil {
				failed = true
			}

			wrote = w
		} else {
			wrote = true
		}
	case classNfo:
		if fields.Extra.Nfo {
			w, err := e.fetchExtra(ctx, client, f, fields.TargetDir, &extras)
			if err != nil {
				failed = true
			}

			wrote = w
		} else {
			wrote = true
		}
	}

	switch {
	case failed:
		counters.failed.Add(1)
	case wrote:
		counters.success.Add(1)
	default:
		counters.skipped.Add(1)
	}

	counters.done.Add(1)

	if f.class == classVideo {
		e.deps.Cache.Observe(f.remotePath, cache.StrmLeaf{
			RemotePath:    f.remotePath,
			LocalStrmPath: strmPathFor(fields.TargetDir, f.relPath),
			ExtraFiles:    extras,
		})
	}
}

func (e *Engine) fetchExtra(ctx context.Context, client Client, f remoteFile, targetDir string, extras *[]string) (bool, error) {
	destPath := filepath.Join(targetDir, f.relPath)

	wrote, err := downloadExtraFile(ctx, client, f.entry, destPath)
	if err != nil {
		e.deps.Logger.Warn("strmengine: extra file fetch failed", slog.String("path", f.remotePath), slog.String("error", err.Error()))
		return false, err
	}

	*extras = append(*extras, destPath)

	return wrote, nil
}

func strmPathFor(targetDir, relPath string) string {
	ext := filepath.Ext(relPath)
	base := relPath[:len(relPath)-len(ext)]

	return filepath.Join(targetDir, base+".strm")
}

// maintainCache implements the anti-mass-delete guard (spec section 4.4):
// leaves absent this scan get their MissCount bumped; once a leaf has
// been missing for graceScans consecutive scans its local files are
// deleted and it is pruned. When SyncServerDelete is set, a scan with more
// than threshold missing leaves skips the entire delete phase.
func (e *Engine) maintainCache(task *store.Task, files []remoteFile, fields *store.StrmFields) bool {
	observed := make(map[string]struct{}, len(files))

	for _, f := range files {
		if f.class == classVideo {
			observed[f.remotePath] = struct{}{}
		}
	}

	missing := e.deps.Cache.Missing(observed)

	if fields.SyncServerDelete && len(missing) > fields.Protection.Threshold {
		e.deps.Logger.Warn("strmengine: protection tripped, skipping delete phase",
			slog.String("task", task.ID), slog.Int("missing", len(missing)), slog.Int("threshold", fields.Protection.Threshold))

		return true
	}

	for _, remotePath := range missing {
		n := e.deps.Cache.IncrementMiss(remotePath)
		if n < fields.Protection.GraceScans {
			continue
		}

		leaf, ok := e.deps.Cache.Get(remotePath)
		if !ok {
			continue
		}

		removeLocalFiles(leaf)
		e.deps.Cache.Prune(remotePath)
	}

	return false
}

func removeLocalFiles(leaf cache.StrmLeaf) {
	if leaf.LocalStrmPath != "" {
		os.Remove(leaf.LocalStrmPath)
	}

	for _, extra := range leaf.ExtraFiles {
		os.Remove(extra)
	}
}

// localToRemoteDelete requests remote deletion for cache leaves whose
// local .strm has disappeared (spec section 4.4: "Local-to-remote
// deletion"). Spec section 9's open question on symlinks is resolved by
// treating every local entry by path, never following link targets.
func (e *Engine) localToRemoteDelete(ctx context.Context, client Client, task *store.Task, fields *store.StrmFields) {
	byDir := make(map[string][]string)

	for remotePath, leaf := range e.deps.Cache.Snapshot() {
		if !e.deps.Cache.IsUnder(remotePath, fields.SourceDir) {
			continue // stale leaf from a prior source-directory configuration
		}

		if _, err := os.Lstat(leaf.LocalStrmPath); err == nil {
			continue // still present locally
		}

		name := filepath.Base(remotePath)
		if !passesSuffix(name, fields.Suffix) {
			continue
		}

		dir := path.Dir(remotePath)
		byDir[dir] = append(byDir[dir], name)
	}

	for dir, names := range byDir {
		if err := client.Delete(ctx, dir, names...); err != nil {
			e.deps.Logger.Warn("strmengine: remote delete failed",
				slog.String("task", task.ID), slog.String("dir", dir), slog.String("error", err.Error()))

			continue
		}

		for _, name := range names {
			e.deps.Cache.Prune(path.Join(dir, name))
		}
	}
}

// runReconstruct scans targetDir for existing .strm files and rebuilds
// the cache tree from what is already on disk, without touching the
// remote side (spec section 4.4).
func (e *Engine) runReconstruct(task *store.Task) (store.StatsSnapshot, error) {
	fields := task.Strm

	e.deps.Cache.Reset()
	e.deps.Cache.AdvanceScan()

	var count int

	err := filepath.WalkDir(fields.TargetDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort reconstruct scan
		}

		if d.IsDir() || filepath.Ext(p) != ".strm" {
			return nil
		}

		rel, relErr := filepath.Rel(fields.TargetDir, p)
		if relErr != nil {
			return nil //nolint:nilerr // defensive only
		}

		remotePath := path.Join(fields.SourceDir, strings.TrimSuffix(filepath.ToSlash(rel), ".strm"))

		e.deps.Cache.Observe(remotePath, cache.StrmLeaf{RemotePath: remotePath, LocalStrmPath: p})
		count++

		return nil
	})
	if err != nil {
		return store.StatsSnapshot{}, fmt.Errorf("strmengine: reconstruct walk failed: %w", err)
	}

	if err := e.deps.Cache.Persist(); err != nil {
		e.deps.Logger.Error("strmengine: cache persist failed after reconstruct", slog.String("task", task.ID), slog.String("error", err.Error()))
	}

	return store.StatsSnapshot{Total: count, Success: count}, nil
}
