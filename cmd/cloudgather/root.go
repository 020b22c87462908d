package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cloudgather/cloudgather/internal/appconfig"
	"github.com/cloudgather/cloudgather/internal/cglog"
	"github.com/cloudgather/cloudgather/internal/logring"
	"github.com/cloudgather/cloudgather/internal/runtimectx"
	"github.com/cloudgather/cloudgather/internal/store"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigDir string
	flagVerbose   bool
	flagDebug     bool
	flagQuiet     bool
)

// skipConfigAnnotation marks commands that must not build a Runtime (none
// currently do, but the hook mirrors the teacher's PersistentPreRunE shape
// for future out-of-core commands like a control-surface bridge).
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles the Runtime every RunE handler needs.
type CLIContext struct {
	Runtime *runtimectx.Runtime
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — command tree misconfigured")
	}

	return cc
}

// newRootCmd builds the fully-assembled root command with all subcommands
// registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cloudgather",
		Short:         "Mirrors files between local storage and cloud storage, and generates .strm pointer files",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadRuntime(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "directory holding tasks.json, settings.json, and cache/ (default: env CONFIG_DIR or /config)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCronCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newSettingsCmd())

	return cmd
}

// loadRuntime reads bootstrap config, builds the logger, loads the Task
// Store and Global Settings, and stashes the resulting Runtime in the
// command's context — the same one-PersistentPreRunE-builds-a-context-
// value shape as the teacher's loadConfig.
func loadRuntime(cmd *cobra.Command) error {
	appCfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("loading bootstrap config: %w", err)
	}

	if flagConfigDir != "" {
		appCfg.ConfigDir = flagConfigDir
	}

	consoleLevel := appCfg.ConsoleLevel
	if flagVerbose {
		consoleLevel = "info"
	}

	if flagDebug {
		consoleLevel = "debug"
	}

	if flagQuiet {
		consoleLevel = "error"
	}

	logger, ring, err := cglog.New(cglog.Config{
		LogDir:       appCfg.ConfigDir,
		LogLevel:     appCfg.LogLevel,
		ConsoleLevel: consoleLevel,
		SaveDays:     appCfg.LogSaveDays,
	})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	logger.Debug("bootstrap config resolved",
		slog.String("config_dir", appCfg.ConfigDir),
		slog.Bool("is_docker", appCfg.IsDocker),
		slog.Int("puid", appCfg.PUID),
		slog.Int("pgid", appCfg.PGID),
	)

	tasks := store.NewTaskStore(appCfg.ConfigDir)
	if err := tasks.Load(); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	settings := store.NewSettingsStore(appCfg.ConfigDir)
	if err := settings.Load(); err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	rt := runtimectx.New(tasks, settings, logger, ring, appCfg.ConfigDir, appCfg.StabilityDelay, appCfg.TZ)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, asCLIContext(rt)))

	return nil
}

// asCLIContext wraps rt in the package-local CLIContext so command files
// need only import this package's types.
func asCLIContext(rt *runtimectx.Runtime) *CLIContext {
	return &CLIContext{Runtime: rt}
}

// logRingOf is a small accessor so command handlers don't need to reach
// into Runtime's fields directly.
func logRingOf(cc *CLIContext) *logring.Registry {
	return cc.Runtime.LogRing
}
