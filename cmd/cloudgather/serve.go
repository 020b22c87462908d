package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudgather/cloudgather/internal/cronexpr"
	"github.com/cloudgather/cloudgather/internal/scheduler"
)

// newServeCmd runs the Scheduler Core loop until signaled (spec section
// 4.7), mirroring the teacher's long-running `sync --watch` command shape:
// pidfile for single-instance enforcement, graceful double-signal shutdown,
// SIGHUP to pick up task-store changes made while running.
func newServeCmd() *cobra.Command {
	var timezone string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler loop, dispatching sync and STRM tasks on their cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			rt := cc.Runtime

			tz := timezone
			if tz == "" {
				tz = rt.TZ
			}

			loc := time.Local
			if tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Errorf("loading timezone %q: %w", tz, err)
				}
				loc = l
			}

			pidPath := filepath.Join(rt.ConfigDir, "cloudgather.pid")

			cleanup, err := writePIDFile(pidPath)
			if err != nil {
				return err
			}
			defer cleanup()

			sched := scheduler.New(scheduler.Config{
				Tasks:      rt.Tasks,
				Evaluator:  cronexpr.NewEvaluator(loc),
				Dispatcher: rt,
				Logger:     rt.Logger,
			})

			if err := sched.Reload(); err != nil {
				return fmt.Errorf("seeding scheduler: %w", err)
			}

			ctx := shutdownContext(cmd.Context(), rt.Logger)

			hupCh := sighupChannel()
			defer signal.Stop(hupCh)

			go func() {
				for {
					select {
					case <-hupCh:
						rt.Logger.Info("received SIGHUP, reloading tasks, settings and task schedule")

						if err := rt.Tasks.Load(); err != nil {
							rt.Logger.Error("reloading tasks failed", slog.String("error", err.Error()))
						}

						if err := rt.Settings.Load(); err != nil {
							rt.Logger.Error("reloading settings failed", slog.String("error", err.Error()))
						}

						if err := sched.Reload(); err != nil {
							rt.Logger.Error("reload failed", slog.String("error", err.Error()))
						}
					case <-ctx.Done():
						return
					}
				}
			}()

			rt.Logger.Info("cloudgather serve starting", slog.Int("task_count", len(rt.Tasks.List())))

			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&timezone, "tz", "", "IANA timezone for cron evaluation (default: env TZ or local)")

	return cmd
}
