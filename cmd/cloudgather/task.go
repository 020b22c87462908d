package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudgather/cloudgather/internal/cgerrors"
	"github.com/cloudgather/cloudgather/internal/scheduler"
	"github.com/cloudgather/cloudgather/internal/store"
)

// newTaskCmd groups task inspection and one-shot run subcommands. Trigger,
// full-overwrite, and reconstruct run the task synchronously in this
// process rather than through a running daemon's scheduler: the HTTP/JSON
// control surface that would let the CLI hand work to a live `serve`
// process is explicitly out of core (spec.md §1, §6), so these commands
// dispatch directly through the same Dispatcher a daemon would use.
func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and run tasks",
	}

	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskEnableCmd(true))
	cmd.AddCommand(newTaskEnableCmd(false))
	cmd.AddCommand(newTaskRunCmd("trigger", "Run a task now, outside its cron schedule", entryKindForTask))
	cmd.AddCommand(newTaskRunCmd("full-overwrite", "Run a task, re-copying or re-generating every file regardless of cache state", func(*store.Task) scheduler.EntryKind { return scheduler.EntryFullOverwrite }))
	cmd.AddCommand(newTaskRunCmd("reconstruct", "Rebuild a task's cache from what already exists on disk, without touching the remote/source side", func(*store.Task) scheduler.EntryKind { return scheduler.EntryReconstruct }))

	return cmd
}

func entryKindForTask(task *store.Task) scheduler.EntryKind {
	if task.Kind == store.KindStrm {
		return scheduler.EntryStrm
	}

	return scheduler.EntrySync
}

func newTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := mustCLIContext(cmd.Context()).Runtime

			tasks := rt.Tasks.List()

			rows := make([][]string, 0, len(tasks))
			for _, t := range tasks {
				next := "-"
				if t.NextRun != nil {
					next = formatTime(*t.NextRun)
				}

				rows = append(rows, []string{t.ID, t.Name, string(t.Kind), t.Cron, enabledLabel(t.Enabled), string(t.Status), next})
			}

			printTable(os.Stdout, []string{"ID", "NAME", "KIND", "CRON", "ENABLED", "STATUS", "NEXT RUN"}, rows)

			return nil
		},
	}
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "yes"
	}

	return "no"
}

func newTaskEnableCmd(enable bool) *cobra.Command {
	use := "disable <task-id>"
	short := "Disable a task (it will no longer be scheduled)"

	if enable {
		use = "enable <task-id>"
		short = "Enable a task"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := mustCLIContext(cmd.Context()).Runtime

			if err := rt.Tasks.SetEnabled(args[0], enable); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "task %s: enabled=%v\n", args[0], enable)

			return nil
		},
	}
}

// newTaskRunCmd builds a one-shot run subcommand for the given name,
// deriving its scheduler.Entry.Kind from kindFor.
func newTaskRunCmd(name, short string, kindFor func(*store.Task) scheduler.EntryKind) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := mustCLIContext(cmd.Context()).Runtime

			task := rt.Tasks.Get(args[0])
			if task == nil {
				return cgerrors.ErrTaskNotFound
			}

			entry := scheduler.Entry{TaskID: task.ID, Kind: kindFor(task)}

			stats, err := rt.Dispatch(cmd.Context(), task, entry)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "total=%d success=%d skipped=%d failed=%d protectionWarn=%v\n",
				stats.Total, stats.Success, stats.Skipped, stats.Failed, stats.ProtectionWarn)

			return nil
		},
	}
}
