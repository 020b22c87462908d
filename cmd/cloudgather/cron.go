package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudgather/cloudgather/internal/cronexpr"
)

// newCronCmd exposes the Cron Evaluator (spec section 4.2) as a group of
// read-only helper subcommands, mirroring the teacher's `conflicts`/`stat`
// inspection-command shape.
func newCronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect and generate cron expressions",
	}

	cmd.AddCommand(newCronValidateCmd())
	cmd.AddCommand(newCronPresetsCmd())
	cmd.AddCommand(newCronRandomCmd())

	return cmd
}

func newCronValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <expr>",
		Short: "Validate a cron expression and show its next fire time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eval := cronexpr.NewEvaluator(time.Local)

			ok, description := eval.Validate(args[0])
			if !ok {
				return fmt.Errorf("invalid cron expression %q", args[0])
			}

			next, err := eval.NextFire(args[0], time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "%s — next fire: %s\n", description, next.Format(time.RFC3339))

			return nil
		},
	}
}

func newCronPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List canned cron schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := cronexpr.ListPresets()

			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				rows = append(rows, []string{p.Name, p.Expr, p.Description})
			}

			printTable(os.Stdout, []string{"NAME", "EXPR", "DESCRIPTION"}, rows)

			return nil
		},
	}
}

func newCronRandomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "random <pattern>",
		Short: "Generate a jittered cron expression from a preset pattern (e.g. hourly, daily, night)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := cronexpr.RandomFromPattern(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, expr)

			return nil
		},
	}
}
