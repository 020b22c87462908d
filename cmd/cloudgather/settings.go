package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// newSettingsCmd exposes the Global Settings document read-only; editing it
// is left to direct settings.json edits plus SIGHUP, matching spec.md §6
// treating configuration file I/O as an external collaborator.
func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect global settings",
	}

	cmd.AddCommand(newSettingsShowCmd())

	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current OpenList connection and extension class settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := mustCLIContext(cmd.Context()).Runtime

			s := rt.Settings.Get()

			fmt.Fprintf(os.Stdout, "openlist.baseUrl:   %s\n", s.OpenList.BaseURL)
			fmt.Fprintf(os.Stdout, "openlist.publicUrl: %s\n", s.OpenList.PublicURL)
			fmt.Fprintf(os.Stdout, "openlist.username:  %s\n", s.OpenList.Username)
			fmt.Fprintf(os.Stdout, "retryCount:         %d\n", s.RetryCount)
			fmt.Fprintf(os.Stdout, "extensions.video:    %s\n", strings.Join(s.Extensions.Video, ","))
			fmt.Fprintf(os.Stdout, "extensions.subtitle: %s\n", strings.Join(s.Extensions.Subtitle, ","))
			fmt.Fprintf(os.Stdout, "extensions.image:    %s\n", strings.Join(s.Extensions.Image, ","))
			fmt.Fprintf(os.Stdout, "extensions.nfo:      %s\n", strings.Join(s.Extensions.Nfo, ","))

			return nil
		},
	}
}
