// Package cmd wires the runcat command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/runcat/cmd/ingest"
	"github.com/tphakala/runcat/cmd/migrate"
	"github.com/tphakala/runcat/cmd/process"
	"github.com/tphakala/runcat/cmd/spectrum"
	"github.com/tphakala/runcat/internal/config"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *config.Context) *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "runcat",
		Short:         "Running catalog association engine",
		Long:          `Merge per-image radio source detections into a running catalog and fit their spectra.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.ConfigPath, "config", "c", "", "Path to config file (default: ./runcat.yaml, ~/.config/runcat, /etc/runcat)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		migrate.Command(ctx),
		ingest.Command(ctx),
		process.Command(ctx),
		spectrum.Command(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.Init(debug)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.Close()
	}

	return rootCmd
}
