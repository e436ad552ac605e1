package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pixelbridge/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pixelbridge",
		Short: "Stream pattern previews from a Pixelblaze to an LED button grid",
		Long: `pixelbridge keeps a WebSocket connection to a Pixelblaze-style pattern
source, decodes its live preview frames and paints them onto a button/LED
grid. Any failure along the way tears the connection down and the bridge
reconnects after a fixed delay.

Commands:
  run        Run the bridge
  simulate   Serve a simulated pattern source for local testing
  config     Inspect the configuration
  version    Print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		runCmd(),
		simulateCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}
