package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis - concurrent content-safety analysis",
	Long: `Aegis screens text for harmful content, bias, privacy leaks and
misinformation. Results carry an overall safety score in [0,1], per-category
scores and individual flags with evidence.

Configuration is read from the file given by --config, then AEGIS_*
environment variables are applied on top.

Exit codes:
  0  success
  1  error
  2  invalid input or configuration
  3  analysis timed out
  4  content requires review (with --fail-on-review)`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
