package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/cli"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print analyzer capabilities and registered models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := cli.SetupSignalHandler()
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return (&cli.JSONFormatter{Indent: true}).FormatTo(cmd.OutOrStdout(), a.analyzer.Info())
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
