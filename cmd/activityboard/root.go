package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/small-frappuccino/activityboard/pkg/app"
)

func execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "activityboard",
		Short:         "Discord guild activity leaderboard bot",
		Long:          "activityboard tracks messages and voice time per guild member and keeps two auto-updating leaderboard messages posted in each configured guild.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(configFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (optional)")

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.Version())
			return err
		},
	}
}
