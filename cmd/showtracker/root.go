package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"showtracker/pkg/logger"
	"showtracker/pkg/paths"
)

func newRootCommand() *cobra.Command {
	var dataDirFlag string
	var logLevelFlag string

	ctx := newCommandContext(&dataDirFlag)

	rootCmd := &cobra.Command{
		Use:           "showtracker",
		Short:         "Search and identify TV episode releases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir := strings.TrimSpace(dataDirFlag); dir != "" {
				if err := os.Setenv(paths.DataDirEnv, dir); err != nil {
					return err
				}
			}
			if logLevelFlag != "" {
				logger.SetLevel(logLevelFlag)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&dataDirFlag, "data-dir", "d", "", "Directory holding config.json, state.json and the show database")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newIdentifyCommand(ctx))
	rootCmd.AddCommand(newQualityCommand())
	rootCmd.AddCommand(newBackendsCommand(ctx))
	rootCmd.AddCommand(newLoginCommand(ctx))
	rootCmd.AddCommand(newShowsCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}
