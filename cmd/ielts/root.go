package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRootCmd(c *cli) *cobra.Command {
	var noColor bool
	root := &cobra.Command{
		Use:           "ielts",
		Short:         "IELTS Writing practice with examiner-style band scores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if noColor || !isTTY() {
				color.NoColor = true
			}
			c.stderr = cmd.ErrOrStderr()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $HOME/.ielts/config.json)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newPracticeCmd(c),
		newWorkerCmd(c),
		newPromptCmd(c),
		newTestConnectionCmd(c),
		newStatsCmd(c),
		newSessionsCmd(c),
		newConfigCmd(c),
		newMaintenanceCmd(c),
	)
	return root
}
