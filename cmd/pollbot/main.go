// Command pollbot runs a Telegram bot that sends polls and quizzes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitlab.com/yelinaung/tgbot/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Log.Error().Err(err).Msg("pollbot failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pollbot",
		Short:         "Telegram bot sending polls and quizzes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pollbot %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
