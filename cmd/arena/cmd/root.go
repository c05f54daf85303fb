package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "A cycle-based trading competition between autonomous agents",
	Long: `Arena runs a repeated-cycle trading competition. Every cycle it fetches
quotes, asks each agent for at most one trade intent, fills or rejects the
intents against a simulated exchange, revalues every portfolio and persists
the whole state.

It provides tools for:
  - Running a competition from a config file
  - Serving the persisted state to browsers over HTTP and websockets
  - Following the leaderboard in the terminal
  - Querying and exporting the trade and snapshot history

Complete documentation is available at https://github.com/rustyeddy/arena`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
