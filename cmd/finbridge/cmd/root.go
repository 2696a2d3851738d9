package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "finbridge",
	Short: "FinBridge is a bank connector service",
	Long: `A bank connector service that collects account information, balances and
transactions from banks on behalf of its callers, driving interactive
authentication through a websocket session when a bank demands it.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
