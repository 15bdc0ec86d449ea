package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "boss-engine",
	Short: "boss-engine - a broker for AI coding agent adapters",
	Long: `boss-engine is a long-lived broker process that multiplexes
adapter-protocol subprocesses, manages their terminals and permission
prompts, and bridges them to frontends over a Unix socket (and,
optionally, a local websocket gateway).`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(versionCmd)
}
