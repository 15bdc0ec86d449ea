package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...";
// it defaults to "dev" for local builds.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the boss-engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("boss-engine %s\n", version)
	},
}
