// Package main provides the entry point for the coocscan CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphmine/coocscan/cmd/coocscan/commands"
	"github.com/graphmine/coocscan/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "coocscan",
		Short: "Coocscan - concept co-occurrence matrix builder",
		Long: `Coocscan streams compressed record archives and accumulates a weighted
concept co-occurrence matrix with checkpointed, resumable progress.

Commands:
  scan      Scan a corpus and build the co-occurrence matrix
  report    Summarize a built matrix: top pairs and structural holes
  plot      Render matrix charts to a standalone HTML page`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands.
	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewPlotCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "coocscan %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
