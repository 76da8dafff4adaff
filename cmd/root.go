// Package cmd defines the kura command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kura",
	Short: "Kura - document knowledge base with semantic search",
	Long: `Kura ingests heterogeneous documents, splits them into
boundary-aware overlapping chunks, and stores them in a persistent
vector collection for semantic retrieval.

Run "kura serve" to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
