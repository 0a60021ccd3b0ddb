// Package cmd implements the casebook command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "casebook",
	Short: "Question answering over customer case studies",
	Long: `Casebook ingests customer case studies from a vendor site, indexes them
with vector embeddings, and answers questions about them with retrieval
augmented generation.

Typical workflow:

  casebook ingest                  # scrape and index the stories
  casebook ask "Who reduced fuel costs?"
  casebook stats

Configuration lives in ~/.casebook/config.yaml; every key can be
overridden with a CASEBOOK_* environment variable.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
