package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the index currently holds",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	stats, err := a.index.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading index stats: %w", err)
	}

	fmt.Printf("Chunks:         %d\n", stats.Chunks)
	fmt.Printf("Companies:      %d\n", stats.Companies)
	fmt.Printf("Full documents: %d\n", stats.FullDocuments)
	if len(stats.Industries) > 0 {
		fmt.Printf("Industries:     %s\n", strings.Join(stats.Industries, ", "))
	}
	return nil
}
