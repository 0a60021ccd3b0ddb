package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/casebook-ai/casebook/internal/scrape"
)

var (
	ingestMax   int
	ingestFresh bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape customer stories and index them",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestMax, "max", 0, "limit the number of stories (0 = all)")
	ingestCmd.Flags().BoolVar(&ingestFresh, "fresh", false, "clear the index before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	maxStories := a.cfg.ScrapeMaxStories
	if ingestMax > 0 {
		maxStories = ingestMax
	}
	scraper, err := scrape.New(scrape.Config{
		BaseURL:           a.cfg.ScrapeBaseURL,
		RequestsPerSecond: a.cfg.ScrapeRateLimit,
		MaxStories:        maxStories,
	}, a.logger.With("component", "scrape"))
	if err != nil {
		return err
	}

	fmt.Printf("Scraping %s ...\n", a.cfg.ScrapeBaseURL)
	stories, err := scraper.Stories(ctx)
	if err != nil {
		return fmt.Errorf("scraping stories: %w", err)
	}
	fmt.Printf("Fetched %d stories, indexing ...\n", len(stories))

	upsert := a.index.Upsert
	if ingestFresh {
		upsert = a.index.Refresh
	}
	summary, err := upsert(ctx, stories)
	if err != nil {
		return fmt.Errorf("indexing stories: %w", err)
	}

	fmt.Printf("Indexed %d stories as %d chunks", summary.Stories, summary.Chunks)
	if summary.Failures > 0 {
		fmt.Printf(" (%d failed)", summary.Failures)
	}
	fmt.Println()
	return nil
}
