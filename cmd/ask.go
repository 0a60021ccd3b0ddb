package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/casebook-ai/casebook/internal/rag"
)

var (
	askStrategy string
	askMethod   string
	askTopK     int
	askJSON     bool
	askTraceOut string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed case studies",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askStrategy, "strategy", "", "retrieval strategy: naive, parent_document, hybrid or agentic")
	askCmd.Flags().StringVar(&askMethod, "method", "", "search method for the naive strategy: semantic, keyword or hybrid")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "number of chunks to retrieve")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the raw response as JSON")
	askCmd.Flags().StringVar(&askTraceOut, "trace-out", "", "write the query trace to this file as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	cfg := a.cfg.Retrieval()
	if askStrategy != "" {
		cfg.Strategy = rag.ParseStrategy(askStrategy)
	}
	if askMethod != "" {
		cfg.Method = rag.ParseMethod(askMethod)
	}
	if askTopK > 0 {
		cfg.TopK = askTopK
	}

	question := strings.Join(args, " ")
	resp, err := a.engine.Query(ctx, question, cfg)
	if err != nil {
		return err
	}

	if askTraceOut != "" {
		if err := writeTrace(a, askTraceOut); err != nil {
			a.logger.Warn("writing trace file", "path", askTraceOut, "error", err)
		}
	}

	if askJSON {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(renderMarkdown(resp.Answer))
	if len(resp.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, src := range resp.Sources {
			fmt.Printf("  - %s\n", src)
		}
	}
	fmt.Printf("\n%d tokens, %s\n", resp.TokensUsed, resp.ResponseTime.Round(time.Millisecond))
	return nil
}

func writeTrace(a *app, path string) error {
	data, err := a.tracker.ExportJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// renderMarkdown styles the answer for the terminal, falling back to plain
// text when the renderer cannot be built.
func renderMarkdown(markdown string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return markdown
	}
	rendered, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimSuffix(rendered, "\n")
}
