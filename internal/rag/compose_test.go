package rag

import (
	"strings"
	"testing"

	"github.com/casebook-ai/casebook/internal/index"
)

func TestBuildContext(t *testing.T) {
	t.Parallel()

	chunks := []index.Chunk{
		{Text: "saved fuel", Source: "https://example.com/a", Company: "Acme", Industry: "Logistics"},
		{Text: "less waste"},
	}
	got := buildContext(chunks)

	want := "--- Source 1: Acme (Logistics) ---\nURL: https://example.com/a\nContent: saved fuel\n\n"
	if !strings.Contains(got, want) {
		t.Errorf("context missing labeled section %q:\n%s", want, got)
	}
	// Missing metadata falls back to explicit unknowns rather than blanks.
	if !strings.Contains(got, "--- Source 2: Unknown Company (Unknown Industry) ---\nURL: Unknown Source\n") {
		t.Errorf("context missing unknown fallbacks:\n%s", got)
	}
}

func TestBuildContext_Empty(t *testing.T) {
	t.Parallel()

	if got := buildContext(nil); got != "" {
		t.Errorf("context for no chunks = %q, want empty", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	got := buildPrompt("how much fuel was saved?", "CONTEXT-BLOCK")
	if !strings.Contains(got, "CONTEXT-BLOCK") {
		t.Error("prompt missing context block")
	}
	if !strings.Contains(got, "User question: how much fuel was saved?") {
		t.Errorf("prompt missing question:\n%s", got)
	}
	if i := strings.Index(got, "CONTEXT-BLOCK"); i > strings.Index(got, "User question:") {
		t.Error("context must precede the question")
	}
}
