package index

import (
	"strings"
	"testing"
)

func fullStory() Story {
	return Story{
		URL:            "https://example.com/stories/acme",
		Title:          "Acme Logistics cuts fuel costs",
		Company:        "Acme",
		Industry:       "Logistics",
		Content:        "Acme saved 20% on fuel costs.",
		Highlights:     []string{"20% fuel savings", "Fleet-wide rollout in 6 weeks"},
		ROIMetrics:     []string{"ROI in under a year"},
		Challenges:     []string{"Rising fuel prices"},
		Solutions:      []string{"Route optimization"},
		CompetitorInfo: "LegacyTrack",
	}
}

func TestChunksFromStory_AllFields(t *testing.T) {
	t.Parallel()

	chunks := ChunksFromStory(fullStory(), 1000, 200)

	// Short content gives one main chunk, plus one chunk per structured
	// field (challenges and solutions share one).
	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want 5", len(chunks))
	}

	wantTypes := []ContentType{
		ContentMain, ContentHighlights, ContentROIMetrics, ContentChallenges, ContentCompetitor,
	}
	for i, want := range wantTypes {
		if chunks[i].ContentType != want {
			t.Errorf("chunk %d content type = %s, want %s", i, chunks[i].ContentType, want)
		}
		if chunks[i].Source != "https://example.com/stories/acme" {
			t.Errorf("chunk %d source = %s", i, chunks[i].Source)
		}
		if chunks[i].Company != "Acme" {
			t.Errorf("chunk %d company = %s", i, chunks[i].Company)
		}
	}

	if chunks[0].Text != "Acme saved 20% on fuel costs." {
		t.Errorf("main chunk text = %q", chunks[0].Text)
	}
	if want := "Key highlights for Acme:\n• 20% fuel savings\n• Fleet-wide rollout in 6 weeks"; chunks[1].Text != want {
		t.Errorf("highlights chunk = %q, want %q", chunks[1].Text, want)
	}
	if want := "ROI and performance metrics for Acme:\n• ROI in under a year"; chunks[2].Text != want {
		t.Errorf("roi chunk = %q, want %q", chunks[2].Text, want)
	}
	if want := "Challenges:\n• Rising fuel prices\n\nSolutions:\n• Route optimization"; chunks[3].Text != want {
		t.Errorf("challenges chunk = %q, want %q", chunks[3].Text, want)
	}
	if want := "Acme previously used or switched from: LegacyTrack"; chunks[4].Text != want {
		t.Errorf("competitor chunk = %q, want %q", chunks[4].Text, want)
	}
}

func TestChunksFromStory_EmptyStory(t *testing.T) {
	t.Parallel()

	if chunks := ChunksFromStory(Story{URL: "u"}, 1000, 200); len(chunks) != 0 {
		t.Errorf("empty story produced %d chunks", len(chunks))
	}
}

func TestChunksFromStory_LongContentSplits(t *testing.T) {
	t.Parallel()

	story := Story{
		URL:     "u",
		Content: strings.Repeat("The fleet drove far. ", 200), // ~4200 chars
	}
	chunks := ChunksFromStory(story, 1000, 200)

	if len(chunks) < 4 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if c.ContentType != ContentMain {
			t.Errorf("chunk %d type = %s, want main_content", i, c.ContentType)
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk %d index = %d", i, c.ChunkIndex)
		}
	}
}

func TestChunksFromStory_MissingCompanyUsesFallback(t *testing.T) {
	t.Parallel()

	story := Story{URL: "u", Highlights: []string{"grew fast"}}
	chunks := ChunksFromStory(story, 1000, 200)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "Key highlights for this company:") {
		t.Errorf("highlights text = %q", chunks[0].Text)
	}
}

func TestSynthesizeFullDocument(t *testing.T) {
	t.Parallel()

	doc := SynthesizeFullDocument(fullStory())

	if doc.ContentType != ContentFullDocument {
		t.Errorf("content type = %s, want full_document", doc.ContentType)
	}

	// Fixed order: company, industry, story, highlights, ROI metrics.
	wantOrder := []string{
		"Company: Acme",
		"Industry: Logistics",
		"Story: Acme saved 20% on fuel costs.",
		"Key Highlights:",
		"• 20% fuel savings",
		"ROI Metrics:",
		"• ROI in under a year",
	}
	pos := 0
	for _, want := range wantOrder {
		i := strings.Index(doc.Text[pos:], want)
		if i < 0 {
			t.Fatalf("full document missing %q after position %d:\n%s", want, pos, doc.Text)
		}
		pos += i + len(want)
	}
}

func TestSynthesizeFullDocument_UnknownFallbacks(t *testing.T) {
	t.Parallel()

	doc := SynthesizeFullDocument(Story{URL: "u", Content: "text"})
	if !strings.Contains(doc.Text, "Company: Unknown") || !strings.Contains(doc.Text, "Industry: Unknown") {
		t.Errorf("missing fallbacks in %q", doc.Text)
	}
}

func TestChunkID(t *testing.T) {
	t.Parallel()

	a := ChunkID("https://example.com/a", 0)
	b := ChunkID("https://example.com/a", 1)
	c := ChunkID("https://example.com/b", 0)

	if a == b || a == c || b == c {
		t.Errorf("chunk IDs collide: %s %s %s", a, b, c)
	}
	if a != ChunkID("https://example.com/a", 0) {
		t.Error("chunk ID is not stable")
	}
}
