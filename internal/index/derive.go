package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/casebook-ai/casebook/internal/chunk"
)

// ChunksFromStory derives the retrievable chunks for one story: the main
// content split into overlapping segments, plus one chunk per non-empty
// structured field. Both index backends share this derivation so their
// contents stay interchangeable.
func ChunksFromStory(s Story, chunkSize, chunkOverlap int) []Chunk {
	var chunks []Chunk

	base := func(ct ContentType) Chunk {
		return Chunk{
			Source:      s.URL,
			Title:       s.Title,
			Company:     s.Company,
			Industry:    s.Industry,
			ContentType: ct,
		}
	}

	for i, text := range chunk.Split(s.Content, chunkSize, chunkOverlap) {
		c := base(ContentMain)
		c.Text = text
		c.ChunkIndex = i
		chunks = append(chunks, c)
	}

	if len(s.Highlights) > 0 {
		c := base(ContentHighlights)
		c.Text = fmt.Sprintf("Key highlights for %s:\n%s", companyOr(s, "this company"), bulletList(s.Highlights))
		chunks = append(chunks, c)
	}

	if len(s.ROIMetrics) > 0 {
		c := base(ContentROIMetrics)
		c.Text = fmt.Sprintf("ROI and performance metrics for %s:\n%s", companyOr(s, "this company"), bulletList(s.ROIMetrics))
		chunks = append(chunks, c)
	}

	if len(s.Challenges) > 0 || len(s.Solutions) > 0 {
		var b strings.Builder
		if len(s.Challenges) > 0 {
			b.WriteString("Challenges:\n")
			b.WriteString(bulletList(s.Challenges))
			b.WriteString("\n\n")
		}
		if len(s.Solutions) > 0 {
			b.WriteString("Solutions:\n")
			b.WriteString(bulletList(s.Solutions))
		}
		c := base(ContentChallenges)
		c.Text = strings.TrimRight(b.String(), "\n")
		chunks = append(chunks, c)
	}

	if s.CompetitorInfo != "" {
		c := base(ContentCompetitor)
		c.Text = fmt.Sprintf("%s previously used or switched from: %s", companyOr(s, "This company"), s.CompetitorInfo)
		chunks = append(chunks, c)
	}

	return chunks
}

// SynthesizeFullDocument builds the aggregate passage returned by
// parent-document retrieval: company, industry, main content, highlights and
// ROI metrics concatenated in a fixed order.
func SynthesizeFullDocument(s Story) Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\n", companyOr(s, "Unknown"))
	fmt.Fprintf(&b, "Industry: %s\n\n", valueOr(s.Industry, "Unknown"))
	fmt.Fprintf(&b, "Story: %s\n\n", s.Content)

	if len(s.Highlights) > 0 {
		b.WriteString("Key Highlights:\n")
		b.WriteString(bulletList(s.Highlights))
		b.WriteString("\n\n")
	}
	if len(s.ROIMetrics) > 0 {
		b.WriteString("ROI Metrics:\n")
		b.WriteString(bulletList(s.ROIMetrics))
		b.WriteString("\n\n")
	}

	return Chunk{
		Text:        b.String(),
		Source:      s.URL,
		Title:       s.Title,
		Company:     s.Company,
		Industry:    s.Industry,
		ContentType: ContentFullDocument,
	}
}

// ChunkID derives a stable document ID for a chunk so that re-ingesting a
// story replaces its chunks instead of appending new copies.
func ChunkID(source string, i int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s_%d", source, i))
	return "chunk_" + hex.EncodeToString(sum[:16])
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "• " + item
	}
	return strings.Join(lines, "\n")
}

func companyOr(s Story, fallback string) string {
	return valueOr(s.Company, fallback)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
