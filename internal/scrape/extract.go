package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/casebook-ai/casebook/internal/index"
)

// Extraction caps, matching how much signal each field usually carries.
const (
	maxHighlights = 10
	maxROIMetrics = 5
	maxChallenges = 3
	maxSolutions  = 3
)

var industryKeywords = []string{
	"construction", "logistics", "education", "transportation",
	"manufacturing", "retail", "healthcare", "government",
	"agriculture", "energy", "utilities", "food", "beverage",
}

var roiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d+%\s*(?:improvement|increase|reduction|savings?)`),
	regexp.MustCompile(`(?i)\$[\d,]+\s*(?:saved|savings?|reduced?)`),
	regexp.MustCompile(`(?i)\d+\s*hours?\s*(?:saved|reduced?)`),
	regexp.MustCompile(`(?i)\d+x\s*(?:faster|improvement|increase)`),
	regexp.MustCompile(`(?i)reduced?\s*(?:by\s*)?\d+%`),
	regexp.MustCompile(`(?i)increased?\s*(?:by\s*)?\d+%`),
	regexp.MustCompile(`(?i)saved?\s*\$[\d,]+`),
}

var competitorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)switched from (\w+)`),
	regexp.MustCompile(`(?i)replaced (\w+)`),
	regexp.MustCompile(`(?i)moved from (\w+)`),
	regexp.MustCompile(`(?i)previously used (\w+)`),
	regexp.MustCompile(`(?i)migrated from (\w+)`),
}

var challengeKeywords = []string{
	"challenge", "problem", "issue", "difficulty", "struggle",
	"pain point", "obstacle", "barrier",
}

var solutionKeywords = []string{
	"solution", "implemented", "deployed", "installed",
	"adopted", "leveraged",
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// sitemapLocations pulls the <loc> entries out of a sitemap without a full
// XML decode, tolerating the namespace variations sitemaps ship with.
var locRE = regexp.MustCompile(`(?s)<loc>\s*(.*?)\s*</loc>`)

func sitemapLocations(body []byte) []string {
	matches := locRE.FindAllSubmatch(body, -1)
	locs := make([]string, 0, len(matches))
	for _, m := range matches {
		locs = append(locs, string(m[1]))
	}
	return locs
}

// extractStory parses one story page. Every field degrades independently; a
// page with no recognizable structure still yields its text content.
func extractStory(html []byte, l link) index.Story {
	story := index.Story{
		URL:      l.url,
		Title:    l.title,
		Industry: "Unknown",
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		story.Company = l.title
		story.Content = string(html)
		return story
	}
	doc.Find("script, style, nav, footer, header").Remove()
	pageText := doc.Find("body").Text()

	story.Company = extractCompany(doc, l.title)
	story.Industry = extractIndustry(pageText)
	story.Content = extractContent(html, doc, l.url)
	story.Highlights = extractHighlights(doc)
	story.ROIMetrics = extractROIMetrics(pageText)
	story.Challenges = sentencesWithKeywords(pageText, challengeKeywords, maxChallenges)
	story.Solutions = sentencesWithKeywords(pageText, solutionKeywords, maxSolutions)
	story.CompetitorInfo = extractCompetitor(pageText)
	return story
}

func extractCompany(doc *goquery.Document, title string) string {
	for _, sel := range []string{"h1", ".company-name", ".customer-name"} {
		name := strings.TrimSpace(doc.Find(sel).First().Text())
		if name != "" && len(name) < 100 {
			return name
		}
	}
	if title != "" {
		return title
	}
	return "Unknown Company"
}

func extractIndustry(pageText string) string {
	lower := strings.ToLower(pageText)
	for _, kw := range industryKeywords {
		if strings.Contains(lower, kw) {
			return strings.ToUpper(kw[:1]) + kw[1:]
		}
	}
	return "Other"
}

// extractContent prefers the readability extraction of the article body and
// falls back to the page's whole text.
func extractContent(html []byte, doc *goquery.Document, pageURL string) string {
	if u, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(bytes.NewReader(html), u); err == nil {
			if text := collapseWhitespace(article.TextContent); len(text) > 200 {
				return text
			}
		}
	}
	return collapseWhitespace(doc.Find("body").Text())
}

func extractHighlights(doc *goquery.Document) []string {
	var highlights []string
	doc.Find(".highlights li, .benefits li, .key-points li, ul li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) > 10 && len(text) < 200 {
			highlights = append(highlights, text)
		}
		return len(highlights) < maxHighlights
	})
	return highlights
}

func extractROIMetrics(pageText string) []string {
	var metrics []string
	seen := make(map[string]struct{})
	for _, re := range roiPatterns {
		for _, m := range re.FindAllString(pageText, -1) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			metrics = append(metrics, m)
			if len(metrics) >= maxROIMetrics {
				return metrics
			}
		}
	}
	return metrics
}

func sentencesWithKeywords(pageText string, keywords []string, limit int) []string {
	var out []string
	for _, sentence := range strings.Split(strings.ToLower(pageText), ".") {
		sentence = collapseWhitespace(sentence)
		if len(sentence) <= 20 {
			continue
		}
		for _, kw := range keywords {
			if strings.Contains(sentence, kw) {
				out = append(out, sentence)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func extractCompetitor(pageText string) string {
	lower := strings.ToLower(pageText)
	for _, re := range competitorPatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			return m[1]
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}
