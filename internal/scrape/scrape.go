// Package scrape collects customer case studies from a vendor's customers
// site and turns them into stories the index can ingest. Discovery prefers
// the sitemap; when none exists it crawls the listing page. Every fetch goes
// through a shared rate limiter.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/casebook-ai/casebook/internal/index"
)

// Defaults for Config fields.
const (
	DefaultRequestsPerSecond = 3
	DefaultTimeout           = 30 * time.Second
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Config configures a Scraper.
type Config struct {
	// BaseURL is the customer stories listing page, for example
	// https://www.example.com/customers. Story pages live beneath it.
	BaseURL string

	// RequestsPerSecond throttles all fetches. Default: 3.
	RequestsPerSecond float64

	// Timeout bounds each HTTP request. Default: 30s.
	Timeout time.Duration

	// MaxStories caps how many stories are fetched, 0 means all.
	MaxStories int

	// UserAgent overrides the default browser user agent.
	UserAgent string
}

// Scraper fetches and parses customer stories.
type Scraper struct {
	cfg     Config
	logger  *slog.Logger
	limiter *rate.Limiter
	client  *http.Client

	base *url.URL
	// prefix is the URL path marking a story page, e.g. /customers/.
	prefix string
}

// New creates a Scraper. BaseURL must be an absolute URL.
func New(cfg Config, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		client:  &http.Client{Timeout: cfg.Timeout},
		base:    base,
		prefix:  base.Path + "/",
	}, nil
}

// Stories discovers all story pages and extracts a Story from each. A page
// that cannot be fetched still yields a minimal story carrying its URL and
// title, so ingestion can report it rather than silently dropping it.
func (s *Scraper) Stories(ctx context.Context) ([]index.Story, error) {
	links, err := s.discoverSitemap(ctx)
	if err != nil || len(links) == 0 {
		s.logger.Info("sitemap discovery found nothing, crawling listing page", "error", err)
		links = s.discoverListing()
	}
	links = dedupeLinks(links)
	if len(links) == 0 {
		return nil, fmt.Errorf("no story links found under %s", s.cfg.BaseURL)
	}
	if s.cfg.MaxStories > 0 && len(links) > s.cfg.MaxStories {
		links = links[:s.cfg.MaxStories]
	}
	s.logger.Info("discovered story links", "count", len(links))

	stories := make([]index.Story, 0, len(links))
	for _, link := range links {
		story, err := s.fetchStory(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return stories, ctx.Err()
			}
			s.logger.Warn("falling back to minimal story", "url", link.url, "error", err)
			story = minimalStory(link)
		}
		stories = append(stories, story)
	}
	return stories, nil
}

type link struct {
	url   string
	title string
}

// discoverSitemap reads the site's sitemap, following robots.txt when the
// conventional path is missing, and keeps URLs under the stories prefix.
func (s *Scraper) discoverSitemap(ctx context.Context) ([]link, error) {
	root := s.base.Scheme + "://" + s.base.Host
	candidates := []string{
		root + "/sitemap.xml",
		root + "/sitemap_index.xml",
	}
	if fromRobots := s.sitemapFromRobots(ctx, root); fromRobots != "" {
		candidates = append(candidates, fromRobots)
	}

	for _, sitemapURL := range candidates {
		body, err := s.get(ctx, sitemapURL)
		if err != nil {
			continue
		}
		var links []link
		for _, loc := range sitemapLocations(body) {
			if s.isStoryURL(loc) {
				links = append(links, link{url: normalizeURL(loc), title: titleFromURL(loc)})
			}
		}
		if len(links) > 0 {
			return links, nil
		}
	}
	return nil, fmt.Errorf("no usable sitemap")
}

func (s *Scraper) sitemapFromRobots(ctx context.Context, root string) string {
	body, err := s.get(ctx, root+"/robots.txt")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			return strings.TrimSpace(line[len("sitemap:"):])
		}
	}
	return ""
}

// discoverListing crawls the listing page and collects story links.
func (s *Scraper) discoverListing() []link {
	var links []link

	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowedDomains(s.base.Host),
	)
	c.SetRequestTimeout(s.cfg.Timeout)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if !s.isStoryURL(href) {
			return
		}
		title := strings.TrimSpace(e.Text)
		if title == "" {
			title = titleFromURL(href)
		}
		links = append(links, link{url: normalizeURL(href), title: title})
	})
	c.OnError(func(r *colly.Response, err error) {
		s.logger.Warn("listing crawl failed", "url", r.Request.URL, "error", err)
	})

	if err := c.Visit(s.base.String()); err != nil {
		s.logger.Warn("visiting listing page", "url", s.base.String(), "error", err)
	}
	c.Wait()
	return links
}

// fetchStory fetches one story page, retrying once on failure.
func (s *Scraper) fetchStory(ctx context.Context, l link) (index.Story, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		body, err := s.get(ctx, l.url)
		if err != nil {
			lastErr = err
			continue
		}
		return extractStory(body, l), nil
	}
	return index.Story{}, lastErr
}

func (s *Scraper) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *Scraper) isStoryURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != s.base.Host {
		return false
	}
	return strings.HasPrefix(u.Path, s.prefix) && strings.TrimRight(u.Path, "/") != s.base.Path
}

func dedupeLinks(links []link) []link {
	seen := make(map[string]struct{}, len(links))
	out := links[:0:0]
	for _, l := range links {
		if _, ok := seen[l.url]; ok {
			continue
		}
		seen[l.url] = struct{}{}
		out = append(out, l)
	}
	return out
}

func normalizeURL(rawURL string) string {
	return strings.TrimRight(strings.TrimSpace(rawURL), "/")
}

// titleFromURL derives a readable title from the URL slug.
func titleFromURL(rawURL string) string {
	slug := normalizeURL(rawURL)
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// minimalStory records a page that could not be fetched.
func minimalStory(l link) index.Story {
	title := l.title
	if title == "" {
		title = "Unknown"
	}
	return index.Story{
		URL:      l.url,
		Title:    title,
		Company:  title,
		Industry: "Unknown",
		Content: fmt.Sprintf("Story: %s - Content could not be extracted. Visit %s for more information.",
			title, l.url),
	}
}
