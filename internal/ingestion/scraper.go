package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/primesandzooms/chatbot-backend/internal/document"
	"github.com/primesandzooms/chatbot-backend/pkg/config"
	"github.com/primesandzooms/chatbot-backend/pkg/logger"
)

// minPageLength is the cleaned-text floor below which a page is treated as
// non-content (redirect stubs, empty templates) and dropped entirely.
const minPageLength = 100

var skippedExtensions = []string{".pdf", ".jpg", ".png", ".gif", ".css", ".js"}

// Scraper crawls the rental site breadth-first, same-domain only.
type Scraper struct {
	baseDomain string
	userAgent  string
	httpClient *http.Client
}

func NewScraper(cfg config.CrawlerConfig) *Scraper {
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Scraper{
		baseDomain: cfg.BaseDomain,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type frontierEntry struct {
	url   string
	depth int
}

// Scrape fetches the seed URLs and follows same-domain links up to maxDepth
// hops. Fetch and parse failures skip the URL and continue; the frontier is
// local to this call and never shared.
func (s *Scraper) Scrape(ctx context.Context, seedURLs []string, maxDepth int) ([]document.Document, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}

	visited := make(map[string]bool)
	queue := make([]frontierEntry, 0, len(seedURLs))
	for _, u := range seedURLs {
		queue = append(queue, frontierEntry{url: u, depth: 0})
	}

	var documents []document.Document

	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		// Pop-time check is the authoritative dedup gate; a URL enqueued
		// twice before first processing is absorbed here.
		if visited[entry.url] {
			continue
		}
		if entry.depth > maxDepth {
			continue
		}
		visited[entry.url] = true

		doc, links := s.scrapePage(ctx, entry.url)
		if doc != nil {
			documents = append(documents, *doc)
		}

		if entry.depth < maxDepth {
			for _, link := range links {
				if !visited[link] {
					queue = append(queue, frontierEntry{url: link, depth: entry.depth + 1})
				}
			}
		}
	}

	logger.Info("Crawl finished",
		zap.Int("seeds", len(seedURLs)),
		zap.Int("max_depth", maxDepth),
		zap.Int("pages_visited", len(visited)),
		zap.Int("documents", len(documents)),
	)

	return documents, nil
}

// scrapePage returns the page's Document plus discovered same-domain links.
// Any failure, or a page under minPageLength, yields (nil, nil).
func (s *Scraper) scrapePage(ctx context.Context, pageURL string) (*document.Document, []string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		logger.Warn("Skipping malformed URL", zap.String("url", pageURL), zap.Error(err))
		return nil, nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Warn("Fetch failed", zap.String("url", pageURL), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("Fetch returned non-2xx status",
			zap.String("url", pageURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil, nil
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		logger.Warn("HTML parse failed", zap.String("url", pageURL), zap.Error(err))
		return nil, nil
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	if title == "" {
		if parsed, err := url.Parse(pageURL); err == nil {
			title = parsed.Path
		}
	}

	page.Find("script, style, nav, footer, header").Each(func(_ int, sel *goquery.Selection) {
		sel.Remove()
	})

	region := page.Find("main").First()
	if region.Length() == 0 {
		region = page.Find("article").First()
	}
	if region.Length() == 0 {
		region = page.Find("body").First()
	}

	cleanedText := flattenText(region)
	if len(cleanedText) < minPageLength {
		logger.Debug("Page below content floor, discarded",
			zap.String("url", pageURL),
			zap.Int("length", len(cleanedText)),
		)
		return nil, nil
	}

	doc := document.New(cleanedText, map[string]any{
		document.MetaSource:      pageURL,
		document.MetaTitle:       title,
		document.MetaContentType: "webpage",
	})

	return &doc, s.extractLinks(page, pageURL)
}

// flattenText walks the selection's nodes and emits one line per non-blank
// text node, the way the site's templates read as prose.
func flattenText(sel *goquery.Selection) string {
	var lines []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if line := strings.TrimSpace(n.Data); line != "" {
				lines = append(lines, line)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	for _, node := range sel.Nodes {
		walk(node)
	}

	return strings.Join(lines, "\n")
}

// extractLinks resolves every hyperlink against the page URL and keeps
// deduplicated same-domain page links.
func (s *Scraper) extractLinks(page *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	page.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(parsed)

		// Substring host match: loose on purpose so www. and other
		// subdomains of the configured domain stay in scope.
		if !strings.Contains(resolved.Host, s.baseDomain) {
			return
		}

		clean := fmt.Sprintf("%s://%s%s", resolved.Scheme, resolved.Host, resolved.Path)
		clean = strings.TrimRight(clean, "/")

		for _, ext := range skippedExtensions {
			if strings.HasSuffix(clean, ext) {
				return
			}
		}

		if !seen[clean] {
			seen[clean] = true
			links = append(links, clean)
		}
	})

	return links
}
