package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/primesandzooms/chatbot-backend/internal/document"
	"github.com/primesandzooms/chatbot-backend/pkg/config"
)

const pagePadding = "Primes and Zooms keeps a deep bench of rental glass, bodies, tripods, gimbals, and lighting for photographers across Pune. Daily and weekly rates are listed on every product page."

type crawlSite struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []string
}

func newCrawlSite(t *testing.T, pages map[string]string) *crawlSite {
	t.Helper()

	site := &crawlSite{}
	site.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		site.mu.Lock()
		site.requests = append(site.requests, r.URL.Path)
		site.mu.Unlock()

		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(site.server.Close)

	return site
}

func (s *crawlSite) requestedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *crawlSite) scraper() *Scraper {
	return NewScraper(config.CrawlerConfig{
		BaseDomain:      "127.0.0.1",
		UserAgent:       "test-crawler",
		FetchTimeoutSec: 5,
	})
}

func page(title, body string) string {
	return fmt.Sprintf("<html><head><title>%s</title></head><body><main>%s</main></body></html>", title, body)
}

func TestScrape_SinglePage(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/": page("Home", "<p>"+pagePadding+"</p>"),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, site.server.URL, docs[0].Source())
	assert.Equal(t, "Home", docs[0].Title())
	assert.Equal(t, "webpage", docs[0].Metadata[document.MetaContentType])
	assert.Contains(t, docs[0].Content, "rental glass")
}

func TestScrape_FollowsLinksOnce(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/": page("Home", fmt.Sprintf(
			`<p>%s</p><a href="/gear">Gear</a><a href="/gear/">Gear again</a><a href="/about">About</a>`,
			pagePadding)),
		"/gear":  page("Gear", `<p>`+pagePadding+`</p><a href="/">Back home</a>`),
		"/about": page("About", "<p>"+pagePadding+"</p>"),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// "/gear" and "/gear/" normalize to the same URL and must be fetched once.
	count := 0
	for _, path := range site.requestedPaths() {
		if path == "/gear" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestScrape_DepthBound(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/":     page("Home", `<p>`+pagePadding+`</p><a href="/gear">Gear</a>`),
		"/gear": page("Gear", `<p>`+pagePadding+`</p><a href="/deep">Deep</a>`),
		"/deep": page("Deep", "<p>"+pagePadding+"</p>"),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.NotContains(t, site.requestedPaths(), "/deep")

	docs, err = site.scraper().Scrape(context.Background(), []string{site.server.URL}, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestScrape_ShortPageDropped(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/":     page("Home", `<p>`+pagePadding+`</p><a href="/stub">Stub</a>`),
		// Under the content floor. Its link must not be followed either.
		"/stub": page("Stub", `<p>Moved.</p><a href="/hidden">Hidden</a>`),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, site.requestedPaths(), "/stub")
	assert.NotContains(t, site.requestedPaths(), "/hidden")
}

func TestScrape_SkipsAssetsAndExternalLinks(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/": page("Home", fmt.Sprintf(
			`<p>%s</p>
			<a href="/catalog.pdf">Catalog</a>
			<a href="/hero.jpg">Hero</a>
			<a href="/theme.css">Theme</a>
			<a href="http://elsewhere.example/partners">Partners</a>
			<a href="/gear#pricing">Pricing</a>`,
			pagePadding)),
		"/gear": page("Gear", "<p>"+pagePadding+"</p>"),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	paths := site.requestedPaths()
	assert.NotContains(t, paths, "/catalog.pdf")
	assert.NotContains(t, paths, "/hero.jpg")
	assert.NotContains(t, paths, "/theme.css")
	assert.Contains(t, paths, "/gear")
}

func TestScrape_FetchFailureContinues(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/": page("Home", fmt.Sprintf(
			`<p>%s</p><a href="/missing">Missing</a><a href="/gear">Gear</a>`,
			pagePadding)),
		"/gear": page("Gear", "<p>"+pagePadding+"</p>"),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Contains(t, site.requestedPaths(), "/missing")
}

func TestScrape_StripsBoilerplateElements(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/": fmt.Sprintf(
			`<html><head><title>Home</title></head><body>
			<nav>Site navigation menu</nav>
			<main><p>%s</p></main>
			<footer>Copyright footer text</footer>
			<script>var tracking = true;</script>
			</body></html>`,
			pagePadding),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.NotContains(t, docs[0].Content, "navigation menu")
	assert.NotContains(t, docs[0].Content, "Copyright footer")
	assert.NotContains(t, docs[0].Content, "tracking")
}

func TestScrape_TitleFallsBackToPath(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/gear/tripods": "<html><body><main><p>" + pagePadding + "</p></main></body></html>",
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL + "/gear/tripods"}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "/gear/tripods", docs[0].Title())
}

func TestFlattenText_JoinsTextNodesWithNewlines(t *testing.T) {
	site := newCrawlSite(t, map[string]string{
		"/": page("Home", fmt.Sprintf("<h1>Rental Gear</h1><p>%s</p>", pagePadding)),
	})

	docs, err := site.scraper().Scrape(context.Background(), []string{site.server.URL}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.True(t, strings.HasPrefix(docs[0].Content, "Rental Gear\n"))
}
