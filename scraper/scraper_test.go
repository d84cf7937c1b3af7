package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/bookworm-labs/catalog/config"
	"github.com/bookworm-labs/catalog/models"
	"github.com/bookworm-labs/catalog/pipeline"
)

type collectingWriter struct {
	mu    sync.Mutex
	books []models.Book
}

func (cw *collectingWriter) WriteAll(books []models.Book) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.books = append([]models.Book(nil), books...)
	return nil
}

func (cw *collectingWriter) Close() error    { return nil }
func (cw *collectingWriter) Validate() error { return nil }

func (cw *collectingWriter) All() []models.Book {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	out := make([]models.Book, len(cw.books))
	copy(out, cw.books)
	return out
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	cfg.MaxRetries = 0
	return cfg
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

type pageSpec struct {
	items      int
	firstItem  int
	breadcrumb []string
	title      string
}

func buildListingPage(spec pageSpec) string {
	var builder strings.Builder
	builder.WriteString("<html><head>")
	if spec.title != "" {
		fmt.Fprintf(&builder, "<title>%s</title>", spec.title)
	}
	builder.WriteString("</head><body>")

	if len(spec.breadcrumb) > 0 {
		builder.WriteString("<ul class=\"breadcrumb\">")
		for _, segment := range spec.breadcrumb {
			fmt.Fprintf(&builder, "<li><a href=\"#\">%s</a></li>", segment)
		}
		builder.WriteString("</ul>")
	}

	builder.WriteString("<section class=\"products\">")
	for i := 0; i < spec.items; i++ {
		id := spec.firstItem + i
		builder.WriteString("<article class=\"product_pod\">")
		fmt.Fprintf(&builder, "<h3><a href=\"catalogue/book-%d/index.html\" title=\"Book %d\">Book %d...</a></h3>", id, id, id)
		fmt.Fprintf(&builder, "<p class=\"star-rating Two\"></p>")
		fmt.Fprintf(&builder, "<p class=\"price_color\">&pound;%d.50</p>", id)
		builder.WriteString("<p class=\"instock availability\">In stock (3 available)</p>")
		fmt.Fprintf(&builder, "<img src=\"media/cache/book-%d.jpg\" />", id)
		builder.WriteString("</article>")
	}
	builder.WriteString("</section></body></html>")
	return builder.String()
}

func runScraper(t *testing.T, cfg *config.Config, register func(*httpmock.MockTransport)) (*models.CrawlResult, []models.Book) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	register(transport)

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.collector.WithTransport(transport)

	writer := &collectingWriter{}
	p, err := pipeline.NewPipeline(writer, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	p.Start()

	result, err := s.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}
	return result, writer.All()
}

func TestScraperWalksUntilEmptyPage(t *testing.T) {
	cfg := testConfig()

	page1 := buildListingPage(pageSpec{items: 20, firstItem: 1, breadcrumb: []string{"Home", "Books", "Travel"}})
	page2 := buildListingPage(pageSpec{items: 20, firstItem: 21, breadcrumb: []string{"Home", "Books", "Travel"}})
	empty := buildListingPage(pageSpec{items: 0})

	result, books := runScraper(t, cfg, func(transport *httpmock.MockTransport) {
		responder := htmlResponder(page1)
		transport.RegisterResponder("GET", cfg.BaseURL, responder)
		transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), responder)
		transport.RegisterResponder("GET", cfg.BaseURL+"catalogue/page-2.html", htmlResponder(page2))
		transport.RegisterResponder("GET", cfg.BaseURL+"catalogue/page-3.html", htmlResponder(empty))
	})

	if result.PageCount != 2 {
		t.Fatalf("pages=%d, want 2", result.PageCount)
	}
	if len(books) != 40 {
		t.Fatalf("books=%d, want 40", len(books))
	}
	for i, book := range books {
		if book.ID != i+1 {
			t.Fatalf("book %d has id %d, want crawl-order sequence", i, book.ID)
		}
		if book.Category != "Travel" {
			t.Fatalf("category=%q, want breadcrumb category Travel", book.Category)
		}
	}

	sample := books[0]
	if sample.Title != "Book 1" {
		t.Fatalf("title=%q, want title attribute preferred over link text", sample.Title)
	}
	if sample.Price != 1.50 {
		t.Fatalf("price=%v, want 1.50", sample.Price)
	}
	if sample.Rating != 2 {
		t.Fatalf("rating=%d, want 2", sample.Rating)
	}
	if sample.Availability != "In stock (3 available)" {
		t.Fatalf("availability=%q", sample.Availability)
	}
	if sample.BookURL != "http://example.test/catalogue/book-1/index.html" {
		t.Fatalf("book url not absolute: %q", sample.BookURL)
	}
	if sample.ImageURL != "http://example.test/media/cache/book-1.jpg" {
		t.Fatalf("image url not absolute: %q", sample.ImageURL)
	}
}

func TestScraperKeepsPartialResultsOnFetchFailure(t *testing.T) {
	cfg := testConfig()

	page1 := buildListingPage(pageSpec{items: 5, firstItem: 1, breadcrumb: []string{"Home", "Poetry"}})

	result, books := runScraper(t, cfg, func(transport *httpmock.MockTransport) {
		responder := htmlResponder(page1)
		transport.RegisterResponder("GET", cfg.BaseURL, responder)
		transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), responder)
		// page-2 has no responder: the fetch fails and the crawl ends.
	})

	if len(books) != 5 {
		t.Fatalf("books=%d, want the 5 records accumulated before the failure", len(books))
	}
	if result.ErrorCount == 0 {
		t.Fatalf("expected the terminal fetch failure to be counted")
	}
}

func TestScraperRetriesBeforeGivingUp(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoff = 1
	cfg.RetryBackoffMax = 1

	result, books := runScraper(t, cfg, func(transport *httpmock.MockTransport) {
		responder := httpmock.NewStringResponder(500, "boom")
		transport.RegisterResponder("GET", cfg.BaseURL, responder)
		transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), responder)
	})

	if len(books) != 0 {
		t.Fatalf("books=%d, want 0", len(books))
	}
	if result.RetryCount != 2 {
		t.Fatalf("retries=%d, want 2", result.RetryCount)
	}
	if result.ErrorCount != 3 {
		t.Fatalf("errors=%d, want 3 (initial attempt plus two retries)", result.ErrorCount)
	}
}

func TestScraperRespectsMaxPagesCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 1

	page := buildListingPage(pageSpec{items: 3, firstItem: 1, breadcrumb: []string{"Home", "Fiction"}})

	result, books := runScraper(t, cfg, func(transport *httpmock.MockTransport) {
		responder := htmlResponder(page)
		transport.RegisterResponder("GET", cfg.BaseURL, responder)
		transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), responder)
	})

	if result.PageCount != 1 {
		t.Fatalf("pages=%d, want cap of 1", result.PageCount)
	}
	if len(books) != 3 {
		t.Fatalf("books=%d, want 3", len(books))
	}
}

func TestScraperCategoryFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		spec     pageSpec
		expected string
	}{
		{
			name:     "breadcrumb last segment",
			spec:     pageSpec{items: 1, firstItem: 1, breadcrumb: []string{"Home", "Books", "Mystery"}, title: "Mystery | Books to Scrape - Sandbox"},
			expected: "Mystery",
		},
		{
			name:     "single breadcrumb falls through to title",
			spec:     pageSpec{items: 1, firstItem: 1, breadcrumb: []string{"Home"}, title: "Travel | Books to Scrape - Sandbox"},
			expected: "Travel",
		},
		{
			name:     "title without site marker yields sentinel",
			spec:     pageSpec{items: 1, firstItem: 1, title: "Something Else | Elsewhere"},
			expected: SentinelCategory,
		},
		{
			name:     "no signals yields sentinel",
			spec:     pageSpec{items: 1, firstItem: 1},
			expected: SentinelCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxPages = 1
			_, books := runScraper(t, cfg, func(transport *httpmock.MockTransport) {
				responder := htmlResponder(buildListingPage(tt.spec))
				transport.RegisterResponder("GET", cfg.BaseURL, responder)
				transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), responder)
			})

			if len(books) != 1 {
				t.Fatalf("books=%d, want 1", len(books))
			}
			if books[0].Category != tt.expected {
				t.Fatalf("category=%q, want %q", books[0].Category, tt.expected)
			}
		})
	}
}

func TestExtractBookFieldDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 1

	// One intact item, one stripped to the bare link, one marked out of
	// stock. Sibling extraction must survive the degraded items.
	body := `<html><body>
<article class="product_pod">
  <h3><a href="catalogue/full/index.html" title="Full Item">Full It...</a></h3>
  <p class="star-rating Four"></p>
  <p class="price_color">£12.34</p>
  <p class="instock availability">In stock</p>
  <img src="media/full.jpg" />
</article>
<article class="product_pod">
  <h3><a href="catalogue/bare/index.html">Bare Item</a></h3>
</article>
<article class="product_pod">
  <h3><a href="catalogue/gone/index.html" title="Gone Item">Gone It...</a></h3>
  <p class="outofstock availability">unavailable</p>
</article>
</body></html>`

	_, books := runScraper(t, cfg, func(transport *httpmock.MockTransport) {
		responder := htmlResponder(body)
		transport.RegisterResponder("GET", cfg.BaseURL, responder)
		transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), responder)
	})

	if len(books) != 3 {
		t.Fatalf("books=%d, want 3", len(books))
	}

	full := books[0]
	if full.Title != "Full Item" || full.Price != 12.34 || full.Rating != 4 {
		t.Fatalf("intact item mangled: %+v", full)
	}

	bare := books[1]
	if bare.Title != "Bare Item" {
		t.Fatalf("title=%q, want link text fallback", bare.Title)
	}
	if bare.Price != 0 {
		t.Fatalf("price=%v, want default 0", bare.Price)
	}
	if bare.Rating != 0 {
		t.Fatalf("rating=%d, want default 0", bare.Rating)
	}
	if bare.ImageURL != "" {
		t.Fatalf("image=%q, want empty default", bare.ImageURL)
	}
	if bare.Availability != "In stock" {
		t.Fatalf("availability=%q, want the documented In stock default", bare.Availability)
	}

	gone := books[2]
	if gone.Availability != "Out of stock" {
		t.Fatalf("availability=%q, want Out of stock from the marker", gone.Availability)
	}
}

func TestResolveCategory(t *testing.T) {
	tests := []struct {
		name     string
		page     pageState
		expected string
	}{
		{name: "breadcrumb wins", page: pageState{breadcrumb: "Travel", pageTitle: "Poetry | Books to Scrape"}, expected: "Travel"},
		{name: "title fallback", page: pageState{pageTitle: "Poetry | Books to Scrape - Sandbox"}, expected: "Poetry"},
		{name: "title without separator", page: pageState{pageTitle: "Books to Scrape"}, expected: SentinelCategory},
		{name: "empty state", page: pageState{}, expected: SentinelCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveCategory(&tt.page); got != tt.expected {
				t.Fatalf("resolveCategory = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "forbidden", err: fmt.Errorf("forbidden"), statusCode: 403, expected: "forbidden"},
		{name: "not found", err: fmt.Errorf("not found"), statusCode: 404, expected: "not_found"},
		{name: "rate limited", err: fmt.Errorf("too many requests"), statusCode: 429, expected: "rate_limited"},
		{name: "other", err: fmt.Errorf("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fetchErrorKind(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestPageURL(t *testing.T) {
	cfg := testConfig()
	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}

	if got := s.pageURL(1); got != cfg.BaseURL {
		t.Fatalf("page 1 = %q, want base URL", got)
	}
	if got := s.pageURL(7); got != "http://example.test/catalogue/page-7.html" {
		t.Fatalf("page 7 = %q", got)
	}
}
