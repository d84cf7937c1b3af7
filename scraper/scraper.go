// Package scraper walks the catalog's listing pages and recovers structured
// book records from their markup.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"

	"github.com/bookworm-labs/catalog/config"
	"github.com/bookworm-labs/catalog/models"
	"github.com/bookworm-labs/catalog/parser"
	"github.com/bookworm-labs/catalog/pipeline"
)

// SentinelCategory is used when neither page-level category signal resolves.
const SentinelCategory = "General"

const siteTitleMarker = "Books to Scrape"

// Scraper drives a sequential walk over the catalog's listing pages. The
// walk is deliberately synchronous: record ids are crawl-order sequence
// numbers, so pages must be consumed in order.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	Metrics   *Metrics

	mu           sync.Mutex
	page         pageState
	requestCount int
	errorCount   int
	retryCount   int
	errorsByType map[string]int

	handlersOnce sync.Once
}

// pageState accumulates what the collector handlers see during one Visit.
type pageState struct {
	items      []*models.Book
	breadcrumb string
	pageTitle  string
	statusCode int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	return s, nil
}

// Run walks listing pages starting at the site root until an empty page or a
// fetch failure ends the catalog, streaming extracted records through p in
// crawl order. Partial results are kept on failure.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.configureHandlers()

	result := &models.CrawlResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}

	for page := 1; s.cfg.MaxPages == 0 || page <= s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			slog.Info("crawl cancelled", slog.String("run_id", result.RunID), slog.Int("page", page))
			break
		}

		pageURL := s.pageURL(page)
		items, category, err := s.visitPage(ctx, pageURL)
		if err != nil {
			// Transient failures are terminal for the walk, not for the
			// run: everything accumulated so far is still written.
			slog.Warn("page fetch failed, ending crawl",
				slog.String("run_id", result.RunID),
				slog.Int("page", page),
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			break
		}
		if len(items) == 0 {
			slog.Info("empty page, catalog complete",
				slog.String("run_id", result.RunID),
				slog.Int("pages", page-1),
			)
			break
		}

		for _, book := range items {
			book.Category = category
			if err := p.Process(book); err != nil {
				return nil, fmt.Errorf("pipeline process page %d: %w", page, err)
			}
		}
		result.PageCount++
		s.Metrics.IncPages()

		slog.Debug("page extracted",
			slog.Int("page", page),
			slog.Int("items", len(items)),
			slog.String("category", category),
		)
	}

	result.EndTime = time.Now()

	s.mu.Lock()
	result.RequestCount = s.requestCount
	result.ErrorCount = s.errorCount
	result.RetryCount = s.retryCount
	result.ErrorsByType = make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		result.ErrorsByType[k] = v
	}
	s.mu.Unlock()

	return result, nil
}

// pageURL derives the listing URL for a 1-based page number. Page 1 is the
// site root; later pages follow the site's pagination path convention.
func (s *Scraper) pageURL(page int) string {
	if page == 1 {
		return s.cfg.BaseURL
	}
	base := strings.TrimSuffix(s.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/catalogue/page-%d.html", base, page)
}

// visitPage fetches one listing page with bounded retries, returning the
// extracted candidate records and the resolved page category.
func (s *Scraper) visitPage(ctx context.Context, pageURL string) ([]*models.Book, string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(s.backoff(attempt)):
			}
			s.mu.Lock()
			s.retryCount++
			s.mu.Unlock()
			s.Metrics.IncRetries()
		}

		items, category, err := s.fetch(pageURL)
		if err == nil {
			return items, category, nil
		}
		lastErr = err

		kind := fetchErrorKind(err)
		s.mu.Lock()
		s.errorCount++
		s.errorsByType[kind]++
		s.mu.Unlock()
		s.Metrics.IncError(kind)

		slog.Error("request error",
			slog.String("url", pageURL),
			slog.String("category", kind),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}
	return nil, "", lastErr
}

// fetch performs one synchronous Visit and snapshots the per-page state the
// handlers filled in.
func (s *Scraper) fetch(pageURL string) ([]*models.Book, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.page = pageState{}
	s.requestCount++
	s.Metrics.IncRequest()

	start := time.Now()
	err := s.collector.Visit(pageURL)
	s.Metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return nil, "", classifyError(err, s.page.statusCode)
	}

	return s.page.items, resolveCategory(&s.page), nil
}

func (s *Scraper) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max := s.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnResponse(func(r *colly.Response) {
			s.page.statusCode = r.StatusCode
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			if r != nil {
				s.page.statusCode = r.StatusCode
			}
		})

		s.collector.OnHTML("title", func(e *colly.HTMLElement) {
			s.page.pageTitle = strings.TrimSpace(e.Text)
		})

		s.collector.OnHTML("ul.breadcrumb", func(e *colly.HTMLElement) {
			s.page.breadcrumb = lastBreadcrumbSegment(e.DOM)
		})

		s.collector.OnHTML("article.product_pod", func(e *colly.HTMLElement) {
			book := extractBook(e)
			if book == nil {
				return
			}
			s.page.items = append(s.page.items, book)
			s.Metrics.IncItems()
		})
	})
}

// lastBreadcrumbSegment returns the trimmed text of the final breadcrumb
// segment, or "" when the trail has one segment or fewer.
func lastBreadcrumbSegment(sel *goquery.Selection) string {
	segments := sel.Find("li")
	if segments.Length() <= 1 {
		return ""
	}
	return strings.TrimSpace(segments.Last().Text())
}

// resolveCategory infers the page's category label: breadcrumb first, then
// the page title's leading segment, then the sentinel. It never fails.
func resolveCategory(page *pageState) string {
	if page.breadcrumb != "" {
		return page.breadcrumb
	}
	if strings.Contains(page.pageTitle, siteTitleMarker) {
		if before, _, found := strings.Cut(page.pageTitle, "|"); found {
			if category := strings.TrimSpace(before); category != "" {
				return category
			}
		}
	}
	return SentinelCategory
}

// extractBook recovers one candidate record from an item block. Every field
// is individually defensive: a missing sub-element degrades that field to its
// default instead of dropping the item. The category and id are assigned by
// the caller and the pipeline respectively.
func extractBook(e *colly.HTMLElement) *models.Book {
	title := strings.TrimSpace(e.ChildAttr("h3 a", "title"))
	if title == "" {
		title = strings.TrimSpace(e.ChildText("h3 a"))
	}

	bookURL := ""
	if href := e.ChildAttr("h3 a", "href"); href != "" {
		bookURL = e.Request.AbsoluteURL(href)
	}

	imageURL := ""
	if src := e.ChildAttr("img", "src"); src != "" {
		imageURL = e.Request.AbsoluteURL(src)
	}

	// No marker at all defaults to "In stock". Weak: it manufactures a
	// positive claim from absence of evidence, but it matches the source
	// site's markup in practice.
	availability := parser.NormalizeAvailability(e.ChildText("p.instock"))
	if availability == "" {
		if e.DOM.Find("p.outofstock").Length() > 0 {
			availability = "Out of stock"
		} else {
			availability = "In stock"
		}
	}

	return &models.Book{
		Title:        title,
		Price:        parser.ParsePrice(e.ChildText("p.price_color")),
		Rating:       parser.RatingFromClass(e.ChildAttr("p.star-rating", "class")),
		Availability: availability,
		ImageURL:     imageURL,
		BookURL:      bookURL,
	}
}
