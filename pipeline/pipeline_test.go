package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/mariemby1/data-scraping/config"
	"github.com/mariemby1/data-scraping/loader"
	"github.com/mariemby1/data-scraping/scraper"
	"github.com/mariemby1/data-scraping/store"
)

const baseURL = "http://example.test/"

type recordingLoader struct {
	mu     sync.Mutex
	tables *store.Tables
	err    error
}

func (rl *recordingLoader) Load(_ context.Context, tables *store.Tables) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tables = tables
	return rl.err
}

type closeTrackingSession struct {
	scraper.Session
	closed int
}

func (c *closeTrackingSession) Close() error {
	c.closed++
	return c.Session.Close()
}

func testConfig(categories ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Driver = config.DriverHTTP
	cfg.Categories = categories
	cfg.NavigationTimeout = time.Second
	cfg.SkipLoad = true
	return cfg
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

func homePage(names ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="nav nav-list"><li><a href="catalogue/category/books_1/index.html">Books</a><ul>`)
	for _, name := range names {
		fmt.Fprintf(&b, `<li><a href="catalogue/category/books/%s/index.html">%s</a></li>`, strings.ToLower(name), name)
	}
	b.WriteString(`</ul></li></ul></body></html>`)
	return b.String()
}

func listingPage(prefix string, n int, availability func(i int) string, next string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ol class="row">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<li><article class="product_pod"><h3><a href="#" title="%s %d">%s %d</a></h3>`, prefix, i, prefix, i)
		fmt.Fprintf(&b, `<p class="price_color">£%d.99</p><p class="star-rating Four"></p>`, i)
		fmt.Fprintf(&b, `<p class="instock availability">%s</p></article></li>`, availability(i))
	}
	b.WriteString(`</ol>`)
	if next != "" {
		fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href="%s">next</a></li></ul>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func inStock(int) string { return "In stock" }

func categoryURL(name string) string {
	return baseURL + "catalogue/category/books/" + strings.ToLower(name) + "/index.html"
}

func newRunnerFixture(t *testing.T, cfg *config.Config) (*httpmock.MockTransport, *closeTrackingSession, *scraper.Scraper) {
	t.Helper()
	session, err := scraper.NewHTTPSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	transport := httpmock.NewMockTransport()
	session.WithTransport(transport)
	tracked := &closeTrackingSession{Session: session}
	return transport, tracked, scraper.NewScraper(cfg, tracked)
}

func TestRunnerSkipsTimedOutCategory(t *testing.T) {
	cfg := testConfig("Travel", "Mystery")
	transport, session, s := newRunnerFixture(t, cfg)

	transport.RegisterResponder("GET", baseURL, htmlResponder(homePage("Travel", "Mystery")))
	// Travel never renders a listing marker.
	transport.RegisterResponder("GET", categoryURL("Travel"), htmlResponder("<html><body>loading</body></html>"))
	transport.RegisterResponder("GET", categoryURL("Mystery"), htmlResponder(listingPage("Mystery", 3, inStock, "")))

	rl := &recordingLoader{}
	result, tables, err := NewRunner(s, WithLoader(rl)).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(tables.Categories) != 1 || tables.Categories[0].Title != "Mystery" || tables.Categories[0].ID != 1 {
		t.Fatalf("categories = %+v, want only Mystery with id 1", tables.Categories)
	}
	if len(tables.Books) != 3 {
		t.Fatalf("books = %d, want 3", len(tables.Books))
	}
	for i, book := range tables.Books {
		if book.CategoryID != 1 {
			t.Fatalf("book %d category = %d, want 1", i, book.CategoryID)
		}
		if book.ID != i+1 {
			t.Fatalf("book %d id = %d, want %d", i, book.ID, i+1)
		}
	}

	if rl.tables != tables {
		t.Fatalf("loader did not receive the run's tables")
	}
	if !result.Loaded {
		t.Fatalf("result should be marked loaded")
	}
	if len(result.CategoriesSkipped) != 1 || result.CategoriesSkipped[0] != "Travel" {
		t.Fatalf("skipped = %v, want [Travel]", result.CategoriesSkipped)
	}
	if result.ErrorsByType["timeout"] != 1 {
		t.Fatalf("errors by type = %v, want one timeout", result.ErrorsByType)
	}
	if session.closed != 1 {
		t.Fatalf("session closed %d times, want 1", session.closed)
	}
}

func TestRunnerQuotaAndStatusIDs(t *testing.T) {
	cfg := testConfig("Travel", "Mystery")
	transport, _, s := newRunnerFixture(t, cfg)

	alternating := func(i int) string {
		if i%2 == 0 {
			return "Out of stock"
		}
		return "In stock"
	}
	transport.RegisterResponder("GET", baseURL, htmlResponder(homePage("Mystery", "Travel")))
	transport.RegisterResponder("GET", categoryURL("Mystery"), htmlResponder(listingPage("Mystery", 8, inStock, "page-2.html")))
	transport.RegisterResponder("GET", baseURL+"catalogue/category/books/mystery/page-2.html",
		htmlResponder(listingPage("Mystery two", 8, alternating, "page-3.html")))
	transport.RegisterResponder("GET", categoryURL("Travel"), htmlResponder(listingPage("Travel", 12, alternating, "")))

	result, tables, err := NewRunner(s).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(tables.Books) != 20 {
		t.Fatalf("books = %d, want 20 (10 per category)", len(tables.Books))
	}
	for i, book := range tables.Books {
		if book.ID != i+1 {
			t.Fatalf("book %d id = %d, want contiguous ids", i, book.ID)
		}
	}
	if tables.Categories[0].Title != "Mystery" || tables.Categories[1].Title != "Travel" {
		t.Fatalf("categories follow page order, got %+v", tables.Categories)
	}
	if len(tables.Statuses) != 2 || tables.Statuses[0].Status != "In stock" || tables.Statuses[1].Status != "Out of stock" {
		t.Fatalf("statuses = %+v, want first-seen order", tables.Statuses)
	}
	if result.Loaded {
		t.Fatalf("no loader configured, result must not be loaded")
	}
	if result.PageCount != 3 {
		t.Fatalf("pages = %d, want 3", result.PageCount)
	}
	if result.BookCount != 20 {
		t.Fatalf("book count = %d, want 20", result.BookCount)
	}
}

func TestRunnerSkipsCategoryWithMalformedPrice(t *testing.T) {
	cfg := testConfig("Travel", "Mystery")
	transport, _, s := newRunnerFixture(t, cfg)

	transport.RegisterResponder("GET", baseURL, htmlResponder(homePage("Travel", "Mystery")))
	broken := strings.Replace(listingPage("Travel", 2, inStock, ""), "£2.99", "£TBD", 1)
	transport.RegisterResponder("GET", categoryURL("Travel"), htmlResponder(broken))
	transport.RegisterResponder("GET", categoryURL("Mystery"), htmlResponder(listingPage("Mystery", 2, inStock, "")))

	result, tables, err := NewRunner(s).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(tables.Categories) != 1 || tables.Categories[0].Title != "Mystery" {
		t.Fatalf("categories = %+v, want only Mystery", tables.Categories)
	}
	if len(tables.Books) != 2 || tables.Books[0].ID != 1 {
		t.Fatalf("books = %+v, want 2 starting at id 1", tables.Books)
	}
	if result.ErrorsByType["malformed_price"] != 1 {
		t.Fatalf("errors by type = %v, want malformed_price", result.ErrorsByType)
	}
}

func TestRunnerDiscoveryFailure(t *testing.T) {
	cfg := testConfig("Travel")
	transport, session, s := newRunnerFixture(t, cfg)
	transport.RegisterResponder("GET", baseURL, httpmock.NewErrorResponder(context.DeadlineExceeded))

	rl := &recordingLoader{}
	_, _, err := NewRunner(s, WithLoader(rl)).Run(context.Background())
	var timeout scraper.ErrNavigationTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected wrapped ErrNavigationTimeout, got %v", err)
	}
	if rl.tables != nil {
		t.Fatalf("loader must not run after discovery failure")
	}
	if session.closed != 1 {
		t.Fatalf("session closed %d times, want 1", session.closed)
	}
}

func TestRunnerLoadFailure(t *testing.T) {
	cfg := testConfig("Mystery")
	transport, session, s := newRunnerFixture(t, cfg)
	transport.RegisterResponder("GET", baseURL, htmlResponder(homePage("Mystery")))
	transport.RegisterResponder("GET", categoryURL("Mystery"), htmlResponder(listingPage("Mystery", 1, inStock, "")))

	rl := &recordingLoader{err: loader.ErrLoadFailed{Table: loader.TableBooks, ID: 1, Err: errors.New("constraint")}}
	result, tables, err := NewRunner(s, WithLoader(rl)).Run(context.Background())

	var failed loader.ErrLoadFailed
	if !errors.As(err, &failed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if tables == nil || len(tables.Books) != 1 {
		t.Fatalf("tables should still be returned after a load failure")
	}
	if result.Loaded {
		t.Fatalf("result must not be marked loaded")
	}
	if result.ErrorsByType["load_failed"] != 1 {
		t.Fatalf("errors by type = %v, want load_failed", result.ErrorsByType)
	}
	if session.closed != 1 {
		t.Fatalf("session must be closed before loading")
	}
}

func TestRunnerDisplayAndExport(t *testing.T) {
	cfg := testConfig("Mystery")
	transport, _, s := newRunnerFixture(t, cfg)
	transport.RegisterResponder("GET", baseURL, htmlResponder(homePage("Mystery")))
	transport.RegisterResponder("GET", categoryURL("Mystery"), htmlResponder(listingPage("Mystery", 2, inStock, "")))

	writer, err := NewCSVWriter(t.TempDir())
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()

	var out bytes.Buffer
	if _, _, err := NewRunner(s, WithWriter(writer), WithDisplay(&out)).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	rendered := out.String()
	for _, want := range []string{"Categories", "Status", "Books", "Mystery 2", "2.99", "In stock"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered tables missing %q:\n%s", want, rendered)
		}
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	cfg := testConfig("Mystery")
	_, session, s := newRunnerFixture(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := NewRunner(s).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if session.closed != 1 {
		t.Fatalf("session closed %d times, want 1", session.closed)
	}
}

func TestRunnerAllCategoriesSkippedStillExportsAndLoads(t *testing.T) {
	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	for _, format := range []string{"json", "dual"} {
		t.Run(format, func(t *testing.T) {
			cfg := testConfig("Travel", "Mystery")
			transport, _, s := newRunnerFixture(t, cfg)

			transport.RegisterResponder("GET", baseURL, htmlResponder(homePage("Travel", "Mystery")))
			transport.RegisterResponder("GET", categoryURL("Travel"), htmlResponder("<html><body>loading</body></html>"))
			transport.RegisterResponder("GET", categoryURL("Mystery"), htmlResponder("<html><body>loading</body></html>"))

			writer, err := NewWriter(format, t.TempDir())
			if err != nil {
				t.Fatalf("create writer: %v", err)
			}
			defer writer.Close()

			rl := &recordingLoader{}
			result, tables, err := NewRunner(s, WithWriter(writer), WithLoader(rl)).Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !tables.Empty() {
				t.Fatalf("tables should be empty, got %d books", len(tables.Books))
			}
			if len(result.CategoriesSkipped) != 2 {
				t.Fatalf("skipped = %v, want Travel and Mystery", result.CategoriesSkipped)
			}
			if rl.tables != tables || !result.Loaded {
				t.Fatalf("loader should still run on empty tables")
			}
		})
	}

	if !strings.Contains(logs.String(), "nothing scraped") {
		t.Fatalf("expected a nothing scraped warning, got:\n%s", logs.String())
	}
}
