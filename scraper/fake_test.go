package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mariemby1/data-scraping/parser"
)

// fakeSession serves canned HTML per URL and records navigation order.
type fakeSession struct {
	pages   map[string]string
	errs    map[string]error
	visited []string
	closed  bool
	// lenient skips the marker check so marker-only edge cases can be served.
	lenient bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages: make(map[string]string),
		errs:  make(map[string]error),
	}
}

func (f *fakeSession) Navigate(_ context.Context, rawURL, marker string) (*Page, error) {
	f.visited = append(f.visited, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	html, ok := f.pages[rawURL]
	if !ok {
		return nil, ErrNavigation{URL: rawURL, Err: fmt.Errorf("not found")}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	if !f.lenient && !parser.HasMarker(doc, marker) {
		return nil, ErrNavigationTimeout{URL: rawURL, Marker: marker, Err: errMarkerMissing}
	}
	u, _ := url.Parse(rawURL)
	return &Page{URL: u, Doc: doc}, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type entryFixture struct {
	title        string
	price        string
	rating       string
	availability string
}

func listingPage(entries []entryFixture, next string) string {
	var b strings.Builder
	b.WriteString("<html><body><section><ol class=\"row\">")
	for _, e := range entries {
		b.WriteString("<li><article class=\"product_pod\">")
		fmt.Fprintf(&b, "<h3><a href=\"#\" title=\"%s\">%s</a></h3>", e.title, e.title)
		fmt.Fprintf(&b, "<p class=\"price_color\">%s</p>", e.price)
		fmt.Fprintf(&b, "<p class=\"star-rating %s\"></p>", e.rating)
		fmt.Fprintf(&b, "<p class=\"instock availability\">%s</p>", e.availability)
		b.WriteString("</article></li>")
	}
	b.WriteString("</ol>")
	if next != "" {
		fmt.Fprintf(&b, "<ul class=\"pager\"><li class=\"next\"><a href=\"%s\">next</a></li></ul>", next)
	}
	b.WriteString("</section></body></html>")
	return b.String()
}

func numberedEntries(prefix string, n int) []entryFixture {
	entries := make([]entryFixture, n)
	for i := range entries {
		entries[i] = entryFixture{
			title:        fmt.Sprintf("%s %d", prefix, i+1),
			price:        fmt.Sprintf("£%d.50", i+1),
			rating:       "Two",
			availability: "In stock",
		}
	}
	return entries
}

func homePage(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul class=\"nav nav-list\"><li><a href=\"catalogue/category/books_1/index.html\">Books</a><ul>")
	for i, name := range names {
		slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		fmt.Fprintf(&b, "<li><a href=\"catalogue/category/books/%s_%d/index.html\">\n  %s\n</a></li>", slug, i+2, name)
	}
	b.WriteString("</ul></li></ul></body></html>")
	return b.String()
}
