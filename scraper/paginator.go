package scraper

import (
	"context"
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mariemby1/data-scraping/models"
	"github.com/mariemby1/data-scraping/parser"
)

// visitedCacheSize bounds the set of listing URLs remembered per category.
const visitedCacheSize = 256

// ErrPaginatorDone is returned by Advance once the sequence is exhausted.
var ErrPaginatorDone = errors.New("paginator: done")

// Paginator walks the listing pages of one category through its "next"
// links. It stops when the item quota is reached, when a page has no next
// link, or when a page yields no entries. It holds no state beyond the
// current walk and cannot be resumed.
type Paginator struct {
	session   Session
	next      string
	quota     int
	collected int
	pages     int
	done      bool
	visited   *lru.Cache[string, struct{}]
}

// NewPaginator prepares a walk starting at startURL.
func NewPaginator(session Session, startURL string, quota int) *Paginator {
	visited, _ := lru.New[string, struct{}](visitedCacheSize)
	return &Paginator{
		session: session,
		next:    startURL,
		quota:   quota,
		visited: visited,
		done:    quota <= 0 || startURL == "",
	}
}

// HasNext reports whether another page can be read.
func (p *Paginator) HasNext() bool {
	return !p.done && p.next != "" && p.collected < p.quota
}

// Advance loads the next page and returns its entries, truncated to the
// remaining quota.
func (p *Paginator) Advance(ctx context.Context) ([]models.RawEntry, error) {
	if !p.HasNext() {
		return nil, ErrPaginatorDone
	}

	target := p.next
	p.next = ""
	p.visited.Add(target, struct{}{})

	page, err := p.session.Navigate(ctx, target, parser.ListingMarker)
	if err != nil {
		p.done = true
		return nil, err
	}
	p.pages++

	entries := parser.ParseEntries(page.Doc)
	if len(entries) == 0 {
		p.done = true
		return nil, nil
	}
	if remaining := p.quota - p.collected; len(entries) > remaining {
		entries = entries[:remaining]
	}
	p.collected += len(entries)

	if p.collected < p.quota {
		if next, ok := parser.NextLink(page.Doc, page.URL); ok && !p.visited.Contains(next) {
			p.next = next
		}
	}
	if p.next == "" {
		p.done = true
	}
	return entries, nil
}

// Pages returns the number of pages loaded so far.
func (p *Paginator) Pages() int {
	return p.pages
}

// Collect drains a paginator. A failure on the first page is returned; a
// failure on a later page ends the walk with the entries read so far.
func Collect(ctx context.Context, session Session, startURL string, maxItems int) ([]models.RawEntry, int, error) {
	p := NewPaginator(session, startURL, maxItems)

	var entries []models.RawEntry
	for p.HasNext() {
		batch, err := p.Advance(ctx)
		if err != nil {
			if p.Pages() == 0 || ctx.Err() != nil {
				return nil, p.Pages(), err
			}
			slog.Warn("pagination stopped early",
				slog.String("url", startURL),
				slog.Int("collected", len(entries)),
				slog.Any("error", err),
			)
			break
		}
		entries = append(entries, batch...)
	}
	return entries, p.Pages(), nil
}
