package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mariemby1/data-scraping/config"
	"golang.org/x/time/rate"
)

// Page is a loaded document together with its final URL.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// Session is a browser-like handle that loads one page at a time. Navigate
// blocks until marker is present in the document or the configured wait
// elapses, in which case it returns ErrNavigationTimeout.
type Session interface {
	Navigate(ctx context.Context, rawURL, marker string) (*Page, error)
	Close() error
}

// OpenSession starts the session selected by cfg.Driver.
func OpenSession(ctx context.Context, cfg *config.Config) (Session, error) {
	switch cfg.Driver {
	case config.DriverChrome:
		return NewChromeSession(ctx, cfg)
	case config.DriverHTTP:
		return NewHTTPSession(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

func newPage(location, html string) (*Page, error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	doc.Url = parsed
	return &Page{URL: parsed, Doc: doc}, nil
}

// pacedSession applies the navigation rate limit and records metrics around
// an underlying session.
type pacedSession struct {
	Session
	limiter *rate.Limiter
	metrics *Metrics
}

func newPacedSession(session Session, pagesPerSecond float64, metrics *Metrics) *pacedSession {
	var limiter *rate.Limiter
	if pagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(pagesPerSecond), 1)
	}
	return &pacedSession{Session: session, limiter: limiter, metrics: metrics}
}

func (p *pacedSession) Navigate(ctx context.Context, rawURL, marker string) (*Page, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	start := time.Now()
	page, err := p.Session.Navigate(ctx, rawURL, marker)
	p.metrics.ObserveNavigation(time.Since(start))
	if err != nil {
		p.metrics.IncNavigation(ErrorTypeLabel(err))
		return nil, err
	}
	p.metrics.IncNavigation("ok")
	return page, nil
}
