package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/mariemby1/data-scraping/config"
	"github.com/mariemby1/data-scraping/parser"
)

// HTTPSession loads pages with plain GET requests. It suits catalogs that
// render server side and does not execute scripts, so a missing marker is
// reported the same way a browser wait would report it.
type HTTPSession struct {
	collector *colly.Collector
	transport http.RoundTripper
	last      *colly.Response
}

// NewHTTPSession builds a synchronous collector configured from cfg.
func NewHTTPSession(cfg *config.Config) (*HTTPSession, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.NavigationTimeout)
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.NavigationTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	collector.WithTransport(transport)

	s := &HTTPSession{collector: collector, transport: transport}
	collector.OnResponse(func(r *colly.Response) {
		s.last = r
	})
	return s, nil
}

// WithTransport replaces the HTTP transport, e.g. with a mock in tests.
func (s *HTTPSession) WithTransport(transport http.RoundTripper) {
	s.transport = transport
	s.collector.WithTransport(transport)
}

// Navigate fetches rawURL and checks that marker is present.
func (s *HTTPSession) Navigate(ctx context.Context, rawURL, marker string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.last = nil
	if err := s.collector.Visit(rawURL); err != nil {
		return nil, classifyNavigation(rawURL, marker, err)
	}
	if s.last == nil {
		return nil, ErrNavigation{URL: rawURL, Err: fmt.Errorf("no response")}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(s.last.Body))
	if err != nil {
		return nil, ErrNavigation{URL: rawURL, Err: fmt.Errorf("parse html: %w", err)}
	}
	if !parser.HasMarker(doc, marker) {
		return nil, ErrNavigationTimeout{URL: rawURL, Marker: marker, Err: errMarkerMissing}
	}

	pageURL := s.last.Request.URL
	doc.Url = pageURL
	return &Page{URL: pageURL, Doc: doc}, nil
}

// Close releases the transport's idle connections.
func (s *HTTPSession) Close() error {
	if closer, ok := s.transport.(interface{ CloseIdleConnections() }); ok {
		closer.CloseIdleConnections()
	}
	return nil
}
