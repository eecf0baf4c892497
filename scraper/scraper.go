package scraper

import (
	"context"
	"fmt"

	"github.com/mariemby1/data-scraping/config"
	"github.com/mariemby1/data-scraping/models"
	"github.com/mariemby1/data-scraping/parser"
)

// Scraper reuses one session serially for discovery and every category.
type Scraper struct {
	cfg     *config.Config
	session Session
	Metrics *Metrics
}

// NewScraper wraps session with pacing and metrics configured from cfg.
func NewScraper(cfg *config.Config, session Session) *Scraper {
	metrics := NewMetrics()
	return &Scraper{
		cfg:     cfg,
		session: newPacedSession(session, cfg.PagesPerSecond, metrics),
		Metrics: metrics,
	}
}

// Discover returns the allow-listed categories of the catalog.
func (s *Scraper) Discover(ctx context.Context) ([]models.CategoryLink, error) {
	return Discover(ctx, s.session, s.cfg.BaseURL, s.cfg.Categories)
}

// ScrapeCategory collects up to cfg.MaxItems records from a category. Any
// error means the category must be skipped as a whole.
func (s *Scraper) ScrapeCategory(ctx context.Context, link models.CategoryLink) ([]models.Record, int, error) {
	entries, pages, err := Collect(ctx, s.session, link.URL, s.cfg.MaxItems)
	if err != nil {
		return nil, pages, err
	}

	records := make([]models.Record, 0, len(entries))
	for i := range entries {
		record, err := parser.Extract(&entries[i])
		if err != nil {
			return nil, pages, fmt.Errorf("extract entry %d: %w", i+1, err)
		}
		records = append(records, record)
	}
	s.Metrics.AddEntries(len(records))
	return records, pages, nil
}

// Close releases the underlying session.
func (s *Scraper) Close() error {
	return s.session.Close()
}
