package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mariemby1/data-scraping/loader"
	"github.com/mariemby1/data-scraping/models"
	"github.com/mariemby1/data-scraping/scraper"
	"github.com/mariemby1/data-scraping/store"
)

// OutputWriter defines the interface for table export.
type OutputWriter interface {
	Write(tables *store.Tables) error
	Close() error
	Validate() error
}

// Loader persists the accumulated tables.
type Loader interface {
	Load(ctx context.Context, tables *store.Tables) error
}

// Runner drives one run: discover categories, scrape each in turn, release
// the browser, then export and load the tables.
type Runner struct {
	scraper *scraper.Scraper
	loader  Loader
	writer  OutputWriter
	display io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLoader persists the tables at the end of the run.
func WithLoader(l Loader) Option {
	return func(r *Runner) { r.loader = l }
}

// WithWriter exports the tables before loading.
func WithWriter(w OutputWriter) Option {
	return func(r *Runner) { r.writer = w }
}

// WithDisplay renders the tables to w before loading.
func WithDisplay(w io.Writer) Option {
	return func(r *Runner) { r.display = w }
}

// NewRunner builds a runner around s. The runner owns the scraper's session
// and closes it once scraping ends.
func NewRunner(s *scraper.Scraper, opts ...Option) *Runner {
	r := &Runner{scraper: s}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the whole run. Category failures are logged and skipped; a
// discovery or load failure ends the run with an error. The returned tables
// are non-nil whenever scraping took place.
func (r *Runner) Run(ctx context.Context) (*models.RunResult, *store.Tables, error) {
	result := &models.RunResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	tables := store.New()

	sessionOpen := true
	closeSession := func() {
		if !sessionOpen {
			return
		}
		sessionOpen = false
		if err := r.scraper.Close(); err != nil {
			slog.Error("close session", slog.Any("error", err))
		}
	}
	defer closeSession()

	links, err := r.scraper.Discover(ctx)
	if err != nil {
		r.recordError(result, err)
		result.EndTime = time.Now()
		return result, nil, fmt.Errorf("discover categories: %w", err)
	}
	slog.Info("categories discovered", slog.Int("count", len(links)))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			result.EndTime = time.Now()
			return result, tables, err
		}
		r.scrapeCategory(ctx, link, tables, result)
	}

	closeSession()
	result.BookCount = len(tables.Books)
	if tables.Empty() {
		slog.Warn("nothing scraped", slog.Int("categories_skipped", len(result.CategoriesSkipped)))
	}

	if r.display != nil {
		RenderTables(r.display, tables)
	}

	if r.writer != nil {
		if err := r.export(tables); err != nil {
			result.EndTime = time.Now()
			return result, tables, err
		}
	}

	if r.loader != nil {
		start := time.Now()
		err := r.loader.Load(ctx, tables)
		r.scraper.Metrics.ObserveLoad(time.Since(start))
		if err != nil {
			r.recordError(result, err)
			result.EndTime = time.Now()
			return result, tables, err
		}
		r.scraper.Metrics.AddRowsLoaded(loader.TableCategories, len(tables.Categories))
		r.scraper.Metrics.AddRowsLoaded(loader.TableStatus, len(tables.Statuses))
		r.scraper.Metrics.AddRowsLoaded(loader.TableBooks, len(tables.Books))
		result.Loaded = true
	}

	result.EndTime = time.Now()
	return result, tables, nil
}

func (r *Runner) scrapeCategory(ctx context.Context, link models.CategoryLink, tables *store.Tables, result *models.RunResult) {
	slog.Info("scraping category", slog.String("category", link.Name))

	records, pages, err := r.scraper.ScrapeCategory(ctx, link)
	result.PageCount += pages
	if err != nil {
		r.recordError(result, err)
		r.scraper.Metrics.IncCategory("skipped")
		result.CategoriesSkipped = append(result.CategoriesSkipped, link.Name)

		var timeout scraper.ErrNavigationTimeout
		if errors.As(err, &timeout) {
			slog.Warn("timeout in category", slog.String("category", link.Name), slog.Any("error", err))
		} else {
			slog.Error("error in category", slog.String("category", link.Name), slog.Any("error", err))
		}
		return
	}

	categoryID, err := tables.AddCategory(link.Name, records)
	if err != nil {
		// AddCategory only fails on a dangling reference, which would be a bug.
		r.recordError(result, err)
		slog.Error("store category", slog.String("category", link.Name), slog.Any("error", err))
		return
	}

	r.scraper.Metrics.IncCategory("scraped")
	result.CategoriesScraped = append(result.CategoriesScraped, link.Name)
	slog.Debug("category scraped",
		slog.String("category", link.Name),
		slog.Int("category_id", categoryID),
		slog.Int("books", len(records)),
		slog.Int("pages", pages),
	)
}

func (r *Runner) export(tables *store.Tables) error {
	if err := r.writer.Write(tables); err != nil {
		return fmt.Errorf("export tables: %w", err)
	}
	if err := r.writer.Validate(); err != nil {
		return fmt.Errorf("validate export: %w", err)
	}
	return nil
}

func (r *Runner) recordError(result *models.RunResult, err error) {
	label := scraper.ErrorTypeLabel(err)
	var failed loader.ErrLoadFailed
	if errors.As(err, &failed) {
		label = "load_failed"
	}
	result.ErrorsByType[label]++
	r.scraper.Metrics.IncError(label)
}
