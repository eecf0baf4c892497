package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a scraping run.
type Metrics struct {
	Registry           *prometheus.Registry
	NavigationsTotal   *prometheus.CounterVec
	NavigationDuration prometheus.Histogram
	EntriesTotal       prometheus.Counter
	CategoriesTotal    *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	RowsLoadedTotal    *prometheus.CounterVec
	LoadDuration       prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	navigations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_navigations_total",
			Help: "Total page navigations by outcome.",
		},
		[]string{"outcome"},
	)
	navigationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_navigation_duration_seconds",
			Help:    "Time spent loading a page until its marker element appeared.",
			Buckets: prometheus.DefBuckets,
		},
	)
	entries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_entries_extracted_total",
			Help: "Total number of listing entries extracted.",
		},
	)
	categories := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_categories_total",
			Help: "Categories processed by outcome.",
		},
		[]string{"outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	rowsLoaded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_rows_loaded_total",
			Help: "Rows committed to the destination store by table.",
		},
		[]string{"table"},
	)
	loadDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_load_duration_seconds",
			Help:    "Time spent persisting the run's tables.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(navigations, navigationDuration, entries, categories, errorsTotal, rowsLoaded, loadDuration)

	return &Metrics{
		Registry:           registry,
		NavigationsTotal:   navigations,
		NavigationDuration: navigationDuration,
		EntriesTotal:       entries,
		CategoriesTotal:    categories,
		ErrorsTotal:        errorsTotal,
		RowsLoadedTotal:    rowsLoaded,
		LoadDuration:       loadDuration,
	}
}

// IncNavigation increments the navigations counter.
func (m *Metrics) IncNavigation(outcome string) {
	if m == nil {
		return
	}
	m.NavigationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNavigation records a navigation duration.
func (m *Metrics) ObserveNavigation(d time.Duration) {
	if m == nil {
		return
	}
	m.NavigationDuration.Observe(d.Seconds())
}

// AddEntries adds to the extracted entries counter.
func (m *Metrics) AddEntries(n int) {
	if m == nil {
		return
	}
	m.EntriesTotal.Add(float64(n))
}

// IncCategory increments the categories counter for an outcome.
func (m *Metrics) IncCategory(outcome string) {
	if m == nil {
		return
	}
	m.CategoriesTotal.WithLabelValues(outcome).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// AddRowsLoaded records committed rows for a table.
func (m *Metrics) AddRowsLoaded(table string, n int) {
	if m == nil {
		return
	}
	m.RowsLoadedTotal.WithLabelValues(table).Add(float64(n))
}

// ObserveLoad records the persistence duration.
func (m *Metrics) ObserveLoad(d time.Duration) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(d.Seconds())
}
