package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session drivers.
const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"
)

// DefaultCategories is the allow-list of navigation categories to scrape.
var DefaultCategories = []string{
	"Travel", "Mystery", "Historical Fiction", "Sequential Art", "Classics",
	"Philosophy", "Romance", "Womens Fiction", "Fiction", "Childrens",
	"Religion", "Nonfiction", "Music", "Default", "Science Fiction", "Sports and Games",
}

// Config holds scraper configuration.
type Config struct {
	BaseURL           string
	Categories        []string
	MaxItems          int
	NavigationTimeout time.Duration
	Driver            string // chrome or http
	BrowserPath       string
	Headless          bool
	UserAgent         string
	PagesPerSecond    float64
	SkipLoad          bool
	PrintTables       bool
	MetricsAddr       string
	Verbose           bool
	DB                DBConfig
	Export            ExportConfig
}

// DBConfig describes the destination store.
type DBConfig struct {
	Driver string // sqlserver, postgres, or sqlite
	DSN    string
	Schema string
}

// ExportConfig controls the optional file export of the scraped tables.
type ExportConfig struct {
	Dir    string
	Format string // csv, json, or dual
}

// DefaultConfig returns the defaults for the demo target.
func DefaultConfig() *Config {
	categories := make([]string, len(DefaultCategories))
	copy(categories, DefaultCategories)

	return &Config{
		BaseURL:           "https://books.toscrape.com/",
		Categories:        categories,
		MaxItems:          10,
		NavigationTimeout: 10 * time.Second,
		Driver:            DriverChrome,
		Headless:          true,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		PrintTables:       true,
		DB: DBConfig{
			Driver: "sqlserver",
			Schema: "dbo",
		},
		Export: ExportConfig{
			Format: "csv",
		},
	}
}

// SetDefaults registers DefaultConfig values on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("categories", d.Categories)
	v.SetDefault("max_items", d.MaxItems)
	v.SetDefault("nav_timeout", d.NavigationTimeout)
	v.SetDefault("driver", d.Driver)
	v.SetDefault("browser_path", d.BrowserPath)
	v.SetDefault("headless", d.Headless)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("pages_per_second", d.PagesPerSecond)
	v.SetDefault("skip_load", d.SkipLoad)
	v.SetDefault("print_tables", d.PrintTables)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("db.driver", d.DB.Driver)
	v.SetDefault("db.dsn", d.DB.DSN)
	v.SetDefault("db.schema", d.DB.Schema)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.format", d.Export.Format)
}

// Load builds a Config from v. Defaults must already be registered.
func Load(v *viper.Viper) *Config {
	return &Config{
		BaseURL:           v.GetString("base_url"),
		Categories:        splitList(v.Get("categories")),
		MaxItems:          v.GetInt("max_items"),
		NavigationTimeout: v.GetDuration("nav_timeout"),
		Driver:            strings.ToLower(v.GetString("driver")),
		BrowserPath:       v.GetString("browser_path"),
		Headless:          v.GetBool("headless"),
		UserAgent:         v.GetString("user_agent"),
		PagesPerSecond:    v.GetFloat64("pages_per_second"),
		SkipLoad:          v.GetBool("skip_load"),
		PrintTables:       v.GetBool("print_tables"),
		MetricsAddr:       v.GetString("metrics_addr"),
		Verbose:           v.GetBool("verbose"),
		DB: DBConfig{
			Driver: strings.ToLower(v.GetString("db.driver")),
			DSN:    v.GetString("db.dsn"),
			Schema: v.GetString("db.schema"),
		},
		Export: ExportConfig{
			Dir:    v.GetString("export.dir"),
			Format: strings.ToLower(v.GetString("export.format")),
		},
	}
}

// splitList accepts both list values and a single comma-separated string,
// which is how the allow-list arrives from an environment variable.
func splitList(raw any) []string {
	var values []string
	switch val := raw.(type) {
	case string:
		values = strings.Split(val, ",")
	case []string:
		values = val
	case []any:
		for _, item := range val {
			values = append(values, fmt.Sprint(item))
		}
	}

	var out []string
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("categories allow-list cannot be empty")
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("max items must be positive")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.Driver != DriverChrome && c.Driver != DriverHTTP {
		return fmt.Errorf("driver must be chrome or http")
	}
	if c.PagesPerSecond < 0 {
		return fmt.Errorf("pages per second cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	if !c.SkipLoad {
		switch c.DB.Driver {
		case "sqlserver", "postgres", "sqlite":
		default:
			return fmt.Errorf("db driver must be sqlserver, postgres, or sqlite")
		}
		if c.DB.DSN == "" {
			return fmt.Errorf("db dsn cannot be empty unless loading is skipped")
		}
	}

	if c.Export.Dir != "" {
		if c.Export.Format != "csv" && c.Export.Format != "json" && c.Export.Format != "dual" {
			return fmt.Errorf("export format must be csv, json, or dual")
		}
	}

	return nil
}
