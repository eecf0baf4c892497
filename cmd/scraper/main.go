package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mariemby1/data-scraping/config"
	"github.com/mariemby1/data-scraping/loader"
	"github.com/mariemby1/data-scraping/models"
	"github.com/mariemby1/data-scraping/pipeline"
	"github.com/mariemby1/data-scraping/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "scraper",
		Short:         "Scrape catalog categories into the categories, status, and books tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), config.Load(v))
			if err != nil {
				slog.Error("run failed", slog.Any("error", err))
			}
			return err
		},
	}

	d := config.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.String("base-url", d.BaseURL, "Catalog home page")
	flags.StringSlice("categories", d.Categories, "Navigation categories to scrape")
	flags.Int("max-items", d.MaxItems, "Maximum books per category")
	flags.Duration("nav-timeout", d.NavigationTimeout, "Wait for a page's marker element")
	flags.String("driver", d.Driver, "Session driver: chrome or http")
	flags.String("browser-path", d.BrowserPath, "Browser executable (default: found on PATH)")
	flags.Bool("headless", d.Headless, "Run the browser headless")
	flags.Float64("pages-per-second", d.PagesPerSecond, "Navigation rate limit (0 disables)")
	flags.String("db-driver", d.DB.Driver, "Database driver: sqlserver, postgres, or sqlite")
	flags.String("db-dsn", d.DB.DSN, "Database connection string")
	flags.String("db-schema", d.DB.Schema, "Schema qualifying the destination tables")
	flags.Bool("skip-load", d.SkipLoad, "Scrape without writing to the database")
	flags.String("export-dir", d.Export.Dir, "Directory for a file export of the tables")
	flags.String("export-format", d.Export.Format, "Export format: csv, json, or dual")
	flags.Bool("print-tables", d.PrintTables, "Print the tables before loading")
	flags.String("metrics-addr", d.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolP("verbose", "v", d.Verbose, "Enable verbose logging")

	bindings := map[string]string{
		"base_url":         "base-url",
		"categories":       "categories",
		"max_items":        "max-items",
		"nav_timeout":      "nav-timeout",
		"driver":           "driver",
		"browser_path":     "browser-path",
		"headless":         "headless",
		"pages_per_second": "pages-per-second",
		"db.driver":        "db-driver",
		"db.dsn":           "db-dsn",
		"db.schema":        "db-schema",
		"skip_load":        "skip-load",
		"export.dir":       "export-dir",
		"export.format":    "export-format",
		"print_tables":     "print-tables",
		"metrics_addr":     "metrics-addr",
		"verbose":          "verbose",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scraper version %s\n", version)
		},
	})

	return cmd
}

// initConfig layers defaults, an optional config file, .env, and SCRAPER_*
// environment variables under the bound flags.
func initConfig(v *viper.Viper, cfgFile string) error {
	_ = godotenv.Load()

	config.SetDefaults(v)
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func run(parent context.Context, cfg *config.Config) error {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("categories", len(cfg.Categories)),
		slog.Int("max_items", cfg.MaxItems),
		slog.String("driver", cfg.Driver),
	)

	var opts []pipeline.Option
	if !cfg.SkipLoad {
		db, err := loader.Open(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		opts = append(opts, pipeline.WithLoader(loader.New(db, cfg.DB.Schema)))
	}

	if cfg.Export.Dir != "" {
		writer, err := pipeline.NewWriter(cfg.Export.Format, cfg.Export.Dir)
		if err != nil {
			return fmt.Errorf("create writer: %w", err)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close writer", slog.Any("error", err))
			}
		}()
		opts = append(opts, pipeline.WithWriter(writer))
	}

	if cfg.PrintTables {
		opts = append(opts, pipeline.WithDisplay(os.Stdout))
	}

	session, err := scraper.OpenSession(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	s := scraper.NewScraper(cfg, session)

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, _, err := pipeline.NewRunner(s, opts...).Run(ctx)
	if result != nil {
		printSummary(result, cfg)
	}
	if err != nil {
		return err
	}

	if result.Loaded {
		slog.Info("data inserted successfully",
			slog.String("db_driver", cfg.DB.Driver),
			slog.Int("books", result.BookCount),
		)
	}
	return nil
}

func printSummary(result *models.RunResult, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Categories:    %d scraped, %d skipped\n", len(result.CategoriesScraped), len(result.CategoriesSkipped))
	if len(result.CategoriesSkipped) > 0 {
		fmt.Printf("  Skipped:       %s\n", strings.Join(result.CategoriesSkipped, ", "))
	}
	fmt.Printf("  Books:         %d\n", result.BookCount)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	if cfg.SkipLoad {
		fmt.Println("  Database:      skipped")
	} else {
		fmt.Printf("  Database:      %s (loaded: %t)\n", cfg.DB.Driver, result.Loaded)
	}
	if cfg.Export.Dir != "" {
		fmt.Printf("  Export:        %s (%s)\n", cfg.Export.Dir, cfg.Export.Format)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
