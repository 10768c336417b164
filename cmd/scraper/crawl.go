package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aluiziolira/go-scrape-catalog/browser"
	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/fetcher"
	"github.com/aluiziolira/go-scrape-catalog/logger"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/savestate"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/aluiziolira/go-scrape-catalog/sites"
)

// crawlFlags maps flag names to config keys.
var crawlFlags = map[string]string{
	"site":          "site",
	"site-file":     "site_file",
	"categories":    "categories_file",
	"output":        "output_file",
	"format":        "output_format",
	"start":         "start_category",
	"end":           "end_category",
	"concurrency":   "category_concurrency",
	"chunk-min":     "min_product_chunk_size",
	"chunk-max":     "max_product_chunk_size",
	"rate-limit":    "rate_limit",
	"headless":      "headless",
	"state-backend": "state_backend",
	"state-dir":     "state_dir",
	"save-raw-html": "save_raw_html",
	"memcache-addr": "memcache_addr",
	"metrics-addr":  "metrics_addr",
	"date":          "run_date",
	"verbose":       "verbose",
}

func newCrawlCmd() *cobra.Command {
	v := viper.New()
	var configFile string
	d := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "crawl --site <name> --categories <file>",
		Short: "Crawls every category of a site for today's date, resuming saved progress.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), cmd.OutOrStdout(), v, configFile)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "YAML/JSON/TOML config file")
	f.String("site", d.Site, "registered site name (see `scraper sites`)")
	f.String("site-file", d.SiteFile, "site selector file merged over the registered template")
	f.String("categories", d.CategoriesFile, "category list (.csv, .json, .yaml or .toml)")
	f.String("output", d.OutputFile, "output path; {site} and {date} are expanded")
	f.String("format", d.OutputFormat, "output format: csv, json, or dual")
	f.String("start", "", "first category to crawl (inclusive)")
	f.String("end", "", "last category to crawl (inclusive)")
	f.Int("concurrency", d.CategoryConcurrency, "categories crawled at once")
	f.Int("chunk-min", d.MinProductChunkSize, "minimum products per concurrent chunk")
	f.Int("chunk-max", d.MaxProductChunkSize, "maximum products per concurrent chunk")
	f.Int("rate-limit", d.RateLimit, "requests per second across the process")
	f.Bool("headless", d.Headless, "run Chrome headless")
	f.String("state-backend", d.StateBackend, "save-state backend: file, redis, or postgres")
	f.String("state-dir", d.StateDir, "directory for file save-states and raw html")
	f.Bool("no-category-state", false, "do not read or write category save-states")
	f.Bool("no-product-state", false, "do not read or write product save-states")
	f.Bool("save-raw-html", d.SaveRawHTML, "archive each detail page's html")
	f.String("memcache-addr", d.MemcacheAddr, "memcache address shared for rate-limit cooldowns")
	f.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address")
	f.String("date", "", "run date (YYYY-MM-DD), today when empty")
	f.BoolP("verbose", "v", d.Verbose, "debug logging")

	for name, key := range crawlFlags {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
	// The save-state switches are inverted, so they override instead of binding.
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		if off, _ := cmd.Flags().GetBool("no-category-state"); off {
			v.Set("use_category_save_states", false)
		}
		if off, _ := cmd.Flags().GetBool("no-product-state"); off {
			v.Set("use_product_save_states", false)
		}
	}
	return cmd
}

func runCrawl(ctx context.Context, out io.Writer, v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	level := ""
	if cfg.Verbose {
		level = "debug"
	}
	log := logger.Init(logger.Options{Level: level, Pretty: isTerminal(os.Stderr)})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.CategoriesFile == "" {
		return errors.New("invalid configuration: categories file is required")
	}

	siteCfg, err := sites.Resolve(cfg.Site, cfg.SiteFile)
	if err != nil {
		return err
	}
	site, err := sites.New(siteCfg)
	if err != nil {
		return err
	}
	categories, err := config.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return err
	}

	date := cfg.Date()
	outputPath := pipeline.OutputPath(cfg.OutputFile, site.Sitename(), date)
	log.Info().
		Str("site", site.Sitename()).
		Str("date", date).
		Int("categories", len(categories)).
		Str("output", outputPath).
		Msg("starting crawl")

	metrics := scraper.NewMetrics()

	chrome, err := browser.NewChrome(ctx, browser.Options{
		Headless:          cfg.Headless,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
	})
	if err != nil {
		return err
	}
	defer chrome.Close()

	f, err := fetcher.New(fetcher.Options{
		RateLimit:         cfg.RateLimit,
		RequestTimeout:    cfg.RequestTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		UserAgent:         cfg.UserAgent,
		CooldownTime:      cfg.CooldownTime,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		RetryBackoffMax:   cfg.RetryBackoffMax,
		Browser:           chrome,
		Cache:             cooldownCache(cfg, log),
		Recorder:          metrics,
		Logger:            logger.ForComponent("fetcher"),
	})
	if err != nil {
		return err
	}

	store, err := savestate.Open(ctx, savestate.Options{
		Backend:     cfg.StateBackend,
		Dir:         cfg.StateDir,
		RedisAddr:   cfg.RedisAddr,
		PostgresURL: cfg.PostgresURL,
		TTL:         cfg.StateTTL,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	writer, err := pipeline.NewWriter(cfg.OutputFormat, outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Msg("close writer")
		}
	}()

	p, err := pipeline.NewPipeline(writer, pipeline.Options{Logger: logger.ForComponent("pipeline")})
	if err != nil {
		return err
	}
	p.Start(cfg.CategoryConcurrency)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	if cfg.MetricsAddr != "" {
		srv := newMetricsServer(cfg.MetricsAddr, metrics)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server enabled")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("metrics server shutdown failed")
			}
		}()
	}

	s, err := scraper.NewScraper(cfg, scraper.Deps{
		Site:    site,
		Fetcher: f,
		Store:   store,
		Sink:    p,
		Metrics: metrics,
		Logger:  logger.ForSite(site.Sitename()),
	})
	if err != nil {
		return err
	}

	result, runErr := s.Run(ctx, categories)
	if err := p.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("pipeline shutdown: %w", err)
	}
	if runErr == nil {
		if err := writer.Validate(); err != nil {
			runErr = fmt.Errorf("output validation: %w", err)
		}
	}

	printSummary(out, result, p.GetMetrics(), outputPath)

	if runErr != nil {
		log.Error().Str("url", scraper.FailedURL(runErr)).Err(runErr).Msg("crawl failed")
		return runErr
	}
	return nil
}

// cooldownCache shares 429 cooldowns through memcache when it is reachable.
func cooldownCache(cfg *config.Config, log zerolog.Logger) fetcher.CacheService {
	if cfg.MemcacheAddr == "" {
		return nil
	}
	mc := fetcher.NewMemcacheService(cfg.MemcacheAddr)
	if err := mc.Ping(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("memcache unreachable, keeping cooldowns in memory")
		return nil
	}
	return mc
}
