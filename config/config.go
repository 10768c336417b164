package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SCRAPER"

// Config holds crawler configuration for one site run.
type Config struct {
	Site           string `mapstructure:"site"`
	SiteFile       string `mapstructure:"site_file"` // selector overrides for Site
	CategoriesFile string `mapstructure:"categories_file"`

	Headless            bool          `mapstructure:"headless"`
	NavigationTimeout   time.Duration `mapstructure:"navigation_timeout"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	RateLimit           int           `mapstructure:"rate_limit"`
	CategoryConcurrency int           `mapstructure:"category_concurrency"`
	MinProductChunkSize int           `mapstructure:"min_product_chunk_size"`
	MaxProductChunkSize int           `mapstructure:"max_product_chunk_size"`

	UseCategorySaveStates bool   `mapstructure:"use_category_save_states"`
	UseProductSaveStates  bool   `mapstructure:"use_product_save_states"`
	SaveRawHTML           bool   `mapstructure:"save_raw_html"`
	StartCategory         string `mapstructure:"start_category"`
	EndCategory           string `mapstructure:"end_category"`

	OutputFile   string `mapstructure:"output_file"` // may contain {site} and {date}
	OutputFormat string `mapstructure:"output_format"`

	StateBackend string        `mapstructure:"state_backend"` // file, redis or postgres
	StateDir     string        `mapstructure:"state_dir"`
	StateTTL     time.Duration `mapstructure:"state_ttl"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	PostgresURL  string        `mapstructure:"postgres_url"`
	MemcacheAddr string        `mapstructure:"memcache_addr"`

	CooldownTime    time.Duration `mapstructure:"cooldown_time"`
	MaxRetries      int           `mapstructure:"max_retries"`
	ImageMaxTries   int           `mapstructure:"image_max_tries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`
	OptionSettle    time.Duration `mapstructure:"option_settle"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	UserAgent   string `mapstructure:"user_agent"`
	RunDate     string `mapstructure:"run_date"` // YYYY-MM-DD, today when empty
	Verbose     bool   `mapstructure:"verbose"`
}

// DefaultConfig returns conservative defaults for a small storefront.
func DefaultConfig() *Config {
	return &Config{
		Headless:              true,
		NavigationTimeout:     30 * time.Second,
		RequestTimeout:        10 * time.Second,
		RateLimit:             5,
		CategoryConcurrency:   2,
		MinProductChunkSize:   1,
		MaxProductChunkSize:   8,
		UseCategorySaveStates: true,
		UseProductSaveStates:  true,
		SaveRawHTML:           false,
		OutputFile:            "output/{site}/{date}.csv",
		OutputFormat:          "csv",
		StateBackend:          "file",
		StateDir:              "state",
		RedisAddr:             "localhost:6379",
		CooldownTime:          time.Minute,
		MaxRetries:            2,
		ImageMaxTries:         5,
		RetryBackoff:          200 * time.Millisecond,
		RetryBackoffMax:       2 * time.Second,
		OptionSettle:          500 * time.Millisecond,
		UserAgent:             "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	}
}

// Date returns the run date, defaulting to today.
func (c *Config) Date() string {
	if c.RunDate != "" {
		return c.RunDate
	}
	return time.Now().Format(models.DateLayout)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Site == "" {
		return fmt.Errorf("site cannot be empty")
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.CategoryConcurrency <= 0 {
		return fmt.Errorf("category concurrency must be positive")
	}
	if c.MaxProductChunkSize <= 0 {
		return fmt.Errorf("max product chunk size must be positive")
	}
	if c.MinProductChunkSize < 0 {
		return fmt.Errorf("min product chunk size cannot be negative")
	}
	if c.MinProductChunkSize > c.MaxProductChunkSize {
		return fmt.Errorf("min product chunk size (%d) cannot exceed max product chunk size (%d)", c.MinProductChunkSize, c.MaxProductChunkSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.ImageMaxTries <= 0 {
		return fmt.Errorf("image max tries must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CooldownTime < 0 {
		return fmt.Errorf("cooldown time cannot be negative")
	}
	if c.OptionSettle < 0 {
		return fmt.Errorf("option settle cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	switch c.StateBackend {
	case "file":
		if c.StateDir == "" {
			return fmt.Errorf("state dir cannot be empty for the file backend")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis addr cannot be empty for the redis backend")
		}
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres url cannot be empty for the postgres backend")
		}
	default:
		return fmt.Errorf("state backend must be file, redis, or postgres")
	}
	if c.SaveRawHTML && c.StateDir == "" {
		return fmt.Errorf("state dir is required to save raw html")
	}
	if c.RunDate != "" {
		if _, err := time.Parse(models.DateLayout, c.RunDate); err != nil {
			return fmt.Errorf("run date must be YYYY-MM-DD: %w", err)
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// SetDefaults registers DefaultConfig on v so env vars and files only
// need to name what they change.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("site", d.Site)
	v.SetDefault("site_file", d.SiteFile)
	v.SetDefault("categories_file", d.CategoriesFile)
	v.SetDefault("headless", d.Headless)
	v.SetDefault("navigation_timeout", d.NavigationTimeout)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("category_concurrency", d.CategoryConcurrency)
	v.SetDefault("min_product_chunk_size", d.MinProductChunkSize)
	v.SetDefault("max_product_chunk_size", d.MaxProductChunkSize)
	v.SetDefault("use_category_save_states", d.UseCategorySaveStates)
	v.SetDefault("use_product_save_states", d.UseProductSaveStates)
	v.SetDefault("save_raw_html", d.SaveRawHTML)
	v.SetDefault("start_category", d.StartCategory)
	v.SetDefault("end_category", d.EndCategory)
	v.SetDefault("output_file", d.OutputFile)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("state_backend", d.StateBackend)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("state_ttl", d.StateTTL)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("postgres_url", d.PostgresURL)
	v.SetDefault("memcache_addr", d.MemcacheAddr)
	v.SetDefault("cooldown_time", d.CooldownTime)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("image_max_tries", d.ImageMaxTries)
	v.SetDefault("retry_backoff", d.RetryBackoff)
	v.SetDefault("retry_backoff_max", d.RetryBackoffMax)
	v.SetDefault("option_settle", d.OptionSettle)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("run_date", d.RunDate)
	v.SetDefault("verbose", d.Verbose)
}

// Load reads .env, SCRAPER_* environment variables and, when file is set,
// a YAML/JSON/TOML config file into a Config. Flags already bound on v
// take precedence over all of them.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if v == nil {
		v = viper.New()
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}
