package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Site = "cafe24"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty site",
			mutate:  func(cfg *Config) { cfg.Site = "" },
			wantErr: "site",
		},
		{
			name:    "zero rate limit",
			mutate:  func(cfg *Config) { cfg.RateLimit = 0 },
			wantErr: "rate limit",
		},
		{
			name:    "negative category concurrency",
			mutate:  func(cfg *Config) { cfg.CategoryConcurrency = -1 },
			wantErr: "category concurrency",
		},
		{
			name:    "zero max chunk",
			mutate:  func(cfg *Config) { cfg.MaxProductChunkSize = 0 },
			wantErr: "max product chunk size",
		},
		{
			name: "min chunk above max",
			mutate: func(cfg *Config) {
				cfg.MinProductChunkSize = 10
				cfg.MaxProductChunkSize = 4
			},
			wantErr: "min product chunk size",
		},
		{
			name:    "negative navigation timeout",
			mutate:  func(cfg *Config) { cfg.NavigationTimeout = -1 * time.Second },
			wantErr: "navigation timeout",
		},
		{
			name:    "zero image tries",
			mutate:  func(cfg *Config) { cfg.ImageMaxTries = 0 },
			wantErr: "image max tries",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 3 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name:    "unknown output format",
			mutate:  func(cfg *Config) { cfg.OutputFormat = "xlsx" },
			wantErr: "output format",
		},
		{
			name:    "unknown state backend",
			mutate:  func(cfg *Config) { cfg.StateBackend = "sqlite" },
			wantErr: "state backend",
		},
		{
			name: "postgres without url",
			mutate: func(cfg *Config) {
				cfg.StateBackend = "postgres"
				cfg.PostgresURL = ""
			},
			wantErr: "postgres url",
		},
		{
			name:    "malformed run date",
			mutate:  func(cfg *Config) { cfg.RunDate = "18/10/2026" },
			wantErr: "run date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestConfigDate(t *testing.T) {
	cfg := validConfig()
	cfg.RunDate = "2026-10-18"
	assert.Equal(t, "2026-10-18", cfg.Date())

	cfg.RunDate = ""
	assert.Equal(t, time.Now().Format(models.DateLayout), cfg.Date())
}

func TestLoadFromEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
site: godomall
rate_limit: 3
max_product_chunk_size: 4
navigation_timeout: 45s
use_product_save_states: false
`), 0o644))

	t.Setenv("SCRAPER_RATE_LIMIT", "7")
	t.Setenv("SCRAPER_START_CATEGORY", "아우터")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, "godomall", cfg.Site)
	assert.Equal(t, 7, cfg.RateLimit, "env overrides the file")
	assert.Equal(t, 4, cfg.MaxProductChunkSize)
	assert.Equal(t, 45*time.Second, cfg.NavigationTimeout)
	assert.False(t, cfg.UseProductSaveStates)
	assert.True(t, cfg.UseCategorySaveStates, "defaults fill the rest")
	assert.Equal(t, "아우터", cfg.StartCategory)
	assert.Equal(t, DefaultConfig().ImageMaxTries, cfg.ImageMaxTries)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(viper.New(), "does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoadCategories(t *testing.T) {
	dir := t.TempDir()
	want := []models.Category{
		{Name: "아우터", URL: "https://shop.test/category/outer/24/"},
		{Name: "상의", URL: "https://shop.test/category/top/25/?sort=new"},
	}

	outer := `{"name":"아우터","url":"https://shop.test/category/outer/24/"}`
	top := `{"name":"상의","url":"https://shop.test/category/top/25/?sort=new"}`
	files := map[string]string{
		"categories.csv":  "\ufeffname,url\n아우터,https://shop.test/category/outer/24/\n상의,https://shop.test/category/top/25/?sort=new\n",
		"array.json":      "[" + outer + "," + top + "]",
		"object.json":     `{"categories":[` + outer + "," + top + "]}",
		"categories.yaml": "categories:\n  - name: 아우터\n    url: https://shop.test/category/outer/24/\n  - name: 상의\n    url: https://shop.test/category/top/25/?sort=new\n",
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			got, err := LoadCategories(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadCategoriesRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"dup.csv":      "name,url\na,http://x/1\na,http://x/2\n",
		"noheader.csv": "title,link\na,http://x/1\n",
		"nourl.json":   `[{"name":"a"}]`,
		"list.txt":     "a",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadCategories(path)
			assert.Error(t, err)
		})
	}
}
