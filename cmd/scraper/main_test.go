package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

func TestMetricsRouter(t *testing.T) {
	m := scraper.NewMetrics()
	m.IncPages()
	m.AddRows(3)

	srv := httptest.NewServer(metricsRouter(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scraper_pages_total 1")
	assert.Contains(t, string(body), "scraper_rows_total 3")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRenderSites(t *testing.T) {
	var buf bytes.Buffer
	renderSites(&buf)

	out := buf.String()
	assert.Contains(t, out, "cafe24")
	assert.Contains(t, out, "godomall")
	assert.Contains(t, out, "price ( : )")
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	result := &models.CrawlResult{
		Site:           "cafe24",
		Date:           "2026-10-18",
		StartTime:      start,
		EndTime:        start.Add(10 * time.Second),
		CategoriesDone: 2,
		ProductsDone:   7,
		RowCount:       20,
		ErrorsByType:   map[string]int{"timeout": 3, "name": 1},
	}
	metrics := map[string]interface{}{
		"processed_rows":    int64(19),
		"validation_errors": map[string]int{"duplicate_row": 1},
	}

	var buf bytes.Buffer
	printSummary(&buf, result, metrics, "output/cafe24/2026-10-18.csv")

	out := buf.String()
	assert.Contains(t, out, "Crawl cafe24 2026-10-18")
	assert.Contains(t, out, "name=1 timeout=3")
	assert.Contains(t, out, "duplicate_row=1")
	assert.Contains(t, out, "2.00")
	assert.Contains(t, out, "output/cafe24/2026-10-18.csv")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "a=1 b=2", formatCounts(map[string]int{"b": 2, "a": 1}))
	assert.Equal(t, "", formatCounts(nil))
}

func TestCrawlRejectsBadConfigBeforeStartingChrome(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	categories := filepath.Join(dir, "categories.csv")
	require.NoError(t, os.WriteFile(categories, []byte("name,url\nTops,http://shop.test/list?cate_no=1\n"), 0o644))

	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{name: "no site", set: map[string]any{}, wantErr: "site cannot be empty"},
		{name: "no categories", set: map[string]any{"site": "cafe24"}, wantErr: "categories file is required"},
		{name: "unknown site", set: map[string]any{"site": "wix", "categories_file": categories}, wantErr: "unknown site"},
		{name: "bad format", set: map[string]any{"site": "cafe24", "output_format": "xml"}, wantErr: "output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			err := runCrawl(context.Background(), io.Discard, v, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCrawlCommandBindsFlags(t *testing.T) {
	cmd := newCrawlCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--site", "godomall", "--concurrency", "4", "--no-product-state"}))

	site, err := cmd.Flags().GetString("site")
	require.NoError(t, err)
	assert.Equal(t, "godomall", site)
	for name := range crawlFlags {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}
