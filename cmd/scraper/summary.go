package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func printSummary(out io.Writer, result *models.CrawlResult, metrics map[string]interface{}, outputFile string) {
	if result == nil {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("Crawl %s %s", result.Site, result.Date))

	duration := result.EndTime.Sub(result.StartTime)
	rowsPerSec := 0.0
	if duration.Seconds() > 0 {
		rowsPerSec = float64(result.RowCount) / duration.Seconds()
	}

	t.AppendRows([]table.Row{
		{"Categories done", result.CategoriesDone},
		{"Categories skipped", result.CategoriesSkipped},
		{"Pages", result.PageCount},
		{"Products done", result.ProductsDone},
		{"Products skipped", result.ProductsSkipped},
		{"Rows", result.RowCount},
		{"Retries", result.RetryCount},
	})
	if len(result.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Errors", formatCounts(result.ErrorsByType)})
	}
	if processed, ok := metrics["processed_rows"].(int64); ok {
		t.AppendRow(table.Row{"Rows written", processed})
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		t.AppendRow(table.Row{"Rows rejected", formatCounts(valErrors)})
	}
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Duration", duration.Round(time.Millisecond)},
		{"Rows/sec", fmt.Sprintf("%.2f", rowsPerSec)},
		{"Output", outputFile},
	})

	t.SetStyle(table.StyleRounded)
	t.Render()
}

// formatCounts renders a count map in key order, e.g. "name=1 timeout=3".
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
