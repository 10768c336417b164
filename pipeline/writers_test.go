package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func sampleRow() *models.CrawlRow {
	return &models.CrawlRow{
		Category:     "상의 > 셔츠",
		Listing:      "상의",
		URL:          "https://shop.test/product/detail.html?product_no=4211",
		ProductID:    "4211",
		Name:         "린넨 셔츠",
		Thumbnail:    "https://shop.test/thumb/4211.jpg",
		Price:        10000,
		Delivery:     "2,500원",
		DetailImages: `<img src="https://shop.test/d/1.jpg">`,
		OptionLabel:  "Red",
		OptionPrice:  "11000",
		OptionDelta:  "1000",
		CrawledAt:    time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.HasPrefix(string(data), utf8BOM) {
		t.Fatalf("csv file does not start with a BOM")
	}
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return records
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rows.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write([]*models.CrawlRow{sampleRow()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	records := readCSV(t, path)
	want := [][]string{
		models.RowColumns,
		{
			"상의 > 셔츠", "상의", "https://shop.test/product/detail.html?product_no=4211", "4211", "린넨 셔츠",
			"https://shop.test/thumb/4211.jpg", "10000", "", "2,500원", "", "",
			`<img src="https://shop.test/d/1.jpg">`, "Red", "11000", "1000", "2026-10-18T09:00:00Z",
		},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("csv records mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVWriterAppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")

	for i := 0; i < 2; i++ {
		writer, err := NewCSVWriter(path)
		if err != nil {
			t.Fatalf("create csv writer: %v", err)
		}
		if err := writer.Write([]*models.CrawlRow{sampleRow()}); err != nil {
			t.Fatalf("write csv: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("close csv: %v", err)
		}
	}

	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("records=%d, want header + 2 rows", len(records))
	}
	if records[1][0] != "상의 > 셔츠" || records[2][0] != "상의 > 셔츠" {
		t.Fatalf("unexpected rows: %v", records[1:])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	if err := writer.Write([]*models.CrawlRow{sampleRow(), sampleRow()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var decoded []models.CrawlRow
	for scanner.Scan() {
		var row models.CrawlRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		decoded = append(decoded, row)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("json lines=%d, want 2", len(decoded))
	}
	if diff := cmp.Diff(*sampleRow(), decoded[0]); diff != "" {
		t.Fatalf("json row mismatch (-want +got):\n%s", diff)
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "rows.csv")

	writer, err := NewWriter(FormatDual, csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write([]*models.CrawlRow{sampleRow()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(filepath.Join(dir, "rows.jsonl")); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewWriter("xlsx", filepath.Join(t.TempDir(), "rows.xlsx")); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	writer, err := NewJSONWriter(filepath.Join(t.TempDir(), "rows.jsonl"))
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected empty json file to fail validation")
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath("output/{site}/{date}.csv", "cafe24", "2026-10-18")
	if got != "output/cafe24/2026-10-18.csv" {
		t.Fatalf("OutputPath = %q", got)
	}
}

func TestMultiWriterStopsAtFirstFailure(t *testing.T) {
	failing := &mockWriter{writeErr: errors.New("disk full"), validateErr: errors.New("empty")}
	after := &mockWriter{}
	w := &MultiWriter{writers: []namedWriter{
		{name: "csv", w: failing},
		{name: "jsonl", w: after},
	}}

	err := w.Write([]*models.CrawlRow{sampleRow()})
	if err == nil || err.Error() != "csv: disk full" {
		t.Fatalf("write error = %v, want csv: disk full", err)
	}
	if after.totalWritten() != 0 {
		t.Fatalf("second writer received rows after the first failed")
	}

	if err := w.Validate(); err == nil || !strings.Contains(err.Error(), "csv: empty") {
		t.Fatalf("validate error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !failing.closed || !after.closed {
		t.Fatalf("close skipped a writer")
	}
}
