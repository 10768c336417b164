package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

type namedWriter struct {
	name string
	w    OutputWriter
}

// MultiWriter fans every product group out to several writers. A write
// stops at the first failing writer so a product is never marked done
// while one of its files is missing rows.
type MultiWriter struct {
	writers []namedWriter
}

// NewDualWriter writes CSV to csvFilename and JSONL to jsonFilename.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		_ = csvWriter.Close()
		return nil, fmt.Errorf("jsonl: %w", err)
	}
	return &MultiWriter{writers: []namedWriter{
		{name: "csv", w: csvWriter},
		{name: "jsonl", w: jsonWriter},
	}}, nil
}

func (m *MultiWriter) Write(rows []*models.CrawlRow) error {
	for _, nw := range m.writers {
		if err := nw.w.Write(rows); err != nil {
			return fmt.Errorf("%s: %w", nw.name, err)
		}
	}
	return nil
}

// Close closes every writer, even after a failure.
func (m *MultiWriter) Close() error {
	return m.each(OutputWriter.Close)
}

func (m *MultiWriter) Validate() error {
	return m.each(OutputWriter.Validate)
}

func (m *MultiWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for _, nw := range m.writers {
		if err := fn(nw.w); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", nw.name, err))
		}
	}
	return errors.Join(errs...)
}
