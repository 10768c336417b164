// Package pipeline validates crawl rows and writes them as CSV, JSONL or both.
package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers do not drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for in-flight groups.
var drainTimeout = 30 * time.Second

// DefaultDedupeSize is the number of row keys remembered.
const DefaultDedupeSize = 1 << 16

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(rows []*models.CrawlRow) error
	Close() error
	Validate() error
}

// Options configures a Pipeline.
type Options struct {
	DedupeSize int
	Logger     zerolog.Logger
}

// group is the rows of one product. done receives the write result.
type group struct {
	rows []*models.CrawlRow
	done chan written
}

type written struct {
	n   int
	err error
}

// Pipeline coordinates validation, de-duplication, and output writing.
// Process blocks until the product's rows are flushed so callers may
// mark the product done afterwards.
type Pipeline struct {
	writer  OutputWriter
	groupCh chan group
	log     zerolog.Logger

	wg sync.WaitGroup

	seen *lru.Cache[string, struct{}]

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline with a modest in-memory buffer.
func NewPipeline(writer OutputWriter, opts Options) (*Pipeline, error) {
	if writer == nil {
		return nil, fmt.Errorf("pipeline: writer is nil")
	}
	size := opts.DedupeSize
	if size <= 0 {
		size = DefaultDedupeSize
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Pipeline{
		writer:   writer,
		groupCh:  make(chan group, 64),
		log:      opts.Logger,
		seen:     seen,
		shutdown: make(chan struct{}),
	}, nil
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for range workers {
		p.wg.Go(p.worker)
	}
}

// Process validates, de-duplicates and writes the rows of one product,
// returning once they are flushed. n counts the rows actually written;
// invalid rows and exact repeats of an earlier row are dropped.
func (p *Pipeline) Process(rows []*models.CrawlRow) (n int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	closed, err := p.state()
	if err != nil {
		return 0, err
	}
	if closed {
		return 0, ErrPipelineClosed
	}

	g := group{rows: rows, done: make(chan written, 1)}
	if err := p.enqueue(g); err != nil {
		return 0, err
	}

	select {
	case w := <-g.done:
		return w.n, w.err
	case <-p.shutdown:
		// The worker may have finished this group right before shutdown.
		select {
		case w := <-g.done:
			return w.n, w.err
		default:
		}
		if err := p.Err(); err != nil {
			return 0, err
		}
		return 0, ErrPipelineClosed
	}
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.groupCh)
	})

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
		p.signalShutdown()
		return ErrPipelineCloseTimeout
	}
	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				p.log.Info().
					Int64("rows", metrics["processed_rows"].(int64)).
					Int("validation_kinds", len(metrics["validation_errors"].(map[string]int))).
					Msg("pipeline progress")
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	for g := range p.groupCh {
		prepared := make([]*models.CrawlRow, 0, len(g.rows))
		for _, row := range g.rows {
			if r := p.prepare(row); r != nil {
				prepared = append(prepared, r)
			}
		}
		if len(prepared) == 0 {
			g.done <- written{}
			continue
		}
		if err := p.writer.Write(prepared); err != nil {
			err = fmt.Errorf("write rows: %w", err)
			g.done <- written{err: err}
			p.setErr(err)
			return
		}
		p.metrics.addProcessed(len(prepared))
		g.done <- written{n: len(prepared)}
	}
}

// dedupeKey identifies a row by the listing it came from and the option
// it carries, so a product in two categories or two options sharing a
// label keep their rows.
func dedupeKey(row *models.CrawlRow) string {
	return strings.Join([]string{
		row.Category,
		row.Listing,
		row.URL,
		row.OptionLabel,
		row.OptionPrice,
		row.OptionDelta,
		row.SoldOut,
	}, "\x00")
}

func (p *Pipeline) prepare(row *models.CrawlRow) *models.CrawlRow {
	if err := parser.ValidateRow(row); err != nil {
		p.metrics.addValidation("invalid_record")
		p.log.Debug().Err(err).Msg("dropping invalid row")
		return nil
	}

	if ok, _ := p.seen.ContainsOrAdd(dedupeKey(row), struct{}{}); ok {
		p.metrics.addValidation("duplicate_row")
		return nil
	}

	row.Name = parser.NormalizeText(row.Name)
	row.Delivery = parser.NormalizeText(row.Delivery)
	row.Quantity = parser.NormalizeText(row.Quantity)
	if row.CrawledAt.IsZero() {
		row.CrawledAt = time.Now()
	}
	return row
}

func (p *Pipeline) enqueue(g group) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.groupCh <- g:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func (m *metrics) addProcessed(n int) {
	m.mu.Lock()
	m.processed += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	if m.validation == nil {
		m.validation = make(map[string]int)
	}
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := maps.Clone(m.validation)
	if copyValidation == nil {
		copyValidation = map[string]int{}
	}

	return map[string]interface{}{
		"processed_rows":    m.processed,
		"validation_errors": copyValidation,
	}
}
