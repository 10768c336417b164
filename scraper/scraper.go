// Package scraper is the shared crawl engine. It walks categories in
// windows, pages through each category, extracts products in bounded
// concurrent chunks and checkpoints progress so a broken run can resume.
// Everything site-specific comes from a Site.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/document"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/retry"
	"github.com/aluiziolira/go-scrape-catalog/savestate"
)

// RowSink receives the rows of one product and returns once they are
// durable, reporting how many of them were written.
type RowSink interface {
	Process(rows []*models.CrawlRow) (int, error)
}

// Deps are the collaborators of a Scraper.
type Deps struct {
	Site    Site
	Fetcher Fetcher
	Store   savestate.Store
	Sink    RowSink
	Memo    *parser.Memo
	Metrics *Metrics
	Logger  zerolog.Logger
}

// Scraper crawls the categories of one site for one run date.
type Scraper struct {
	cfg     *config.Config
	site    Site
	fetch   Fetcher
	store   savestate.Store
	sink    RowSink
	memo    *parser.Memo
	options PriceOptionReader
	Metrics *Metrics
	log     zerolog.Logger
	date    string
	now     func() time.Time

	categoriesDone    int64
	categoriesSkipped int64
	pageCount         int64
	productsDone      int64
	productsSkipped   int64
	rowCount          int64
	retryCount        int64

	mu           sync.Mutex
	errorsByType map[string]int
	productRows  map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, deps Deps) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if deps.Site == nil {
		return nil, fmt.Errorf("site is nil")
	}
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is nil")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("row sink is nil")
	}
	if deps.Store == nil && (cfg.UseCategorySaveStates || cfg.UseProductSaveStates) {
		return nil, fmt.Errorf("save-states are enabled but no store is configured")
	}
	if cfg.CategoryConcurrency <= 0 {
		return nil, fmt.Errorf("category concurrency must be positive")
	}
	if cfg.MaxProductChunkSize <= 0 {
		return nil, fmt.Errorf("max product chunk size must be positive")
	}
	if deps.Site.Listing().ProductSelector == "" {
		return nil, fmt.Errorf("site %s has no product selector", deps.Site.Sitename())
	}

	memo := deps.Memo
	if memo == nil {
		var err error
		if memo, err = parser.NewMemo(parser.DefaultMemoSize); err != nil {
			return nil, err
		}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Scraper{
		cfg:          cfg,
		site:         deps.Site,
		fetch:        deps.Fetcher,
		store:        deps.Store,
		sink:         deps.Sink,
		memo:         memo,
		Metrics:      metrics,
		log:          deps.Logger.With().Str("site", deps.Site.Sitename()).Logger(),
		date:         cfg.Date(),
		now:          time.Now,
		errorsByType: make(map[string]int),
		productRows:  make(map[string]int),
	}
	s.options = PriceOptionReader{
		Backoff: retry.Backoff{
			Base:     cfg.RetryBackoff,
			Max:      cfg.RetryBackoffMax,
			Attempts: cfg.MaxRetries,
			OnRetry: func(attempt int, err error) {
				s.countRetry("option")
				s.log.Debug().Int("attempt", attempt).Err(err).Msg("retrying option selection")
			},
		},
		Settle: cfg.OptionSettle,
		Log:    s.log,
	}
	return s, nil
}

// Date returns the run date the scraper keys its save-states by.
func (s *Scraper) Date() string { return s.date }

// SelectRange returns the categories between start and end by name,
// inclusive, in source order. An empty bound is open. A bound naming no
// category is an error.
func SelectRange(categories []models.Category, start, end string) ([]models.Category, error) {
	first, last := 0, len(categories)-1
	if start != "" {
		first = indexOf(categories, start)
		if first < 0 {
			return nil, fmt.Errorf("start category %q not found", start)
		}
	}
	if end != "" {
		last = indexOf(categories, end)
		if last < 0 {
			return nil, fmt.Errorf("end category %q not found", end)
		}
	}
	if first > last {
		return nil, fmt.Errorf("start category %q comes after end category %q", start, end)
	}
	return categories[first : last+1], nil
}

func indexOf(categories []models.Category, name string) int {
	for i, c := range categories {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Run crawls the selected categories in windows of CategoryConcurrency.
// A window finishes completely before the next one starts. The first
// error aborts the run once its window has settled.
func (s *Scraper) Run(ctx context.Context, categories []models.Category) (*models.CrawlResult, error) {
	start := s.now()
	selected, err := SelectRange(categories, s.cfg.StartCategory, s.cfg.EndCategory)
	if err != nil {
		return s.result(start), err
	}

	s.log.Info().
		Str("date", s.date).
		Int("categories", len(selected)).
		Int("window", s.cfg.CategoryConcurrency).
		Msg("starting crawl")

	for w := 0; w < len(selected); w += s.cfg.CategoryConcurrency {
		if err := ctx.Err(); err != nil {
			return s.result(start), err
		}
		window := selected[w:min(w+s.cfg.CategoryConcurrency, len(selected))]

		var g errgroup.Group
		for _, category := range window {
			g.Go(func() error {
				return s.crawlCategory(ctx, category)
			})
		}
		if err := g.Wait(); err != nil {
			return s.result(start), err
		}
	}

	return s.result(start), nil
}

// crawlCategory pages through one category until a page lists no products.
func (s *Scraper) crawlCategory(ctx context.Context, category models.Category) error {
	log := s.log.With().Str("category", category.Name).Logger()

	state, err := s.loadCategory(ctx, category)
	if err != nil {
		return err
	}
	if state.Done {
		atomic.AddInt64(&s.categoriesSkipped, 1)
		log.Info().Int("pageno", state.PageNo).Msg("category already done, skipping")
		return nil
	}
	log.Info().Int("pageno", state.PageNo).Msg("category started")

	listing := s.site.Listing()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL := s.memo.PageURL(category.URL, listing.PageParam, state.PageNo)
		doc, err := s.listingPage(ctx, pageURL, listing.RenderListing)
		if err != nil {
			s.recordError(err)
			return fmt.Errorf("category %s page %d: %w", category.Name, state.PageNo, err)
		}

		count, err := doc.Count(ctx, listing.ProductSelector)
		if err != nil {
			return fmt.Errorf("count products on %s: %w", pageURL, err)
		}
		if count == 0 {
			state.Done = true
			if err := s.saveCategory(ctx, state); err != nil {
				return err
			}
			atomic.AddInt64(&s.categoriesDone, 1)
			log.Info().Int("pageno", state.PageNo).Msg("category done")
			return nil
		}

		log.Info().Int("pageno", state.PageNo).Int("products", count).Msg("crawling page")
		for _, chunk := range parser.Chunks(count, s.cfg.MinProductChunkSize, s.cfg.MaxProductChunkSize) {
			// Siblings are not cancelled when one fails; Wait reports the
			// first failure after all of them return.
			var g errgroup.Group
			for i := chunk.Start; i < chunk.End; i++ {
				g.Go(func() error {
					if err := s.crawlProduct(ctx, category, pageURL, i); err != nil {
						s.recordError(err)
						return err
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
		}

		atomic.AddInt64(&s.pageCount, 1)
		s.Metrics.IncPages()
		state.PageNo++
		if err := s.saveCategory(ctx, state); err != nil {
			return err
		}
	}
}

func (s *Scraper) listingPage(ctx context.Context, pageURL string, rendered bool) (*document.Static, error) {
	if rendered {
		return s.fetch.Rendered(ctx, pageURL)
	}
	return s.fetch.Fetch(ctx, pageURL)
}

func (s *Scraper) loadCategory(ctx context.Context, category models.Category) (*models.CategoryState, error) {
	fresh := &models.CategoryState{
		Sitename: s.site.Sitename(),
		Name:     category.Name,
		PageNo:   1,
		Date:     s.date,
	}
	if !s.cfg.UseCategorySaveStates {
		return fresh, nil
	}

	state, err := s.store.LoadCategory(ctx, fresh.Sitename, s.date, category.Name)
	if errors.Is(err, savestate.ErrNotFound) {
		return fresh, s.saveCategory(ctx, fresh)
	}
	if err != nil {
		return nil, err
	}
	if state.PageNo < 1 {
		state.PageNo = 1
	}
	return state, nil
}

func (s *Scraper) saveCategory(ctx context.Context, state *models.CategoryState) error {
	if !s.cfg.UseCategorySaveStates {
		return nil
	}
	if err := s.store.SaveCategory(ctx, state); err != nil {
		return fmt.Errorf("persist category %s: %w", state.Name, err)
	}
	return nil
}

func (s *Scraper) countRetry(kind string) {
	atomic.AddInt64(&s.retryCount, 1)
	s.Metrics.IncRetries(kind)
}

func (s *Scraper) recordError(err error) {
	label := errorTypeLabel(err)
	s.mu.Lock()
	s.errorsByType[label]++
	s.mu.Unlock()
	s.Metrics.IncError(label)
}

func (s *Scraper) result(start time.Time) *models.CrawlResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	errorsByType := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		errorsByType[k] = v
	}
	productRows := make(map[string]int, len(s.productRows))
	for k, v := range s.productRows {
		productRows[k] = v
	}

	return &models.CrawlResult{
		Site:              s.site.Sitename(),
		Date:              s.date,
		StartTime:         start,
		EndTime:           s.now(),
		CategoriesDone:    int(atomic.LoadInt64(&s.categoriesDone)),
		CategoriesSkipped: int(atomic.LoadInt64(&s.categoriesSkipped)),
		PageCount:         int(atomic.LoadInt64(&s.pageCount)),
		ProductsDone:      int(atomic.LoadInt64(&s.productsDone)),
		ProductsSkipped:   int(atomic.LoadInt64(&s.productsSkipped)),
		RowCount:          int(atomic.LoadInt64(&s.rowCount)),
		RetryCount:        int(atomic.LoadInt64(&s.retryCount)),
		ErrorsByType:      errorsByType,
		ProductRows:       productRows,
	}
}
