package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/aluiziolira/go-scrape-catalog/browser"
	"github.com/aluiziolira/go-scrape-catalog/document"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/retry"
	"github.com/aluiziolira/go-scrape-catalog/savestate"
)

// NotPresent replaces a detail-image gallery that could not be read.
const NotPresent = "NOT PRESENT"

// categoryOptional is implemented by sites whose breadcrumb may be missing.
type categoryOptional interface {
	CategoryRequired() bool
}

// productFields are the extracted values of one detail page.
type productFields struct {
	name     string
	category string
	thumb    string
	table    Table
	options  []parser.Option
	images   string
}

// crawlProduct extracts the index-th product of a listing page and
// hands its rows to the sink. The detail page is closed on every path.
func (s *Scraper) crawlProduct(ctx context.Context, category models.Category, pageURL string, index int) error {
	link, err := s.productLink(ctx, pageURL, index)
	if err != nil {
		return err
	}

	id, err := s.site.ProductID(link)
	if err != nil {
		return &ProductError{URL: link, Field: "product id", Err: err}
	}
	log := s.log.With().Str("category", category.Name).Str("product_id", id).Logger()

	state := &models.ProductState{
		Sitename:     s.site.Sitename(),
		ProductID:    id,
		CategoryName: category.Name,
		Date:         s.date,
	}
	if s.cfg.UseProductSaveStates {
		loaded, err := s.store.LoadProduct(ctx, state.Sitename, s.date, category.Name, id)
		switch {
		case err == nil && loaded.Done:
			atomic.AddInt64(&s.productsSkipped, 1)
			s.Metrics.IncProducts("skipped")
			log.Debug().Msg("product already done, skipping")
			return nil
		case err != nil && !errors.Is(err, savestate.ErrNotFound):
			return &ProductError{URL: link, Field: "save-state", Err: err}
		}
	}

	page, err := s.fetch.Visit(ctx, link)
	if err != nil {
		return &ProductError{URL: link, Err: err}
	}
	defer page.Close()

	if s.cfg.SaveRawHTML {
		if err := s.saveRawHTML(ctx, page, id); err != nil {
			log.Warn().Err(err).Msg("could not archive raw html")
		}
	}

	fields, err := s.extract(ctx, page)
	if err != nil {
		return &ProductError{URL: link, Err: err}
	}

	rows := s.buildRows(category, link, id, fields)
	n, err := s.sink.Process(rows)
	if err != nil {
		return &ProductError{URL: link, Field: "output", Err: err}
	}
	if n < len(rows) {
		log.Warn().Int("rows", len(rows)).Int("written", n).Msg("sink dropped rows")
	}

	atomic.AddInt64(&s.rowCount, int64(n))
	atomic.AddInt64(&s.productsDone, 1)
	s.Metrics.AddRows(n)
	s.Metrics.IncProducts("done")
	s.mu.Lock()
	s.productRows[id] = n
	s.mu.Unlock()

	state.Done = true
	if s.cfg.UseProductSaveStates {
		if err := s.store.SaveProduct(ctx, state); err != nil {
			return &ProductError{URL: link, Field: "save-state", Err: err}
		}
	}
	log.Info().Int("rows", n).Int("options", len(fields.options)).Msg("product crawled")
	return nil
}

// productLink re-reads the listing and resolves the index-th product link,
// falling back to a browser-rendered listing once.
func (s *Scraper) productLink(ctx context.Context, pageURL string, index int) (string, error) {
	listing := s.site.Listing()
	link, err := s.resolveLink(ctx, pageURL, index, listing.RenderListing)
	if err == nil {
		return link, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	s.log.Debug().Err(err).Str("url", pageURL).Int("index", index).Msg("static link lookup failed, rendering listing")

	link, err = s.resolveLink(ctx, pageURL, index, true)
	if err != nil {
		return "", &ProductLinkError{ListingURL: pageURL, Index: index, Err: err}
	}
	return link, nil
}

func (s *Scraper) resolveLink(ctx context.Context, pageURL string, index int, rendered bool) (string, error) {
	listing := s.site.Listing()
	doc, err := s.listingPage(ctx, pageURL, rendered)
	if err != nil {
		return "", err
	}
	item, err := doc.Nth(listing.ProductSelector, index)
	if err != nil {
		return "", err
	}
	href, err := item.Attr(ctx, listing.LinkSelector, "href")
	if err != nil {
		return "", err
	}
	return item.Resolve(href)
}

// extract runs the field extractors concurrently and applies the
// failure policy: name, table, options and (unless the site opts out)
// category are fatal; thumbnail degrades to ""; images degrade to
// NotPresent unless inline placeholders survived every retry.
func (s *Scraper) extract(ctx context.Context, page browser.Page) (*productFields, error) {
	var (
		f                                   productFields
		nameErr, catErr, thumbErr, tableErr error
		optErr, imgErr                      error
		rawOptions                          []string
		images                              Images
		wg                                  sync.WaitGroup
	)

	wg.Go(func() { f.name, nameErr = s.site.ProductName(ctx, page) })
	wg.Go(func() { f.category, catErr = s.site.CategoryText(ctx, page) })
	wg.Go(func() { f.thumb, thumbErr = s.site.Thumbnail(ctx, page) })
	wg.Go(func() { f.table, tableErr = s.site.Table(ctx, page) })
	wg.Go(func() { rawOptions, optErr = s.site.Options(ctx, page) })
	wg.Go(func() { images, imgErr = s.detailImages(ctx, page) })
	wg.Wait()

	if nameErr == nil && f.name == "" {
		nameErr = document.NotFound("name")
	}
	if nameErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNameNotFound, nameErr)
	}
	if tableErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrTableNotFound, tableErr)
	}
	if catErr != nil {
		if errors.Is(catErr, ErrFieldUndefined) || !s.categoryRequired() {
			f.category = ""
		} else {
			return nil, fmt.Errorf("%w: %w", ErrCategoryNotFound, catErr)
		}
	}
	if thumbErr != nil {
		s.log.Debug().Err(thumbErr).Str("url", page.URL()).Msg("thumbnail missing")
		f.thumb = ""
	}
	switch {
	case imgErr == nil:
		f.images = images.HTML
	case retry.IsExhausted(imgErr):
		return nil, fmt.Errorf("detail images: %w", imgErr)
	default:
		s.log.Debug().Err(imgErr).Str("url", page.URL()).Msg("detail images missing")
		f.images = NotPresent
	}
	if optErr != nil {
		return nil, fmt.Errorf("options: %w", optErr)
	}

	options, err := s.decomposeOptions(ctx, page, rawOptions, f.table)
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	f.options = options
	return &f, nil
}

// detailImages reads the gallery, scrolling it into view while its
// sources are still inline placeholders.
func (s *Scraper) detailImages(ctx context.Context, page browser.Page) (Images, error) {
	var selector string
	return retry.Until(ctx,
		func(ctx context.Context) (Images, error) {
			images, err := s.site.DetailImages(ctx, page)
			selector = images.Selector
			return images, err
		},
		func(images Images) bool { return retry.AnyInline(images.Sources) },
		func(ctx context.Context) error {
			s.countRetry("inline_image")
			if selector == "" {
				return nil
			}
			if err := page.ScrollIntoView(ctx, selector); err != nil {
				return err
			}
			return page.Focus(ctx, selector)
		},
		s.cfg.ImageMaxTries,
	)
}

func (s *Scraper) decomposeOptions(ctx context.Context, page browser.Page, raw []string, table Table) ([]parser.Option, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	base := effectivePrice(table)

	spec := s.site.OptionSpec()
	if UsesPriceMode(spec, raw) {
		var ignore *regexp.Regexp
		if spec.Ignore != "" {
			var err error
			if ignore, err = s.memo.Regexp(spec.Ignore); err != nil {
				return nil, err
			}
		}
		return s.options.Read(ctx, page, spec, ignore, func(ctx context.Context) (int, error) {
			t, err := s.site.Table(ctx, page)
			if err != nil {
				return 0, err
			}
			return effectivePrice(t), nil
		})
	}

	options := make([]parser.Option, 0, len(raw))
	for _, r := range raw {
		options = append(options, parser.DecomposeOption(r, base))
	}
	return options, nil
}

func effectivePrice(t Table) int {
	if t.SalePrice > 0 {
		return t.SalePrice
	}
	return t.Price
}

func (s *Scraper) categoryRequired() bool {
	if o, ok := s.site.(categoryOptional); ok {
		return o.CategoryRequired()
	}
	return true
}

// buildRows emits one row per option, or a single row without option
// fields when the product has none.
func (s *Scraper) buildRows(category models.Category, link, id string, f *productFields) []*models.CrawlRow {
	categoryPath := f.category
	if categoryPath == "" {
		categoryPath = category.Name
	}
	now := s.now()
	base := models.CrawlRow{
		Category:     categoryPath,
		Listing:      category.Name,
		URL:          link,
		ProductID:    id,
		Name:         f.name,
		Thumbnail:    f.thumb,
		Price:        f.table.Price,
		SalePrice:    f.table.SalePrice,
		Delivery:     f.table.Delivery,
		Quantity:     f.table.Quantity,
		SoldOut:      f.table.SoldOut,
		DetailImages: f.images,
		CrawledAt:    now,
	}

	if len(f.options) == 0 {
		row := base
		return []*models.CrawlRow{&row}
	}

	rows := make([]*models.CrawlRow, 0, len(f.options))
	for _, opt := range f.options {
		row := base
		row.OptionLabel = opt.Label
		row.OptionPrice = opt.AdjustedPriceText()
		row.OptionDelta = opt.DeltaText()
		if opt.SoldOut != "" {
			row.SoldOut = opt.SoldOut
		}
		rows = append(rows, &row)
	}
	return rows
}

// saveRawHTML archives the rendered detail page under
// <StateDir>/raw/<site>/<date>/<productid>.html.
func (s *Scraper) saveRawHTML(ctx context.Context, page browser.Page, id string) error {
	html, err := page.HTMLContent(ctx)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.cfg.StateDir, "raw", s.site.Sitename(), s.date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return os.WriteFile(filepath.Join(dir, rawName(id)+".html"), []byte(html), 0o644)
}

var unsafeRawName = regexp.MustCompile(`[^\p{L}\p{N}._-]`)

func rawName(id string) string {
	return unsafeRawName.ReplaceAllString(id, "_")
}
