package scraper

import (
	"context"

	"github.com/aluiziolira/go-scrape-catalog/browser"
	"github.com/aluiziolira/go-scrape-catalog/document"
)

// Listing describes how products appear on a category page.
type Listing struct {
	// ProductSelector matches one element per product.
	ProductSelector string
	// LinkSelector finds the detail anchor inside a product element.
	// Empty means the product element is the anchor.
	LinkSelector string
	// PageParam is the page-number query parameter, "page" when empty.
	PageParam string
	// RenderListing loads listing pages in the browser instead of over HTTP.
	RenderListing bool
}

// Table holds the price and attribute fields of a product page.
type Table struct {
	Price     int
	SalePrice int
	Delivery  string
	Quantity  string
	SoldOut   string
}

// Images is the detail-image gallery of a product page.
type Images struct {
	HTML    string
	Sources []string
	// Selector matches the gallery images; it is scrolled into view and
	// focused while sources are still inline placeholders.
	Selector string
}

// OptionSpec describes the option dropdown used in price-changing mode.
type OptionSpec struct {
	Selector string
	// Delimiter marks a price annotation inside option text, e.g. " - ".
	// Options whose text contains it are read by selecting each value.
	Delimiter string
	// Ignore matches placeholder entries such as "- 옵션 선택 -".
	Ignore string
}

// Site supplies the site-specific extractors run by the shared engine.
// Extractors read from a document.Document and return (value, error);
// the engine decides which failures are fatal.
type Site interface {
	Sitename() string
	Listing() Listing
	// ProductID derives a stable id from a detail URL.
	ProductID(rawURL string) (string, error)

	ProductName(ctx context.Context, doc document.Document) (string, error)
	// CategoryText returns ErrFieldUndefined when the site has no breadcrumb.
	CategoryText(ctx context.Context, doc document.Document) (string, error)
	Thumbnail(ctx context.Context, doc document.Document) (string, error)
	Table(ctx context.Context, doc document.Document) (Table, error)
	// Options returns raw option texts, placeholders removed.
	Options(ctx context.Context, doc document.Document) ([]string, error)
	DetailImages(ctx context.Context, doc document.Document) (Images, error)
	OptionSpec() OptionSpec
}

// Fetcher is the subset of *fetcher.Fetcher the engine uses.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*document.Static, error)
	Rendered(ctx context.Context, rawURL string) (*document.Static, error)
	Visit(ctx context.Context, rawURL string) (browser.Page, error)
}
