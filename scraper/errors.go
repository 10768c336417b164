package scraper

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-catalog/document"
	"github.com/aluiziolira/go-scrape-catalog/fetcher"
	"github.com/aluiziolira/go-scrape-catalog/retry"
)

var (
	// ErrFieldUndefined is returned by a Site extractor for a field the
	// site does not expose. It is never fatal.
	ErrFieldUndefined = errors.New("field not defined for site")
	// ErrNameNotFound is fatal: every product must have a name.
	ErrNameNotFound = errors.New("product name not found")
	// ErrTableNotFound is fatal: every product must have a price table.
	ErrTableNotFound = errors.New("price table not found")
	// ErrCategoryNotFound is fatal when the site declares category text.
	ErrCategoryNotFound = errors.New("category text not found")
	// ErrProductLinkNotFound is matched by every *ProductLinkError.
	ErrProductLinkNotFound = errors.New("product link not found")
)

// ProductLinkError reports a product element whose detail link could not
// be resolved from either the static or the rendered listing.
type ProductLinkError struct {
	ListingURL string
	Index      int
	Err        error
}

func (e *ProductLinkError) Error() string {
	return fmt.Sprintf("%v: %s [%d]: %v", ErrProductLinkNotFound, e.ListingURL, e.Index, e.Err)
}

func (e *ProductLinkError) Unwrap() []error {
	return []error{ErrProductLinkNotFound, e.Err}
}

// ProductError ties a fatal extraction failure to the product URL.
type ProductError struct {
	URL   string
	Field string
	Err   error
}

func (e *ProductError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("product %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("product %s: %s: %v", e.URL, e.Field, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// FailedURL returns the URL most closely tied to err, or "".
func FailedURL(err error) string {
	var product *ProductError
	if errors.As(err, &product) {
		return product.URL
	}
	var link *ProductLinkError
	if errors.As(err, &link) {
		return link.ListingURL
	}
	var visit *fetcher.VisitError
	if errors.As(err, &visit) {
		return visit.URL
	}
	var parse *document.HTMLParsingError
	if errors.As(err, &parse) {
		return parse.URL
	}
	return ""
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var link *ProductLinkError
	switch {
	case errors.As(err, &link):
		return "product_link"
	case errors.Is(err, ErrNameNotFound):
		return "name"
	case errors.Is(err, ErrTableNotFound):
		return "table"
	case errors.Is(err, ErrCategoryNotFound):
		return "category"
	case retry.IsExhausted(err):
		return "inline_image"
	}
	var parse *document.HTMLParsingError
	if errors.As(err, &parse) {
		return "html_parsing"
	}
	return fetcher.ErrorType(err)
}
