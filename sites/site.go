package sites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/document"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
)

const soldOutMarker = "품절"

// SelectorSite is a scraper.Site driven entirely by a Config.
type SelectorSite struct {
	cfg       Config
	productID *regexp.Regexp
	ignore    *regexp.Regexp
}

var _ scraper.Site = (*SelectorSite)(nil)

// New validates cfg and compiles its patterns.
func New(cfg Config) (*SelectorSite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &SelectorSite{cfg: cfg}
	s.productID = regexp.MustCompile(cfg.ProductIDPattern)
	if cfg.Options.Ignore != "" {
		s.ignore = regexp.MustCompile(cfg.Options.Ignore)
	}
	if s.cfg.CategorySep == "" {
		s.cfg.CategorySep = " > "
	}
	if s.cfg.ImageAttr == "" {
		s.cfg.ImageAttr = "src"
	}
	return s, nil
}

// Config returns the resolved configuration.
func (s *SelectorSite) Config() Config { return s.cfg }

func (s *SelectorSite) Sitename() string { return s.cfg.Name }

func (s *SelectorSite) Listing() scraper.Listing {
	return scraper.Listing{
		ProductSelector: s.cfg.Selectors.Product,
		LinkSelector:    s.cfg.Selectors.Link,
		PageParam:       s.cfg.PageParam,
		RenderListing:   s.cfg.RenderListing,
	}
}

func (s *SelectorSite) OptionSpec() scraper.OptionSpec {
	return scraper.OptionSpec{
		Selector:  s.cfg.Options.Dropdown,
		Delimiter: s.cfg.Options.Delimiter,
		Ignore:    s.cfg.Options.Ignore,
	}
}

// CategoryRequired is false for sites configured with category_optional.
func (s *SelectorSite) CategoryRequired() bool { return !s.cfg.CategoryOptional }

func (s *SelectorSite) ProductID(rawURL string) (string, error) {
	return parser.ProductID(rawURL, s.productID)
}

func (s *SelectorSite) ProductName(ctx context.Context, doc document.Document) (string, error) {
	name, err := doc.Text(ctx, s.cfg.Selectors.Name)
	if err != nil {
		return "", err
	}
	return parser.NormalizeText(name), nil
}

// CategoryText joins the breadcrumb entries with CategorySep.
func (s *SelectorSite) CategoryText(ctx context.Context, doc document.Document) (string, error) {
	if s.cfg.Selectors.Category == "" {
		return "", scraper.ErrFieldUndefined
	}
	texts, err := doc.Texts(ctx, s.cfg.Selectors.Category)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = parser.NormalizeText(t); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", document.NotFound(s.cfg.Selectors.Category)
	}
	return strings.Join(parts, s.cfg.CategorySep), nil
}

func (s *SelectorSite) Thumbnail(ctx context.Context, doc document.Document) (string, error) {
	if s.cfg.Selectors.Thumbnail == "" {
		return "", scraper.ErrFieldUndefined
	}
	src, err := doc.Attr(ctx, s.cfg.Selectors.Thumbnail, "src")
	if err != nil {
		return "", err
	}
	return absolute(doc.URL(), src)
}

// Table reads the price block. Only the price is required; the other
// fields are empty when their selector is unset or matches nothing.
func (s *SelectorSite) Table(ctx context.Context, doc document.Document) (scraper.Table, error) {
	var t scraper.Table

	text, err := doc.Text(ctx, s.cfg.Selectors.Price)
	if err != nil {
		return t, err
	}
	if t.Price, err = parser.ParsePrice(text); err != nil {
		return t, fmt.Errorf("price %q: %w", s.cfg.Selectors.Price, err)
	}

	sale, err := s.optionalText(ctx, doc, s.cfg.Selectors.SalePrice)
	if err != nil {
		return t, err
	}
	// A sale block without digits shows no discount.
	if p, err := parser.ParsePrice(sale); err == nil && p != t.Price {
		t.SalePrice = p
	}
	if t.Delivery, err = s.optionalText(ctx, doc, s.cfg.Selectors.Delivery); err != nil {
		return t, err
	}
	if t.Quantity, err = s.optionalText(ctx, doc, s.cfg.Selectors.Quantity); err != nil {
		return t, err
	}
	if s.cfg.Selectors.SoldOut != "" {
		n, err := doc.Count(ctx, s.cfg.Selectors.SoldOut)
		if err != nil {
			return t, err
		}
		if n > 0 {
			t.SoldOut = soldOutMarker
		}
	}
	return t, nil
}

func (s *SelectorSite) optionalText(ctx context.Context, doc document.Document, selector string) (string, error) {
	if selector == "" {
		return "", nil
	}
	text, err := doc.Text(ctx, selector)
	if errors.Is(err, document.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		// Form fields carry their text in value.
		if v, err := doc.Attr(ctx, selector, "value"); err == nil {
			text = v
		}
	}
	return parser.NormalizeText(text), nil
}

// Options returns the dropdown entries minus placeholders.
func (s *SelectorSite) Options(ctx context.Context, doc document.Document) ([]string, error) {
	if s.cfg.Selectors.Option == "" {
		return nil, nil
	}
	texts, err := doc.Texts(ctx, s.cfg.Selectors.Option)
	if err != nil {
		return nil, err
	}
	options := make([]string, 0, len(texts))
	for _, t := range texts {
		t = parser.NormalizeText(t)
		if t == "" || (s.ignore != nil && s.ignore.MatchString(t)) {
			continue
		}
		options = append(options, t)
	}
	return options, nil
}

// DetailImages returns the gallery HTML and the source of every image in
// it. Lazy-loading skins keep the real URL in ImageAttr; src is used when
// that attribute is absent.
func (s *SelectorSite) DetailImages(ctx context.Context, doc document.Document) (scraper.Images, error) {
	if s.cfg.Selectors.DetailImages == "" {
		return scraper.Images{}, scraper.ErrFieldUndefined
	}
	html, err := doc.HTML(ctx, s.cfg.Selectors.DetailImages)
	if err != nil {
		return scraper.Images{}, err
	}
	imgSel := s.cfg.Selectors.DetailImage
	if imgSel == "" {
		imgSel = s.cfg.Selectors.DetailImages + " img"
	}

	sources, err := doc.Attrs(ctx, imgSel, s.cfg.ImageAttr)
	if err != nil {
		return scraper.Images{}, err
	}
	if len(sources) == 0 && s.cfg.ImageAttr != "src" {
		if sources, err = doc.Attrs(ctx, imgSel, "src"); err != nil {
			return scraper.Images{}, err
		}
	}
	return scraper.Images{HTML: html, Sources: sources, Selector: imgSel}, nil
}

func absolute(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	return b.ResolveReference(u).String(), nil
}
