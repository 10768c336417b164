package document

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var errEmptyDocument = errors.New("empty document")

// Static is a Document backed by a goquery selection.
type Static struct {
	url string
	sel *goquery.Selection
}

// Parse builds a Static document from HTML fetched from pageURL.
func Parse(html, pageURL string) (*Static, error) {
	if strings.TrimSpace(html) == "" {
		return nil, &HTMLParsingError{URL: pageURL, Err: errEmptyDocument}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &HTMLParsingError{URL: pageURL, Err: err}
	}
	return &Static{url: pageURL, sel: doc.Selection}, nil
}

// FromSelection wraps an existing goquery selection.
func FromSelection(sel *goquery.Selection, pageURL string) *Static {
	return &Static{url: pageURL, sel: sel}
}

// URL returns the address the document was loaded from.
func (s *Static) URL() string { return s.url }

// Nth scopes the document to the i-th match of selector.
func (s *Static) Nth(selector string, i int) (*Static, error) {
	matches := s.find(selector)
	if i < 0 || i >= matches.Length() {
		return nil, fmt.Errorf("%w: %q[%d] of %d", ErrNotFound, selector, i, matches.Length())
	}
	return &Static{url: s.url, sel: matches.Eq(i)}, nil
}

// Resolve turns a possibly relative reference into an absolute URL.
func (s *Static) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", NotFound("href")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", s.url, err)
	}
	return base.ResolveReference(u).String(), nil
}

func (s *Static) Count(_ context.Context, selector string) (int, error) {
	return s.find(selector).Length(), nil
}

func (s *Static) Text(_ context.Context, selector string) (string, error) {
	matches := s.find(selector)
	if matches.Length() == 0 {
		return "", NotFound(selector)
	}
	return strings.TrimSpace(matches.First().Text()), nil
}

func (s *Static) Texts(_ context.Context, selector string) ([]string, error) {
	matches := s.find(selector)
	texts := make([]string, 0, matches.Length())
	matches.Each(func(_ int, el *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(el.Text()))
	})
	return texts, nil
}

func (s *Static) Attr(_ context.Context, selector, name string) (string, error) {
	matches := s.find(selector)
	if matches.Length() == 0 {
		return "", NotFound(selector)
	}
	v, ok := matches.First().Attr(name)
	if !ok {
		return "", fmt.Errorf("%w: %q@%s", ErrNotFound, selector, name)
	}
	return strings.TrimSpace(v), nil
}

func (s *Static) Attrs(_ context.Context, selector, name string) ([]string, error) {
	var values []string
	s.find(selector).Each(func(_ int, el *goquery.Selection) {
		if v, ok := el.Attr(name); ok {
			values = append(values, strings.TrimSpace(v))
		}
	})
	return values, nil
}

func (s *Static) HTML(_ context.Context, selector string) (string, error) {
	matches := s.find(selector)
	if matches.Length() == 0 {
		return "", NotFound(selector)
	}
	html, err := goquery.OuterHtml(matches.First())
	if err != nil {
		return "", fmt.Errorf("render %q: %w", selector, err)
	}
	return html, nil
}

func (s *Static) find(selector string) *goquery.Selection {
	if selector == "" {
		return s.sel
	}
	return s.sel.Find(selector)
}
