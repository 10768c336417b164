// Package document exposes a small query capability over HTML content.
// Extractors depend on Document only; a parsed static page and a live
// browser tab both satisfy it.
package document

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a selector or attribute matches nothing.
var ErrNotFound = errors.New("element not found")

// Document is the query surface shared by static and live pages.
// An empty selector addresses the document (or scoped element) itself.
type Document interface {
	URL() string
	Count(ctx context.Context, selector string) (int, error)
	Text(ctx context.Context, selector string) (string, error)
	Texts(ctx context.Context, selector string) ([]string, error)
	Attr(ctx context.Context, selector, name string) (string, error)
	Attrs(ctx context.Context, selector, name string) ([]string, error)
	HTML(ctx context.Context, selector string) (string, error)
}

// HTMLParsingError reports content that could not be turned into a Document.
type HTMLParsingError struct {
	URL string
	Err error
}

func (e *HTMLParsingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse html %s", e.URL)
	}
	return fmt.Sprintf("parse html %s: %v", e.URL, e.Err)
}

func (e *HTMLParsingError) Unwrap() error {
	return e.Err
}

// NotFound wraps ErrNotFound with the selector that missed.
func NotFound(selector string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, selector)
}
