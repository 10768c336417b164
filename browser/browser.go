// Package browser drives a headless Chrome through chromedp and exposes
// each open tab as a live document.Document.
package browser

import (
	"context"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/document"
)

// DefaultWaitSelector is the element awaited after navigation.
const DefaultWaitSelector = "body"

// SelectOption is one entry of a <select> dropdown.
type SelectOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Page is a live tab. It is owned by the caller that opened it and must
// be closed by that caller.
type Page interface {
	document.Document
	HTMLContent(ctx context.Context) (string, error)
	ScrollIntoView(ctx context.Context, selector string) error
	Focus(ctx context.Context, selector string) error
	OptionValues(ctx context.Context, selector string) ([]SelectOption, error)
	SelectOption(ctx context.Context, selector, value string) error
	WaitStable(ctx context.Context, d time.Duration) error
	Close() error
}

// Browser opens pages.
type Browser interface {
	Open(ctx context.Context, url string) (Page, error)
	Close() error
}

// Options configures the Chrome browser.
type Options struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	WaitSelector      string
}
