package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/aluiziolira/go-scrape-catalog/document"
)

// Chrome is a Browser backed by one Chrome process. Each Open creates a tab.
type Chrome struct {
	opts Options

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closeOnce     sync.Once
}

// NewChrome starts Chrome and returns once the browser is ready.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	if opts.WaitSelector == "" {
		opts.WaitSelector = DefaultWaitSelector
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}

	flags := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		flags = append(flags, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, flags...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run on a context starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Chrome{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Open navigates a new tab to url and waits for the wait selector.
func (c *Chrome) Open(ctx context.Context, url string) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	p := &chromePage{
		url:     url,
		tab:     tabCtx,
		cancel:  tabCancel,
		timeout: c.opts.NavigationTimeout,
	}

	runCtx, done := p.bind(ctx)
	defer done()
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(c.opts.WaitSelector, chromedp.ByQuery),
	); err != nil {
		p.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return p, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.browserCancel()
		c.allocCancel()
	})
	return nil
}

type chromePage struct {
	url     string
	tab     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	once    sync.Once
}

var _ Page = (*chromePage)(nil)

// bind derives a context from the tab that also honours the caller's
// cancellation and deadline, bounded by the page timeout.
func (p *chromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(p.tab, p.timeout)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() { cancelDeadline(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, done := p.bind(ctx)
	defer done()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) URL() string { return p.url }

type found[T any] struct {
	Found bool `json:"found"`
	Value T    `json:"value"`
}

// queryJS resolves a selector to the first element, or the root element
// for an empty selector.
const queryJS = `function(sel){ return sel ? document.querySelector(sel) : document.documentElement; }`
const queryAllJS = `function(sel){ return sel ? Array.from(document.querySelectorAll(sel)) : [document.documentElement]; }`

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func evalFirst[T any](ctx context.Context, p *chromePage, selector, body string) (T, error) {
	var out found[T]
	expr := fmt.Sprintf(`(function(){ const el = (%s)(%s); if (!el) { return {found: false}; } %s })()`,
		queryJS, quote(selector), body)
	if err := p.run(ctx, chromedp.Evaluate(expr, &out)); err != nil {
		var zero T
		return zero, fmt.Errorf("evaluate %q on %s: %w", selector, p.url, err)
	}
	if !out.Found {
		var zero T
		return zero, document.NotFound(selector)
	}
	return out.Value, nil
}

func evalAll[T any](ctx context.Context, p *chromePage, selector, mapper string) ([]T, error) {
	var out []T
	expr := fmt.Sprintf(`(%s)(%s)%s`, queryAllJS, quote(selector), mapper)
	if err := p.run(ctx, chromedp.Evaluate(expr, &out)); err != nil {
		return nil, fmt.Errorf("evaluate %q on %s: %w", selector, p.url, err)
	}
	return out, nil
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`(%s)(%s).length`, queryAllJS, quote(selector))
	if err := p.run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("count %q on %s: %w", selector, p.url, err)
	}
	return n, nil
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	return evalFirst[string](ctx, p, selector, `return {found: true, value: (el.textContent || "").trim()};`)
}

func (p *chromePage) Texts(ctx context.Context, selector string) ([]string, error) {
	return evalAll[string](ctx, p, selector, `.map(el => (el.textContent || "").trim())`)
}

func (p *chromePage) Attr(ctx context.Context, selector, name string) (string, error) {
	return evalFirst[string](ctx, p, selector, fmt.Sprintf(
		`const v = el.getAttribute(%s); return v === null ? {found: false} : {found: true, value: v.trim()};`, quote(name)))
}

func (p *chromePage) Attrs(ctx context.Context, selector, name string) ([]string, error) {
	return evalAll[string](ctx, p, selector, fmt.Sprintf(
		`.map(el => el.getAttribute(%s)).filter(v => v !== null).map(v => v.trim())`, quote(name)))
}

func (p *chromePage) HTML(ctx context.Context, selector string) (string, error) {
	return evalFirst[string](ctx, p, selector, `return {found: true, value: el.outerHTML};`)
}

func (p *chromePage) HTMLContent(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html of %s: %w", p.url, err)
	}
	return html, nil
}

func (p *chromePage) nodes(selector string, nodes *[]*cdp.Node) chromedp.Action {
	return chromedp.Nodes(selector, nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))
}

// ScrollIntoView scrolls every element matching selector into the viewport.
func (p *chromePage) ScrollIntoView(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	return p.run(ctx,
		p.nodes(selector, &nodes),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, n := range nodes {
				if err := dom.ScrollIntoViewIfNeeded().WithNodeID(n.NodeID).Do(ctx); err != nil {
					return fmt.Errorf("scroll %q: %w", selector, err)
				}
			}
			return nil
		}),
	)
}

// Focus focuses every element matching selector. Elements that cannot
// take focus are skipped.
func (p *chromePage) Focus(ctx context.Context, selector string) error {
	var nodes []*cdp.Node
	return p.run(ctx,
		p.nodes(selector, &nodes),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, n := range nodes {
				_ = dom.Focus().WithNodeID(n.NodeID).Do(ctx)
			}
			return nil
		}),
	)
}

func (p *chromePage) OptionValues(ctx context.Context, selector string) ([]SelectOption, error) {
	return evalFirst[[]SelectOption](ctx, p, selector,
		`return {found: true, value: Array.from(el.options || []).map(o => ({value: o.value, text: (o.textContent || "").trim()}))};`)
}

func (p *chromePage) SelectOption(ctx context.Context, selector, value string) error {
	_, err := evalFirst[bool](ctx, p, selector, fmt.Sprintf(
		`el.value = %s; el.dispatchEvent(new Event("change", {bubbles: true})); return {found: true, value: true};`, quote(value)))
	return err
}

func (p *chromePage) WaitStable(ctx context.Context, d time.Duration) error {
	return p.run(ctx, chromedp.Sleep(d), chromedp.WaitReady("body", chromedp.ByQuery))
}

// Close closes the tab. It is safe to call more than once.
func (p *chromePage) Close() error {
	p.once.Do(p.cancel)
	return nil
}
