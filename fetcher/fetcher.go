// Package fetcher issues every storefront request of a crawl through one
// process-wide rate limiter, either as a plain HTTP fetch (colly) or as a
// browser navigation.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-catalog/browser"
	"github.com/aluiziolira/go-scrape-catalog/document"
	"github.com/aluiziolira/go-scrape-catalog/retry"
)

const (
	ModeFetch = "fetch"
	ModeVisit = "visit"

	cooldownPrefix = "scraper:cooldown:"
)

// Recorder observes fetch outcomes, typically for metrics.
type Recorder interface {
	ObserveFetch(mode string, d time.Duration, err error)
}

// Options configures a Fetcher.
type Options struct {
	RateLimit         int
	RequestTimeout    time.Duration
	NavigationTimeout time.Duration
	UserAgent         string
	CooldownTime      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration

	Browser   browser.Browser
	Cache     CacheService
	Recorder  Recorder
	Logger    zerolog.Logger
	Transport http.RoundTripper
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	opts      Options
	limiter   *rate.Limiter
	collector *colly.Collector
	backoff   retry.Backoff
	log       zerolog.Logger
}

// New builds a Fetcher. A nil Cache gets an in-memory cooldown cache.
func New(opts Options) (*Fetcher, error) {
	if opts.RateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}
	if opts.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive")
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = opts.RequestTimeout
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache(256, max(opts.CooldownTime, time.Second))
	}

	collector := colly.NewCollector(colly.AllowURLRevisit())
	if opts.UserAgent != "" {
		collector.UserAgent = opts.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(opts.RequestTimeout)
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.RequestTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	collector.WithTransport(transport)

	f := &Fetcher{
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateLimit),
		collector: collector,
		log:       opts.Logger,
	}
	f.backoff = retry.Backoff{
		Base:     opts.RetryBackoff,
		Max:      opts.RetryBackoffMax,
		Attempts: opts.MaxRetries,
		OnRetry: func(attempt int, err error) {
			f.log.Debug().Int("attempt", attempt).Err(err).Msg("retrying fetch")
		},
	}
	return f, nil
}

// Fetch retrieves rawURL over HTTP and parses it. Non-UTF-8 pages are
// decoded first. Timeouts and connection errors are retried with backoff.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*document.Static, error) {
	start := time.Now()
	var doc *document.Static
	err := f.backoff.Do(ctx, func(ctx context.Context) error {
		var err error
		doc, err = f.fetchOnce(ctx, rawURL)
		return err
	}, IsTransient)
	f.observe(ModeFetch, start, err)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Visit navigates the browser to rawURL. The caller owns the returned
// page and must close it.
func (f *Fetcher) Visit(ctx context.Context, rawURL string) (browser.Page, error) {
	start := time.Now()
	page, err := f.visit(ctx, rawURL)
	f.observe(ModeVisit, start, err)
	return page, err
}

// Rendered loads rawURL in the browser and returns a static snapshot of
// the rendered HTML.
func (f *Fetcher) Rendered(ctx context.Context, rawURL string) (*document.Static, error) {
	page, err := f.Visit(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	html, err := page.HTMLContent(ctx)
	if err != nil {
		return nil, &VisitError{URL: rawURL, Err: err}
	}
	return document.Parse(html, rawURL)
}

func (f *Fetcher) visit(ctx context.Context, rawURL string) (browser.Page, error) {
	if f.opts.Browser == nil {
		return nil, &VisitError{URL: rawURL, Err: errors.New("no browser configured")}
	}
	if err := f.acquire(ctx, rawURL); err != nil {
		return nil, &VisitError{URL: rawURL, Err: err}
	}

	navCtx, cancel := context.WithTimeout(ctx, f.opts.NavigationTimeout)
	defer cancel()

	page, err := f.opts.Browser.Open(navCtx, rawURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			err = ErrTimeout{Err: err}
		}
		return nil, &VisitError{URL: rawURL, Err: err}
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*document.Static, error) {
	if err := f.acquire(ctx, rawURL); err != nil {
		return nil, err
	}

	type outcome struct {
		body   []byte
		header http.Header
		status int
		err    error
	}
	done := make(chan outcome, 1)

	c := f.collector.Clone()
	go func() {
		var out outcome
		c.OnResponse(func(r *colly.Response) {
			out.body = r.Body
			out.status = r.StatusCode
			if r.Headers != nil {
				out.header = *r.Headers
			}
		})
		c.OnError(func(r *colly.Response, err error) {
			out.err = err
			if r != nil {
				out.status = r.StatusCode
			}
		})
		if err := c.Visit(rawURL); err != nil && out.err == nil {
			out.err = err
		}
		done <- out
	}()

	timer := time.NewTimer(f.opts.RequestTimeout)
	defer timer.Stop()

	var out outcome
	select {
	case <-ctx.Done():
		return nil, classifyError(ctx.Err(), 0)
	case <-timer.C:
		return nil, ErrTimeout{Err: fmt.Errorf("fetch %s: exceeded %s", rawURL, f.opts.RequestTimeout)}
	case out = <-done:
	}

	if out.err != nil || out.status >= http.StatusBadRequest {
		if out.status == http.StatusTooManyRequests {
			f.startCooldown(rawURL)
		}
		err := classifyError(out.err, out.status)
		if err == nil {
			err = fmt.Errorf("http status %d", out.status)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	body, err := decodeBody(out.body, out.header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return document.Parse(string(body), rawURL)
}

// acquire blocks on the shared limiter after checking the host cooldown.
func (f *Fetcher) acquire(ctx context.Context, rawURL string) error {
	if key := cooldownKey(rawURL); key != "" {
		if _, err := f.opts.Cache.Get(key); err == nil {
			return ErrRateLimited{Err: fmt.Errorf("host cooling down: %s", rawURL)}
		}
	}
	if err := f.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return classifyError(ctxErr, 0)
		}
		return ErrTimeout{Err: err}
	}
	return nil
}

func (f *Fetcher) startCooldown(rawURL string) {
	key := cooldownKey(rawURL)
	if key == "" || f.opts.CooldownTime <= 0 {
		return
	}
	if err := f.opts.Cache.Set(key, []byte(time.Now().Format(time.RFC3339)), f.opts.CooldownTime); err != nil {
		f.log.Warn().Err(err).Str("url", rawURL).Msg("failed to set cooldown")
		return
	}
	f.log.Warn().Str("url", rawURL).Dur("cooldown", f.opts.CooldownTime).Msg("rate limited, cooling down")
}

func (f *Fetcher) observe(mode string, start time.Time, err error) {
	if f.opts.Recorder != nil {
		f.opts.Recorder.ObserveFetch(mode, time.Since(start), err)
	}
}

func cooldownKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return cooldownPrefix + u.Host
}

// decodeBody converts a non-UTF-8 body (EUC-KR storefronts) to UTF-8.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	if utf8.Valid(body) {
		return body, nil
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body, nil
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, enc.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
