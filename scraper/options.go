package scraper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aluiziolira/go-scrape-catalog/browser"
	"github.com/aluiziolira/go-scrape-catalog/fetcher"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/retry"
)

// PriceOptionReader reads options whose selection changes the displayed
// price instead of carrying a "(+1,000원)" suffix.
type PriceOptionReader struct {
	Backoff retry.Backoff
	// Settle is how long to wait after a selection before re-reading.
	Settle time.Duration
	Log    zerolog.Logger
}

// UsesPriceMode reports whether raw option texts carry the delimiter.
func UsesPriceMode(spec OptionSpec, raw []string) bool {
	if spec.Selector == "" || spec.Delimiter == "" {
		return false
	}
	for _, r := range raw {
		if strings.Contains(r, spec.Delimiter) {
			return true
		}
	}
	return false
}

type priceGroup struct {
	price  int
	labels []string
	raws   []string
	sold   string
}

// Read selects every dropdown value, re-reads the price through readPrice
// and returns one option per distinct resulting price. Labels that share
// a price are comma-joined in first-seen order; the delta is measured
// against the price shown before any selection.
func (r PriceOptionReader) Read(
	ctx context.Context,
	page browser.Page,
	spec OptionSpec,
	ignore *regexp.Regexp,
	readPrice func(context.Context) (int, error),
) ([]parser.Option, error) {
	baseline, err := readPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("read baseline price: %w", err)
	}

	values, err := page.OptionValues(ctx, spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("read option values: %w", err)
	}

	var groups []*priceGroup
	byPrice := make(map[int]*priceGroup)
	changed := 0
	for _, v := range values {
		if v.Value == "" || (ignore != nil && ignore.MatchString(v.Text)) {
			continue
		}

		err := r.Backoff.Do(ctx, func(ctx context.Context) error {
			if err := page.SelectOption(ctx, spec.Selector, v.Value); err != nil {
				return err
			}
			return page.WaitStable(ctx, r.Settle)
		}, isTimeout)
		if err != nil {
			return nil, fmt.Errorf("select option %q: %w", v.Text, err)
		}

		price, err := readPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("read price for option %q: %w", v.Text, err)
		}

		label := parser.DecomposeOption(stripAnnotation(v.Text, spec.Delimiter), price).Label
		soldOut := parser.DecomposeOption(v.Text, price).SoldOut
		g, ok := byPrice[price]
		if !ok {
			g = &priceGroup{price: price}
			byPrice[price] = g
			groups = append(groups, g)
			if price != baseline {
				changed++
			}
		}
		g.labels = append(g.labels, label)
		g.raws = append(g.raws, v.Text)
		if g.sold == "" {
			g.sold = soldOut
		}
	}

	r.Log.Debug().
		Str("url", page.URL()).
		Int("values", len(values)).
		Int("changed_groups", changed).
		Int("unchanged_groups", len(groups)-changed).
		Msg("read price-changing options")

	options := make([]parser.Option, 0, len(groups))
	for _, g := range groups {
		options = append(options, parser.Option{
			Raw:           strings.Join(g.raws, ", "),
			Label:         strings.Join(g.labels, ", "),
			Delta:         g.price - baseline,
			HasDelta:      g.price != baseline,
			AdjustedPrice: g.price,
			SoldOut:       g.sold,
		})
	}
	return options, nil
}

func stripAnnotation(text, delimiter string) string {
	if i := strings.Index(text, delimiter); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || fetcher.ErrorType(err) == "timeout"
}
