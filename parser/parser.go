package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

var (
	// ErrNoPrice is returned when a text contains no digits to read as a price.
	ErrNoPrice = errors.New("no price in text")
	// ErrNoProductID is returned when a product URL does not match the site pattern.
	ErrNoProductID = errors.New("product id not found in url")
)

var priceDigits = regexp.MustCompile(`\d[\d,]*`)

// ValidateRow ensures the scraper captured the required fields.
func ValidateRow(r *models.CrawlRow) error {
	if r == nil {
		return fmt.Errorf("row is nil")
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("row missing url")
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return fmt.Errorf("row missing product id for %s", r.URL)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("row missing name for %s", r.URL)
	}
	if r.Price < 0 {
		return fmt.Errorf("row has negative price for %s", r.URL)
	}
	return nil
}

// NormalizePrice removes the currency marker, thousands separators and surrounding whitespace.
func NormalizePrice(price string) string {
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, "원", "")
	price = strings.ReplaceAll(price, "₩", "")
	price = strings.ReplaceAll(price, ",", "")
	return strings.TrimSpace(price)
}

// NormalizeText collapses runs of whitespace into single spaces.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ParsePrice reads the first number in text, e.g. "판매가 12,900원" -> 12900.
func ParsePrice(text string) (int, error) {
	match := priceDigits.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("%w: %q", ErrNoPrice, text)
	}
	return MustPrice(match), nil
}

// MustPrice converts captured numeric text like "1,000" to an int.
// It panics when the text is not a number: callers only pass text a
// digit pattern has already matched.
func MustPrice(text string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	if err != nil {
		panic(fmt.Sprintf("parser: malformed price text %q: %v", text, err))
	}
	return n
}

// ProductID extracts a stable product id from a detail URL. When the
// pattern has a capture group the first group is the id.
func ProductID(rawURL string, re *regexp.Regexp) (string, error) {
	if re == nil {
		return "", fmt.Errorf("%w: no pattern for %s", ErrNoProductID, rawURL)
	}
	m := re.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrNoProductID, rawURL)
	}
	if len(m) > 1 && m[1] != "" {
		return m[1], nil
	}
	return m[0], nil
}
