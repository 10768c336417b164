package parser

import (
	"fmt"
	"regexp"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds each memo table.
const DefaultMemoSize = 4096

// Memo caches compiled patterns and computed page URLs for a crawl run.
// Inputs never change during a run, so entries are never invalidated.
type Memo struct {
	patterns *lru.Cache[string, *regexp.Regexp]
	pages    *lru.Cache[string, string]
}

// NewMemo builds a memo with the given per-table capacity.
func NewMemo(size int) (*Memo, error) {
	if size <= 0 {
		size = DefaultMemoSize
	}
	patterns, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("create pattern cache: %w", err)
	}
	pages, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create page url cache: %w", err)
	}
	return &Memo{patterns: patterns, pages: pages}, nil
}

// Regexp returns the compiled pattern, compiling it once.
func (m *Memo) Regexp(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	m.patterns.Add(pattern, re)
	return re, nil
}

// PageURL is the memoized form of PageURL.
func (m *Memo) PageURL(raw, param string, n int) string {
	if param == "" {
		param = DefaultPageParam
	}
	key := raw + "\x00" + param + "\x00" + strconv.Itoa(n)
	if u, ok := m.pages.Get(key); ok {
		return u
	}
	re, err := m.Regexp(pageParamPattern(param))
	if err != nil {
		// QuoteMeta keeps the pattern valid.
		panic(err)
	}
	u := pageURL(re, raw, param, n)
	m.pages.Add(key, u)
	return u
}

// Len reports the number of cached entries.
func (m *Memo) Len() int {
	return m.patterns.Len() + m.pages.Len()
}

// Purge drops every cached entry.
func (m *Memo) Purge() {
	m.patterns.Purge()
	m.pages.Purge()
}
