package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultPageParam is the query parameter carrying the page number.
const DefaultPageParam = "page"

func pageParamPattern(param string) string {
	return `([?&])` + regexp.QuoteMeta(param) + `=([^&#]*)`
}

// PageURL returns raw with its page parameter set to n. Both "?page=" and
// "&page=" forms are substituted in place; a URL without the parameter
// gets it appended ahead of any fragment.
func PageURL(raw, param string, n int) string {
	if param == "" {
		param = DefaultPageParam
	}
	return pageURL(regexp.MustCompile(pageParamPattern(param)), raw, param, n)
}

// PageNumber reads the page parameter back out of a URL.
func PageNumber(raw, param string) (int, bool) {
	if param == "" {
		param = DefaultPageParam
	}
	return pageNumber(regexp.MustCompile(pageParamPattern(param)), raw)
}

func pageURL(re *regexp.Regexp, raw, param string, n int) string {
	value := strconv.Itoa(n)
	if loc := re.FindStringSubmatchIndex(raw); loc != nil {
		// loc[4:6] spans the parameter value.
		return raw[:loc[4]] + value + raw[loc[5]:]
	}

	base, fragment := raw, ""
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		base, fragment = raw[:i], raw[i:]
	}
	switch {
	case !strings.Contains(base, "?"):
		base += "?"
	case !strings.HasSuffix(base, "?") && !strings.HasSuffix(base, "&"):
		base += "&"
	}
	return base + param + "=" + value + fragment
}

func pageNumber(re *regexp.Regexp, raw string) (int, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return n, true
}
