// Package sanitize cleans user-supplied post and profile text before it is
// stored. Posts are plain text: markup is stripped, not rendered, and the
// templ pages escape on output.
package sanitize

import (
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict     *bluemonday.Policy
	strictOnce sync.Once
)

func strictPolicy() *bluemonday.Policy {
	strictOnce.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// Text removes every HTML element from input and returns the remaining
// text with entities decoded, so "Tom & Jerry" survives unchanged while
// "<b>hi</b><script>x()</script>" becomes "hi".
func Text(input string) string {
	if input == "" {
		return ""
	}
	return html.UnescapeString(strictPolicy().Sanitize(input))
}

// Username strips markup and surrounding whitespace from a display name.
func Username(input string) string {
	return strings.TrimSpace(Text(input))
}

// ImageURL accepts only absolute http(s) URLs. Anything else (javascript:,
// data:, relative paths) is rejected so stored image links are always safe
// to place in an img src.
func ImageURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.String(), true
	}
	return "", false
}
