package normalize

import (
	"strings"
	"unicode"
)

// Text collapses runs of whitespace into single spaces, trims the ends,
// and removes control characters. Scraped hours and access fields often
// carry embedded newlines and tabs from the page markup.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// TruncateText shortens s to at most max runes, appending "..." when
// anything was cut. A max of zero or less means no limit.
func TruncateText(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
