package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// ShortFieldContext is the context width for titles and file names
	ShortFieldContext = 50
	// LongFieldContext is the context width for descriptions and body text
	LongFieldContext  = 100

	ellipsis = "..."
)

// termPattern compiles a case-insensitive literal matcher for term.
func termPattern(term string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
}

// GenerateSnippet returns an excerpt of text around the first
// case-insensitive occurrence of term, with every occurrence inside the
// excerpt wrapped in **bold** markers. Widths are counted in characters.
func GenerateSnippet(text, term string, contextLength int) string {
	if text == "" || term == "" {
		return ""
	}
	if contextLength < 0 {
		contextLength = 0
	}

	runes := []rune(text)
	pattern := termPattern(term)

	loc := pattern.FindStringIndex(text)
	if loc == nil {
		limit := contextLength * 2
		if len(runes) <= limit {
			return strings.TrimSpace(text)
		}
		return strings.TrimSpace(string(runes[:limit])) + ellipsis
	}

	matchStart := utf8.RuneCountInString(text[:loc[0]])
	matchEnd := matchStart + utf8.RuneCountInString(text[loc[0]:loc[1]])

	start := matchStart - contextLength
	if start < 0 {
		start = 0
	}
	end := matchEnd + contextLength
	if end > len(runes) {
		end = len(runes)
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = ellipsis + snippet
	}
	if end < len(runes) {
		snippet += ellipsis
	}

	highlighted := pattern.ReplaceAllStringFunc(snippet, func(m string) string {
		return "**" + m + "**"
	})
	return strings.TrimSpace(highlighted)
}

// truncate cuts s to max characters and marks the cut with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + ellipsis
}
