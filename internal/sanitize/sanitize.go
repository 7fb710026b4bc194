// Package sanitize cleans free text before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict        = bluemonday.StrictPolicy()
	octets        = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	blankRun      = regexp.MustCompile(`[ \t]+`)
	blankLineRun  = regexp.MustCompile(`\n{3,}`)
	scriptOrStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*?>.*?</(script|style)>`)
)

// TextField strips markup, control characters, line breaks and
// percent-encoded octets, collapses whitespace and trims the result.
func TextField(s string) string {
	s = clean(s)
	s = strings.Join(strings.Fields(s), " ")
	return s
}

// TextareaField behaves like TextField but keeps line breaks.
func TextareaField(s string) string {
	s = clean(s)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(blankRun.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func clean(s string) string {
	if !utf8.ValidString(s) {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = scriptOrStyle.ReplaceAllString(s, "")
	s = html.UnescapeString(strict.Sanitize(s))
	// A lone "<" that bluemonday left as text is still unsafe to store.
	s = strings.ReplaceAll(s, "<", "&lt;")
	return octets.ReplaceAllString(s, "")
}
