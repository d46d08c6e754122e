// Package markup converts raw message text into safe, link-annotated HTML.
// The conversion is pure and total: it never fails, whatever the input.
package markup

import (
	"html"
	"regexp"
	"strings"
)

// urlPattern matches http/https/ftp URLs with a dotted host ending in a
// 2-3 letter TLD, an optional port and an optional path/query. Substrings
// that only come close are left as plain text.
var urlPattern = regexp.MustCompile(
	`(?i)(?:http|https|ftp)://[a-zA-Z0-9\-.]+\.[a-zA-Z]{2,3}(?::[a-zA-Z0-9]*)?/?[a-zA-Z0-9\-._?,'/\\+&%$#=~;]*`)

// ToHTML renders text as HTML. Each line is scanned for URLs: URL runs
// become anchors opening in a new tab without referrer leakage, non-URL
// runs are trimmed at line edges, escaped and wrapped in spans. A line
// boundary contributes a <br /> once any output has been produced.
func ToHTML(text string) string {
	var b strings.Builder

	for len(text) > 0 {
		line := text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line = text[:i]
			text = text[i+1:]
		} else {
			text = ""
		}

		start := 0
		newLine := true

		for _, m := range urlPattern.FindAllStringIndex(line, -1) {
			appendSpan(&b, line[start:m[0]], newLine)
			newLine = false
			appendURL(&b, line[m[0]:m[1]])
			start = m[1]
		}

		appendSpan(&b, line[start:], newLine)
	}

	return b.String()
}

func appendSpan(b *strings.Builder, text string, newLine bool) {
	text = strings.TrimSpace(text)

	if newLine && b.Len() > 0 {
		b.WriteString("<br />")
	}

	if text == "" {
		return
	}

	b.WriteString("<span>")
	b.WriteString(html.EscapeString(text))
	b.WriteString("</span>")
}

func appendURL(b *strings.Builder, url string) {
	// The URL pattern admits no quotes or angle brackets, so the raw match
	// is safe inside a double-quoted attribute.
	b.WriteString(`<a href="`)
	b.WriteString(url)
	b.WriteString(`" target="_blank" rel="noopener noreferrer">`)
	b.WriteString(html.EscapeString(url))
	b.WriteString("</a>")
}
