// Package htmltext extracts plain text from HTML fragments.
// Scoring and the enrichment payload both want the text of a bulletin body
// without its markup.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
)

// Extract returns the text content of an HTML fragment with whitespace
// collapsed. Script and style contents are dropped. Plain text input is
// returned with whitespace collapsed.
func Extract(fragment string) string {
	if fragment == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(b.String())

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style":
				skipDepth++
			case "p", "br", "li", "div", "blockquote":
				b.WriteByte(' ')
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case "p", "li", "div", "blockquote":
				b.WriteByte(' ')
			}

		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// collapseWhitespace trims and collapses runs of whitespace to one space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
