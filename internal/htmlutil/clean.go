package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// Summary converts HTML to a single line of text, cut to at most max runes.
func Summary(s string, max int) string {
	text := strings.Join(strings.Fields(ToText(s)), " ")
	r := []rune(text)
	if max > 0 && len(r) > max {
		return string(r[:max]) + "…"
	}
	return text
}
