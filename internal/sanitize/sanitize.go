// Package sanitize normalizes outbound text to plain Telegram-safe
// content. Callers often hand over markdown or HTML fragments; Telegram
// plain-text sends would show the markup verbatim, so it is stripped
// before delivery.
package sanitize

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	blockTags = regexp.MustCompile(`<br\s*/?>|</?p>|</?div>|</?pre>|</?li>|</?h[1-6]>`)
	blankRuns = regexp.MustCompile(`\n\s*\n+`)
)

// Normalizer strips markup from outbound message text.
type Normalizer struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewNormalizer creates a Normalizer with a strict strip-everything policy.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		policy:   bluemonday.StrictPolicy(),
		markdown: goldmark.New(),
	}
}

// Plain renders markdown to HTML, strips all tags, and collapses the
// leftover whitespace. Input that fails to render is passed through
// unchanged; losing formatting is acceptable, losing content is not.
func (n *Normalizer) Plain(text string) string {
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := n.markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}

	out := blockTags.ReplaceAllString(buf.String(), "\n")
	out = n.policy.Sanitize(out)
	out = blankRuns.ReplaceAllString(out, "\n\n")
	out = html.UnescapeString(out)

	return strings.TrimSpace(out)
}
