package render

import (
	"regexp"
	"strings"
)

var (
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	entityRe   = regexp.MustCompile(`&[a-zA-Z0-9#]+;`)
	brRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRe  = regexp.MustCompile(`</?[^>]+(>|$)`)
)

var htmlEntities = map[string]string{
	"&lt;":   "<",
	"&gt;":   ">",
	"&amp;":  "&",
	"&quot;": `"`,
	"&#39;":  "'",
	"&nbsp;": " ",
}

// CollapseBlankLines reduces any run of three or more consecutive newlines
// to a single blank line, so documents stay tidy regardless of which
// optional template sections rendered empty.
func CollapseBlankLines(s string) string {
	return blankRunRe.ReplaceAllString(s, "\n\n")
}

// StripHTML removes lightweight HTML the remote transcripts sometimes
// carry: known entities are decoded first, <br> becomes a newline, and
// any remaining tags are dropped. Escaped markup is markup too, so
// &lt;b&gt; is stripped just like <b>.
func StripHTML(s string) string {
	s = entityRe.ReplaceAllStringFunc(s, func(entity string) string {
		if repl, ok := htmlEntities[entity]; ok {
			return repl
		}
		return entity
	})
	s = brRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
