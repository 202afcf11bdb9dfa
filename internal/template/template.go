// Package template implements the minimal substitution language used by the
// configurable note and frontmatter templates: {{ var }} placeholders plus
// {% if var %} ... {% else %} ... {% endif %} blocks. It is intentionally not
// a general template engine.
package template

import (
	"regexp"
	"strings"
)

var (
	varRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)
	tagRe = regexp.MustCompile(`\{%\s*(if\s+([A-Za-z0-9_]+)|else|endif)\s*%\}`)
)

// Render expands tpl against ctx. A variable absent from ctx (or mapped to
// the empty string) renders as "" and is falsy in conditionals.
func Render(tpl string, ctx map[string]string) string {
	out := renderBlocks(tpl, ctx)
	return varRe.ReplaceAllStringFunc(out, func(m string) string {
		name := varRe.FindStringSubmatch(m)[1]
		return ctx[name]
	})
}

// renderBlocks resolves {% if %} blocks, recursing into the branch that is
// kept so nested conditionals work.
func renderBlocks(tpl string, ctx map[string]string) string {
	var b strings.Builder
	for {
		loc := tagRe.FindStringSubmatchIndex(tpl)
		if loc == nil {
			b.WriteString(tpl)
			return b.String()
		}

		tag := tpl[loc[2]:loc[3]]
		if !strings.HasPrefix(tag, "if") {
			// Stray else/endif without an opening if; drop the tag.
			b.WriteString(tpl[:loc[0]])
			tpl = tpl[loc[1]:]
			continue
		}

		name := tpl[loc[4]:loc[5]]
		b.WriteString(tpl[:loc[0]])

		body, rest, ok := matchBlock(tpl[loc[1]:])
		if !ok {
			// Unterminated block: emit the remainder untouched.
			b.WriteString(tpl[loc[1]:])
			return b.String()
		}

		thenPart, elsePart := splitElse(body)
		if ctx[name] != "" {
			b.WriteString(renderBlocks(thenPart, ctx))
		} else {
			b.WriteString(renderBlocks(elsePart, ctx))
		}
		tpl = rest
	}
}

// matchBlock scans tpl for the {% endif %} matching an already-consumed
// {% if %}, honouring nesting. It returns the block body and the text after
// the endif tag.
func matchBlock(tpl string) (body, rest string, ok bool) {
	depth := 1
	offset := 0
	for {
		loc := tagRe.FindStringSubmatchIndex(tpl[offset:])
		if loc == nil {
			return "", "", false
		}
		tag := tpl[offset+loc[2] : offset+loc[3]]
		switch {
		case strings.HasPrefix(tag, "if"):
			depth++
		case tag == "endif":
			depth--
			if depth == 0 {
				return tpl[:offset+loc[0]], tpl[offset+loc[1]:], true
			}
		}
		offset += loc[1]
	}
}

// splitElse separates the then/else branches at the top-level {% else %},
// if any.
func splitElse(body string) (thenPart, elsePart string) {
	depth := 0
	offset := 0
	for {
		loc := tagRe.FindStringSubmatchIndex(body[offset:])
		if loc == nil {
			return body, ""
		}
		tag := body[offset+loc[2] : offset+loc[3]]
		switch {
		case strings.HasPrefix(tag, "if"):
			depth++
		case tag == "endif":
			depth--
		case tag == "else" && depth == 0:
			return body[:offset+loc[0]], body[offset+loc[1]:]
		}
		offset += loc[1]
	}
}
