package render

import (
	"net/url"
	"regexp"
	"strings"
)

// illegalFilenameRe matches characters that cannot appear in a file name on
// at least one supported platform, plus control characters.
var (
	illegalFilenameRe = regexp.MustCompile(`[\x00-\x1f/\\?<>:*|"]`)
	whitespaceRe      = regexp.MustCompile(`\s+`)
)

// SanitizeFilename strips characters illegal in a file path and trims
// trailing dots and spaces (Windows rejects both).
func SanitizeFilename(name string) string {
	s := illegalFilenameRe.ReplaceAllString(name, "")
	s = strings.TrimRight(s, ". ")
	return strings.TrimSpace(s)
}

// FilenameFromURL returns the last path segment of a URL, or "" when the
// URL does not parse or has no usable segment.
func FilenameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.Split(parsed.Path, "/")
	name := segments[len(segments)-1]
	return SanitizeFilename(name)
}
