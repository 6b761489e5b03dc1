package speech

import (
	"regexp"
	"strings"
)

// reItalic не срабатывает, если маркер стоит сразу после буквы или цифры
// (snake_case, está_bien): \p{L} покрывает и буквы с диакритикой.
var (
	reCodeBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n?(.*?)```")
	reCodeSpan  = regexp.MustCompile("`([^`]*)`")
	reImage     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reHeader    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	reBullet    = regexp.MustCompile(`(?m)^\s*(?:[-*+•]|\d+[.)])\s+`)
	reQuote     = regexp.MustCompile(`(?m)^\s*>\s?`)
	reBold      = regexp.MustCompile(`(\*\*|__)(.+?)(\*\*|__)`)
	reItalic    = regexp.MustCompile(`(^|[^\p{L}\p{N}*])[*_]([^*_\n]+)[*_]`)
	reStrike    = regexp.MustCompile(`~~(.+?)~~`)
	reBlankRuns = regexp.MustCompile(`\n{3,}`)
	reSpaces    = regexp.MustCompile(`[ \t]{2,}`)
)

// StripMarkdown removes formatting so it is not read aloud:
// bold/italic markers, code spans, links, headers and bullet prefixes.
func StripMarkdown(s string) string {
	s = reCodeBlock.ReplaceAllString(s, "$1")
	s = reCodeSpan.ReplaceAllString(s, "$1")
	s = reImage.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reHeader.ReplaceAllString(s, "")
	s = reBullet.ReplaceAllString(s, "")
	s = reQuote.ReplaceAllString(s, "")
	s = reBold.ReplaceAllString(s, "$2")
	s = reStrike.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1$2")
	s = reSpaces.ReplaceAllString(s, " ")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
