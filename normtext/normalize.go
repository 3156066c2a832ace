package normtext

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern         = regexp.MustCompile(`https?://\S+`)
	mentionPattern     = regexp.MustCompile(`<@!?\d+>`)
	channelRefPattern  = regexp.MustCompile(`<#\d+>`)
	customEmojiPattern = regexp.MustCompile(`<a?:\w+:\d+>`)
	nonTextChars       = regexp.MustCompile(`[^\pL\pN\s]+`)
	nonSlugChars       = regexp.MustCompile(`[^\pL\pN]+`)
)

// Canonicalizes free-form text for content matching: unicode folding,
// lower-case, markup token and URL removal, punctuation removal, repeated
// character collapse, and whitespace collapse.
//
// Deterministic: identical input always yields identical output, in any
// process. Decisions are keyed on digests of this output, so any change here
// invalidates previously stored fingerprints.
func Normalize(raw string) string {
	// this transform chain is rebuilt per call to avoid a race on the shared transformer state
	foldFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(foldFunc, raw)
	if err != nil {
		folded = raw
	}
	out := strings.ToLower(folded)
	out = urlPattern.ReplaceAllString(out, "")
	out = mentionPattern.ReplaceAllString(out, "")
	out = channelRefPattern.ReplaceAllString(out, "")
	out = customEmojiPattern.ReplaceAllString(out, "")
	out = nonTextChars.ReplaceAllString(out, "")
	out = collapseRepeats(out, 3)
	return strings.Join(strings.Fields(out), " ")
}

// Takes an arbitrary string and returns a version with all non-letter, non-digit characters removed, and all lower-case
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}

// Collapses any run of `limit` or more identical runes down to a single
// rune; shorter runs pass through. RE2 has no backreferences, so this is a
// manual run-length scan.
func collapseRepeats(s string, limit int) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		n := j - i
		if n >= limit {
			n = 1
		}
		for k := 0; k < n; k++ {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}
