package normtext

import (
	"strings"
)

// Leetspeak substitutions decoded when generating match variants. Symbol
// entries only matter for strings which bypass punctuation stripping.
var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"$", "s",
	"!", "i",
)

const vowels = "aeiou"

// Variants returns the set of match variants for a piece of raw text, in
// stable order with the canonical normalized form first. Each variant is
// independently fingerprintable; together they defeat common obfuscation
// (spacing tricks, vowel removal, leetspeak digits).
func Variants(raw string) []string {
	normalized := Normalize(raw)

	out := make([]string, 0, 5)
	seen := make(map[string]bool, 5)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(normalized)
	add(strings.ReplaceAll(normalized, " ", ""))
	if stripped := stripVowels(normalized); stripped != normalized {
		add(stripped)
	}
	if decoded := leetReplacer.Replace(normalized); decoded != normalized {
		add(decoded)
	}
	if bare := Slugify(raw); len(bare) > 2 {
		add(bare)
	}
	return out
}

func stripVowels(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(vowels, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
