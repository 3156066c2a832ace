package normtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBasics(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		raw      string
		expected string
	}{
		{"Hello World", "hello world"},
		{"  spaced   out\ttext ", "spaced out text"},
		{"fr33 vi3ws!!!", "fr33 vi3ws"},
		{"check https://spam.example/offer now", "check now"},
		{"hey <@12345> look at <#6789>", "hey look at"},
		{"nice one <:pogchamp:112233> lol", "nice one lol"},
		{"sooooo goooood", "so god"},
		{"aa bb cc", "aa bb cc"},
		{"héllo wörld", "hello world"},
		{"!!!", ""},
		{"", ""},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.expected, Normalize(fix.raw), "raw: %q", fix.raw)
	}
}

func TestNormalizeDeterminism(t *testing.T) {
	assert := assert.New(t)

	inputs := []string{"fr33 vi3ws!!!", "Hello World", "héllo", "a b c d e"}
	for _, in := range inputs {
		first := Normalize(in)
		for i := 0; i < 10; i++ {
			assert.Equal(first, Normalize(in))
		}
	}
}

func TestCollapseRepeats(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("hey", collapseRepeats("heyyyy", 3))
	assert.Equal("bookkeeper", collapseRepeats("bookkeeper", 3))
	assert.Equal("a", collapseRepeats("aaaaaaaaaa", 3))
	assert.Equal("abab", collapseRepeats("abab", 3))
	assert.Equal("", collapseRepeats("", 3))
}

func TestVariants(t *testing.T) {
	assert := assert.New(t)

	vs := Variants("fr33 vi3ws!!!")
	assert.Equal([]string{"fr33 vi3ws", "fr33vi3ws", "fr33 v3ws", "free views"}, vs)

	// leetspeak-decoded variant of the obfuscated text matches the
	// canonical form of the plain text
	plain := Variants("FREE VIEWS")
	assert.Equal("free views", plain[0])
	assert.Contains(vs, plain[0])

	// vowel variant only emitted when it differs and is non-empty
	assert.Equal([]string{"xyz"}, Variants("xyz"))

	// bare variant keeps the un-collapsed raw characters
	assert.Contains(Variants("heyyyy"), "heyyyy")

	assert.Equal([]string{"hi", "h"}, Variants("Hi!"))
}

func TestVariantsDeterminism(t *testing.T) {
	assert := assert.New(t)

	first := Variants("S0me Sp4m M3ssage!!!")
	for i := 0; i < 10; i++ {
		assert.Equal(first, Variants("S0me Sp4m M3ssage!!!"))
	}
}
