package normtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Golden digests. These values are load-bearing: stored decisions are keyed
// on them, so they must never change across releases.
func TestFingerprintGolden(t *testing.T) {
	assert := assert.New(t)

	fixtures := map[string]string{
		"free views":  "ab812491552cebd3fca01c3a7f17871d",
		"fr33 vi3ws":  "c1773225df09b5d57d543fd429d2afab",
		"freeviews":   "52b961d7c0a40b92a62be10a947a1f5e",
		"hello world": "b94d27b9934d3e08a52e52d7da7dabfa",
		"spam offer":  "13e1ce3f938af283f610c16b2fbd13db",
	}

	for variant, digest := range fixtures {
		assert.Equal(digest, Fingerprint(variant))
	}
}

func TestFingerprintStable(t *testing.T) {
	assert := assert.New(t)

	for _, v := range Variants("fr33 vi3ws!!!") {
		first := Fingerprint(v)
		assert.Len(first, 32)
		for i := 0; i < 10; i++ {
			assert.Equal(first, Fingerprint(v))
		}
	}
}
