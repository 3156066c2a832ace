package normtext

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a stable 128-bit digest of a text variant as lowercase
// hex: the first 16 bytes of the SHA-256 of the string.
//
// Decisions are persisted and re-looked-up by fingerprint across process
// restarts and across machines, so this digest must never depend on process
// state (no seeded or randomized hashing). Distinct variants colliding are
// treated as the same bucket by callers; at 128 bits that is negligible for
// any plausible decision corpus.
func Fingerprint(variant string) string {
	sum := sha256.Sum256([]byte(variant))
	return hex.EncodeToString(sum[:16])
}
