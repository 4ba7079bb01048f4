//go:build property
// +build property

package hashcodec

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// hexDigest generates a random 32-byte sha2-256-shaped digest as lowercase
// hex, the shape CIDFromHash requires.
func hexDigest() gopter.Gen {
	return gen.SliceOfN(32, gen.UInt8Range(0, 255)).Map(func(bs []uint8) string {
		raw := make([]byte, len(bs))
		for i, b := range bs {
			raw[i] = byte(b)
		}
		return hex.EncodeToString(raw)
	})
}

// TestNormalize_HashFormatEquivalence covers spec.md §8's hash-format
// equivalence law: a hex string, the same string "0x"-prefixed, and the
// same string upper-cased all normalize to one lowercase, unprefixed form.
func TestNormalize_HashFormatEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("0x-prefixed and upper-case hex normalize identically", prop.ForAll(
		func(digest string) bool {
			plain, err := Normalize(digest)
			if err != nil {
				return false
			}
			prefixed, err := Normalize("0x" + digest)
			if err != nil {
				return false
			}
			upper, err := Normalize(strings.ToUpper(digest))
			if err != nil {
				return false
			}
			return plain == prefixed && plain == upper
		},
		hexDigest(),
	))

	properties.TestingRun(t)
}

// TestNormalize_Idempotent covers idempotence: normalizing an already
// normalized hash must return the identical string.
func TestNormalize_Idempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Normalize is idempotent", prop.ForAll(
		func(digest string) bool {
			once, err := Normalize(digest)
			if err != nil {
				return false
			}
			twice, err := Normalize(once)
			if err != nil {
				return false
			}
			return once == twice
		},
		hexDigest(),
	))

	properties.TestingRun(t)
}

// TestCIDFromHash_DoesNotDoubleHash covers spec.md §8's CID non-double-hash
// law: the multihash embedded in the derived CID carries the original
// digest bytes verbatim, never sha256(digest).
func TestCIDFromHash_DoesNotDoubleHash(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("CIDFromHash embeds the digest without rehashing", prop.ForAll(
		func(digest string) bool {
			cidStr, err := CIDFromHash(digest)
			if err != nil {
				return false
			}
			recovered, err := DigestFromCID(cidStr)
			if err != nil {
				return false
			}
			return recovered == digest
		},
		hexDigest(),
	))

	properties.TestingRun(t)
}

// TestCIDFromHash_Deterministic covers determinism: the same digest always
// derives the same CID.
func TestCIDFromHash_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("CIDFromHash is deterministic", prop.ForAll(
		func(digest string) bool {
			a, err := CIDFromHash(digest)
			if err != nil {
				return false
			}
			b, err := CIDFromHash(digest)
			if err != nil {
				return false
			}
			return a == b
		},
		hexDigest(),
	))

	properties.TestingRun(t)
}
