// Package hashcodec normalizes the several shapes a content hash can arrive
// in (hex string, byte array, tagged object) into one canonical lowercase-hex
// form, and derives a content-addressed identifier (CID) from a raw SHA-256
// digest without ever re-hashing it.
package hashcodec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ErrUnsupportedShape is returned when the input cannot be interpreted as
// any of the accepted hash representations.
var ErrUnsupportedShape = fmt.Errorf("hashcodec: unsupported hash representation")

const digestSize = 32 // sha2-256 digest length in bytes

// taggedHash is the "tagged object with a hex field" shape, e.g.
// {"hex": "0xabc123..."}.
type taggedHash struct {
	Hex string `json:"hex"`
}

// Normalize accepts a hex string (optionally "0x"-prefixed, any case), a
// byte array, or a tagged object {"hex": "..."}, and returns lowercase hex
// with no prefix. Any other shape is rejected with ErrUnsupportedShape.
func Normalize(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return normalizeHexString(t)
	case []byte:
		return hex.EncodeToString(t), nil
	case taggedHash:
		return normalizeHexString(t.Hex)
	case map[string]interface{}:
		hx, ok := t["hex"].(string)
		if !ok {
			return "", fmt.Errorf("%w: object missing string \"hex\" field", ErrUnsupportedShape)
		}
		return normalizeHexString(hx)
	case []interface{}:
		// JSON-decoded byte arrays land here as []interface{} of numbers.
		raw := make([]byte, 0, len(t))
		for _, elem := range t {
			n, ok := asByte(elem)
			if !ok {
				return "", fmt.Errorf("%w: array element is not a byte", ErrUnsupportedShape)
			}
			raw = append(raw, n)
		}
		return hex.EncodeToString(raw), nil
	case json.Number:
		return "", fmt.Errorf("%w: bare number", ErrUnsupportedShape)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedShape, v)
	}
}

func asByte(v interface{}) (byte, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n > 255 {
			return 0, false
		}
		return byte(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 || i > 255 {
			return 0, false
		}
		return byte(i), true
	case int:
		if n < 0 || n > 255 {
			return 0, false
		}
		return byte(n), true
	default:
		return 0, false
	}
}

func normalizeHexString(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return "", fmt.Errorf("%w: empty hex string", ErrUnsupportedShape)
	}
	lower := strings.ToLower(s)
	if _, err := hex.DecodeString(lower); err != nil {
		return "", fmt.Errorf("%w: invalid hex: %v", ErrUnsupportedShape, err)
	}
	return lower, nil
}

// CIDFromHash derives a CIDv1 (raw codec, sha2-256) from a raw 32-byte SHA-256
// digest expressed as lowercase hex. It wraps the already-computed digest in
// a multihash envelope; it never invokes SHA-256 again. Calling this on
// anything other than the output of a SHA-256 hash silently produces a
// CID whose multihash lies about its own algorithm, so callers must only
// pass digests they know are SHA-256.
func CIDFromHash(hexDigest string) (string, error) {
	digest, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", fmt.Errorf("hashcodec: invalid hex digest: %w", err)
	}
	if len(digest) != digestSize {
		return "", fmt.Errorf("hashcodec: expected %d-byte sha2-256 digest, got %d", digestSize, len(digest))
	}

	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return "", fmt.Errorf("hashcodec: multihash encode: %w", err)
	}

	c := cid.NewCidV1(cid.Raw, mh)
	// CIDv1's default String() encoding is already lowercase base32.
	return c.String(), nil
}

// DigestFromCID recovers the raw hex digest bytes embedded in a CID, for
// tests and for verifying CIDFromHash's no-double-hash invariant.
func DigestFromCID(cidStr string) (string, error) {
	c, err := cid.Decode(cidStr)
	if err != nil {
		return "", fmt.Errorf("hashcodec: decode cid: %w", err)
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return "", fmt.Errorf("hashcodec: decode multihash: %w", err)
	}
	return hex.EncodeToString(decoded.Digest), nil
}
