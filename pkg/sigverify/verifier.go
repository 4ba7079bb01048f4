// Package sigverify checks an event's detached Ed25519 signature against its
// declared author public key, over the canonical payload with "sig" excluded.
package sigverify

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/provenance-network/anchor-ingestor/pkg/canonicalize"
)

// Reason distinguishes why verification passed or failed, so callers can log
// and branch without string-matching error text.
type Reason string

const (
	ReasonOK             Reason = "ok"
	ReasonBypassed       Reason = "bypassed"
	ReasonSigMissing     Reason = "signature_missing"
	ReasonPubkeyMissing  Reason = "pubkey_missing"
	ReasonParseError     Reason = "parse_error"
	ReasonCryptoMismatch Reason = "crypto_mismatch"
)

// Options controls how strictly a missing signature or key is treated.
type Options struct {
	// RequireSignature fails verification outright when sig is absent.
	RequireSignature bool
	// AllowUnsigned lets an event with neither sig nor author_pubkey pass,
	// for test fixtures and local development only.
	AllowUnsigned bool
}

// Result reports the outcome of a single verification call.
type Result struct {
	Valid  bool
	Reason Reason
	Err    error
}

// signable is the minimal shape EventCanonicalBytes needs: any event type
// that marshals to a JSON object carrying "sig" and "author_pubkey" fields
// satisfies Verify via the getter functions below.
type signable interface {
	GetSig() string
	GetAuthorPubkey() string
}

// Verify checks event.Sig against event.AuthorPubkey over the canonical
// payload with "sig" stripped, per opts.
func Verify(event signable, opts Options) Result {
	sig := event.GetSig()
	pubkey := event.GetAuthorPubkey()

	if sig == "" && pubkey == "" && opts.AllowUnsigned {
		return Result{Valid: true, Reason: ReasonBypassed}
	}
	if sig == "" {
		return Result{Valid: false, Reason: ReasonSigMissing, Err: errors.New("sigverify: signature missing")}
	}
	if pubkey == "" {
		return Result{Valid: false, Reason: ReasonPubkeyMissing, Err: errors.New("sigverify: author_pubkey missing")}
	}

	pubKeyBytes, err := hex.DecodeString(pubkey)
	if err != nil {
		return Result{Valid: false, Reason: ReasonParseError, Err: fmt.Errorf("sigverify: invalid public key hex: %w", err)}
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return Result{Valid: false, Reason: ReasonParseError, Err: fmt.Errorf("sigverify: expected %d-byte public key, got %d", ed25519.PublicKeySize, len(pubKeyBytes))}
	}

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return Result{Valid: false, Reason: ReasonParseError, Err: fmt.Errorf("sigverify: invalid signature hex: %w", err)}
	}

	payload, err := canonicalize.EventCanonicalBytes(event)
	if err != nil {
		return Result{Valid: false, Reason: ReasonParseError, Err: fmt.Errorf("sigverify: canonicalize event: %w", err)}
	}

	if !ed25519.Verify(ed25519.PublicKey(pubKeyBytes), payload, sigBytes) {
		return Result{Valid: false, Reason: ReasonCryptoMismatch, Err: errors.New("sigverify: signature does not verify against declared public key")}
	}
	return Result{Valid: true, Reason: ReasonOK}
}
