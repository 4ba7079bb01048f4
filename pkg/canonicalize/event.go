package canonicalize

import (
	"encoding/json"
	"fmt"
)

// EventCanonicalBytes returns the canonical (JCS) byte encoding of an event
// with its "sig" field excluded. Any concrete event type is accepted as long
// as it marshals to a JSON object; the "sig" key, if present, is stripped
// before canonicalization so the signature never signs itself.
func EventCanonicalBytes(event interface{}) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal event: %w", err)
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicalize: event is not a JSON object: %w", err)
	}
	delete(generic, "sig")

	return JCS(generic)
}

// EventHash computes sha256(canonical(event \ {sig})) and returns it as
// lowercase hex, with no "0x" prefix. This is the single content-hash
// identifier used for deduplication, storage keys, and handler dispatch
// everywhere else in the pipeline.
func EventHash(event interface{}) (string, error) {
	b, err := EventCanonicalBytes(event)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}
