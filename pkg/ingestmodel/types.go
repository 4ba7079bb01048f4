// Package ingestmodel defines the wire and in-memory shapes that flow through
// the anchor ingestion pipeline: on-chain anchors, off-chain event bodies, the
// normalized record chain sources produce, and the enriched event handed to
// downstream handlers.
package ingestmodel

import "encoding/json"

// Event is the off-chain body referenced by an on-chain Anchor.
type Event struct {
	V            int             `json:"v"`
	Type         json.RawMessage `json:"type"`
	AuthorPubkey string          `json:"author_pubkey"`
	CreatedAt    int64           `json:"created_at"`
	Parents      []string        `json:"parents,omitempty"`
	Body         json.RawMessage `json:"body,omitempty"`
	Proofs       json.RawMessage `json:"proofs,omitempty"`
	Sig          string          `json:"sig,omitempty"`
}

// GetSig returns the event's detached signature, satisfying sigverify's
// signable interface.
func (e Event) GetSig() string { return e.Sig }

// GetAuthorPubkey returns the event's declared author public key, satisfying
// sigverify's signable interface.
func (e Event) GetAuthorPubkey() string { return e.AuthorPubkey }

// SchemaVersion satisfies the event store's version-compatibility probe.
func (e Event) SchemaVersion() int { return e.V }

// Anchor is the lightweight on-chain fact that binds a content hash to an
// author, a numeric type, and a timestamp.
type Anchor struct {
	Author     string   `json:"author"`
	Type       int      `json:"type"`
	Hash       string   `json:"hash"`
	EventCID   string   `json:"event_cid,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	Ts         int64    `json:"ts"`
	Tags       []string `json:"tags,omitempty"`
	Permission string   `json:"permission,omitempty"`
}

// ChainMetadata carries the transport-specific provenance of an anchor,
// independent of which chain source produced it.
type ChainMetadata struct {
	BlockNum      uint64 `json:"block_num"`
	BlockID       string `json:"block_id"`
	TrxID         string `json:"trx_id"`
	ActionOrdinal int    `json:"action_ordinal"`
	Source        string `json:"source"`
}

// AnchoredEvent is the internal normalized record every chain source
// produces, regardless of transport.
type AnchoredEvent struct {
	ContentHash      string          `json:"content_hash"`
	EventHash        string          `json:"event_hash"`
	Payload          json.RawMessage `json:"payload"`
	BlockNum         uint64          `json:"block_num"`
	BlockID          string          `json:"block_id"`
	TrxID            string          `json:"trx_id"`
	ActionOrdinal    int             `json:"action_ordinal"`
	Timestamp        int64           `json:"timestamp"`
	Source           string          `json:"source"`
	ContractAccount  string          `json:"contract_account"`
	ActionName       string          `json:"action_name"`
}

// BlockchainMetadata is the provenance block attached to an enriched event.
type BlockchainMetadata struct {
	AnchorHash      string `json:"anchor_hash"`
	BlockNum        uint64 `json:"block_num"`
	BlockID         string `json:"block_id"`
	TrxID           string `json:"trx_id"`
	ActionOrdinal   int    `json:"action_ordinal"`
	Source          string `json:"source"`
	RetrievalSource string `json:"retrieval_source"`
	IngestedAt      int64  `json:"ingested_at"`
}

// EnrichedEvent is an Event with blockchain provenance attached, the shape
// handed to downstream event-type handlers.
type EnrichedEvent struct {
	Event
	BlockchainVerified  bool               `json:"blockchain_verified"`
	BlockchainMetadata  BlockchainMetadata `json:"blockchain_metadata"`
}

// IngestOutcome is the processing result a chain source's sink callback
// hands back, expressed in the same status vocabulary the ingestion
// processor uses internally (processed, duplicate, not_found,
// invalid_signature, unauthorized_key, error). It lets a synchronous
// transport such as the push source report back exactly what happened to an
// event without importing the processor package itself.
type IngestOutcome struct {
	Status      string `json:"status"`
	ContentHash string `json:"content_hash,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RetrievalSource records which lookup path served a retrieved event: the
// content-addressed id carried on the anchor, or a plain hash lookup.
type RetrievalSource string

const (
	RetrievalSourceCID  RetrievalSource = "cid"
	RetrievalSourceHash RetrievalSource = "hash"
)

// TypeName resolves a numeric on-chain event type to its canonical name.
// Unknown codes return ("", false) so callers can decide between a hard
// type-mismatch failure and a forward-compatible warn-and-pass.
func TypeName(code int) (string, bool) {
	name, ok := typeTable[code]
	return name, ok
}

// typeTable is the authoritative numeric<->name mapping. It must stay in
// sync with the smart contract's constants; content events, governance
// events, and structural events share one namespace.
var typeTable = map[int]string{
	21: "CREATE_RELEASE_BUNDLE",
	22: "MINT_ENTITY",
	23: "RESOLVE_ID",
	30: "ADD_CLAIM",
	31: "EDIT_CLAIM",
	40: "VOTE",
	41: "LIKE",
	50: "FINALIZE",
	60: "MERGE_ENTITY",
}
