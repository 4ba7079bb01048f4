package eventstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/provenance-network/anchor-ingestor/pkg/canonicalize"
	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
)

// TypedStore adapts the byte-oriented Store to ingestmodel.Event, satisfying
// the ingestion processor's EventRetriever interface.
type TypedStore struct {
	store *Store
}

// NewTypedStore wraps store.
func NewTypedStore(store *Store) *TypedStore {
	return &TypedStore{store: store}
}

func hasSig(data []byte) bool {
	var probe struct {
		Sig string `json:"sig"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Sig != ""
}

// StoreEvent validates, hashes, and fans event out to every configured
// backend.
func (t *TypedStore) StoreEvent(ctx context.Context, event ingestmodel.Event, expectedHash string) (*StoreResult, error) {
	full, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("eventstore: marshal event: %w", err)
	}
	canonicalBytes, err := canonicalize.EventCanonicalBytes(event)
	if err != nil {
		return nil, fmt.Errorf("eventstore: canonicalize event: %w", err)
	}
	return t.store.storeEvent(ctx, event, canonicalBytes, full, expectedHash)
}

// RetrieveByHash implements ingest.EventRetriever.
func (t *TypedStore) RetrieveByHash(ctx context.Context, hash string, requireSig bool) (*ingestmodel.Event, ingestmodel.RetrievalSource, error) {
	data, _, err := t.store.retrieveEvent(ctx, hash, RetrieveOptions{RequireSig: requireSig}, hasSig)
	if err != nil {
		return nil, "", err
	}
	var event ingestmodel.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, "", fmt.Errorf("eventstore: unmarshal retrieved event: %w", err)
	}
	recomputed, err := t.store.calculateHash(event)
	if err != nil {
		return nil, "", fmt.Errorf("eventstore: hash retrieved event: %w", err)
	}
	if recomputed != hash {
		return nil, "", fmt.Errorf("%w: requested %s, retrieved content hashes to %s", ErrHashMismatch, hash, recomputed)
	}
	return &event, ingestmodel.RetrievalSourceHash, nil
}

// RetrieveByCID implements ingest.EventRetriever.
func (t *TypedStore) RetrieveByCID(ctx context.Context, cid string) (*ingestmodel.Event, error) {
	data, err := t.store.retrieveByCid(ctx, cid)
	if err != nil {
		return nil, err
	}
	var event ingestmodel.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("eventstore: unmarshal cid-retrieved event: %w", err)
	}
	return &event, nil
}

// CalculateHash implements ingest.EventRetriever.
func (t *TypedStore) CalculateHash(event *ingestmodel.Event) (string, error) {
	return t.store.calculateHash(*event)
}

// TestConnectivity exposes the store's backend health check.
func (t *TypedStore) TestConnectivity(ctx context.Context) map[string]error {
	return t.store.testConnectivity(ctx)
}

// Close releases backend resources.
func (t *TypedStore) Close() error {
	return t.store.close()
}

// Stats returns the store's cumulative counters.
func (t *TypedStore) Stats() Stats {
	return t.store.Stats()
}
