// Package eventstore persists and retrieves event bodies across three
// redundant backends: a cache, a content-addressed store, and an object
// store. Writes fan out to all three; reads consult them in order, fastest
// first, and re-verify content integrity on every hit.
package eventstore

import (
	"context"
	"time"
)

// SidecarRecord maps a content hash to the CID it was published under, so
// the hash->CID relationship survives cache loss even if the content-
// addressed store is later unreachable.
type SidecarRecord struct {
	Hash      string    `json:"hash"`
	CID       string    `json:"cid"`
	StoredAt  time.Time `json:"stored_at"`
}

// CacheBackend is the fast, TTL-bounded tier.
type CacheBackend interface {
	Get(ctx context.Context, hash string) ([]byte, bool, error)
	Set(ctx context.Context, hash string, data []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// CASBackend is the content-addressed tier. PutCanonical publishes the event
// with its "sig" field stripped; PutFull publishes the complete signed
// event. Both return the CID the block was published under.
type CASBackend interface {
	PutCanonical(ctx context.Context, data []byte) (cidStr string, err error)
	PutFull(ctx context.Context, data []byte) (cidStr string, err error)
	Get(ctx context.Context, cidStr string) ([]byte, error)
	Ping(ctx context.Context) error
}

// ObjectBackend is the durable tier: the hash-partitioned event body, plus a
// sidecar hash->CID mapping under a separate key prefix.
type ObjectBackend interface {
	PutBody(ctx context.Context, hash string, data []byte) error
	GetBody(ctx context.Context, hash string) ([]byte, bool, error)
	PutSidecar(ctx context.Context, hash string, rec SidecarRecord) error
	GetSidecar(ctx context.Context, hash string) (*SidecarRecord, bool, error)
	Ping(ctx context.Context) error
}
