package eventstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/provenance-network/anchor-ingestor/pkg/canonicalize"
	"github.com/provenance-network/anchor-ingestor/pkg/eventschema"
	"github.com/provenance-network/anchor-ingestor/pkg/hashcodec"
	"github.com/provenance-network/anchor-ingestor/pkg/telemetry"
)

// ErrNotFound means no backend held the requested content. It is a
// first-class, retryable failure, distinct from a hash mismatch.
var ErrNotFound = errors.New("eventstore: not found in any tier")

// ErrHashMismatch means a tier returned content whose recomputed hash
// disagrees with the requested hash. This is an integrity violation, never
// retryable against the same tier.
var ErrHashMismatch = errors.New("eventstore: hash mismatch")

// ErrNoSignedCopy means requireSig was set and no tier yielded a signed copy:
// either every tier that answered held only a signature-less canonical copy,
// or no tier held the content at all.
var ErrNoSignedCopy = errors.New("eventstore: no signed copy available")

// ErrUnsupportedSchemaVersion means an event's declared schema version falls
// outside the configured VersionChecker's supported window.
var ErrUnsupportedSchemaVersion = errors.New("eventstore: unsupported schema version")

// DefaultCacheTTL is how long a cache-tier write is kept before expiring.
const DefaultCacheTTL = 24 * time.Hour

// BackendOutcome records one backend's result for a single store call.
type BackendOutcome struct {
	Backend string
	OK      bool
	Err     error
}

// StoreResult is returned by storeEvent: the computed hash, the CIDs the
// content-addressed tier published under, and each backend's outcome.
type StoreResult struct {
	Hash         string
	CanonicalCID string
	EventCID     string
	Outcomes     []BackendOutcome
}

// RetrievalTier names which backend answered a read.
type RetrievalTier string

const (
	TierCache     RetrievalTier = "cache"
	TierCAS       RetrievalTier = "content_addressed"
	TierObject    RetrievalTier = "object_store"
)

// RetrieveOptions controls retrieveEvent's fallthrough behavior.
type RetrieveOptions struct {
	RequireSig bool
}

// Stats holds cumulative per-backend counters for telemetry.
type Stats struct {
	mu           sync.Mutex
	Stored       uint64
	Retrieved    uint64
	CacheHits    uint64
	CacheMisses  uint64
	CASStores    uint64
	ObjectStores uint64
	Errors       uint64
}

func (s *Stats) incr(field *uint64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters, safe to read concurrently with
// further updates.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Stored:       s.Stored,
		Retrieved:    s.Retrieved,
		CacheHits:    s.CacheHits,
		CacheMisses:  s.CacheMisses,
		CASStores:    s.CASStores,
		ObjectStores: s.ObjectStores,
		Errors:       s.Errors,
	}
}

// Store is the three-tier event store: cache, content-addressed, object.
type Store struct {
	cache          CacheBackend
	cas            CASBackend
	object         ObjectBackend
	ttl            time.Duration
	stats          Stats
	validator      *eventschema.Validator
	versionChecker *eventschema.VersionChecker
	telemetry      *telemetry.Provider
}

// StoreOption configures optional Store dependencies that most call sites,
// and every existing test, don't need to supply.
type StoreOption func(*Store)

// WithVersionChecker enables the schema-version compatibility check on
// every write. Events that don't expose a SchemaVersion() int method are
// passed through unchecked.
func WithVersionChecker(vc *eventschema.VersionChecker) StoreOption {
	return func(s *Store) { s.versionChecker = vc }
}

// WithTelemetry instruments store reads and writes with RED metrics and
// tracing.
func WithTelemetry(tp *telemetry.Provider) StoreOption {
	return func(s *Store) { s.telemetry = tp }
}

// NewStore builds a Store over the three backends. Any backend may be nil;
// storeEvent treats a nil backend as an unconfigured tier that is skipped,
// not an error, as long as at least one other tier succeeds. validator may
// be nil to skip structural validation (tests only); production wiring
// always supplies one.
func NewStore(cache CacheBackend, cas CASBackend, object ObjectBackend, validator *eventschema.Validator, opts ...StoreOption) *Store {
	s := &Store{cache: cache, cas: cas, object: object, ttl: DefaultCacheTTL, validator: validator}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns the store's cumulative counters.
func (s *Store) Stats() Stats {
	return s.stats.Snapshot()
}

// calculateHash computes an event's content hash the same way the chain
// does: sha256(canonical(event \ {sig})).
func (s *Store) calculateHash(event interface{}) (string, error) {
	return canonicalize.EventHash(event)
}

// storeEvent validates, hashes, and fans the event out to all configured
// backends in parallel. It succeeds if at least one backend accepts the
// write.
func (s *Store) storeEvent(ctx context.Context, event interface{}, canonicalBytes, fullBytes []byte, expectedHash string) (result *StoreResult, err error) {
	if s.telemetry != nil {
		var done func(error)
		ctx, done = s.telemetry.TrackOperation(ctx, "eventstore.store")
		defer func() { done(err) }()
	}

	if s.validator != nil {
		if err := s.validator.ValidateBytes(fullBytes); err != nil {
			return nil, fmt.Errorf("eventstore: structural validation: %w", err)
		}
	}

	if s.versionChecker != nil {
		if versioned, ok := event.(interface{ SchemaVersion() int }); ok {
			supported, verr := s.versionChecker.Supported(versioned.SchemaVersion())
			if verr != nil {
				return nil, fmt.Errorf("eventstore: check schema version: %w", verr)
			}
			if !supported {
				return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchemaVersion, versioned.SchemaVersion())
			}
		}
	}

	hash, err := s.calculateHash(event)
	if err != nil {
		return nil, fmt.Errorf("eventstore: compute hash: %w", err)
	}
	if expectedHash != "" {
		normalizedExpected, err := hashcodec.Normalize(expectedHash)
		if err != nil {
			return nil, fmt.Errorf("eventstore: normalize expected hash: %w", err)
		}
		if normalizedExpected != hash {
			return nil, fmt.Errorf("eventstore: computed hash %s does not match expected %s, refusing to store", hash, normalizedExpected)
		}
	}

	result = &StoreResult{Hash: hash}
	var mu sync.Mutex
	var wg sync.WaitGroup
	anySuccess := false

	record := func(outcome BackendOutcome) {
		mu.Lock()
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.OK {
			anySuccess = true
		} else {
			s.stats.incr(&s.stats.Errors)
		}
		mu.Unlock()
	}

	if s.cas != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			canonicalCID, err := s.cas.PutCanonical(ctx, canonicalBytes)
			if err != nil {
				record(BackendOutcome{Backend: string(TierCAS) + ":canonical", Err: err})
				return
			}
			eventCID, err := s.cas.PutFull(ctx, fullBytes)
			if err != nil {
				record(BackendOutcome{Backend: string(TierCAS) + ":full", Err: err})
				return
			}
			mu.Lock()
			result.CanonicalCID = canonicalCID
			result.EventCID = eventCID
			mu.Unlock()
			s.stats.incr(&s.stats.CASStores)
			if s.telemetry != nil {
				telemetry.AddSpanEvent(ctx, "eventstore.backend_stored", telemetry.StoreOperation(string(TierCAS), "write")...)
			}
			record(BackendOutcome{Backend: string(TierCAS), OK: true})
		}()
	}

	if s.object != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.object.PutBody(ctx, hash, fullBytes); err != nil {
				record(BackendOutcome{Backend: string(TierObject) + ":body", Err: err})
				return
			}
			sidecar := SidecarRecord{Hash: hash, StoredAt: time.Now()}
			mu.Lock()
			sidecar.CID = result.EventCID
			mu.Unlock()
			if err := s.object.PutSidecar(ctx, hash, sidecar); err != nil {
				record(BackendOutcome{Backend: string(TierObject) + ":sidecar", Err: err})
				return
			}
			s.stats.incr(&s.stats.ObjectStores)
			if s.telemetry != nil {
				telemetry.AddSpanEvent(ctx, "eventstore.backend_stored", telemetry.StoreOperation(string(TierObject), "write")...)
			}
			record(BackendOutcome{Backend: string(TierObject), OK: true})
		}()
	}

	if s.cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.cache.Set(ctx, hash, fullBytes, s.ttl); err != nil {
				record(BackendOutcome{Backend: string(TierCache), Err: err})
				return
			}
			record(BackendOutcome{Backend: string(TierCache), OK: true})
		}()
	}

	wg.Wait()

	if !anySuccess {
		return result, fmt.Errorf("eventstore: all backends failed to store event %s", hash)
	}
	s.stats.incr(&s.stats.Stored)
	return result, nil
}

// retrieveEvent reads raw bytes for hash, consulting cache, then the
// content-addressed tier, then the object tier, and returns the first
// non-empty hit; TypedStore.RetrieveByHash integrity-checks it against hash
// once it is parsed. If requireSig is set and a tier returns a
// signature-less canonical copy, retrieval falls through to the next tier.
func (s *Store) retrieveEvent(ctx context.Context, hash string, opts RetrieveOptions, hasSig func([]byte) bool) (data []byte, tier RetrievalTier, err error) {
	if s.telemetry != nil {
		var done func(error)
		ctx, done = s.telemetry.TrackOperation(ctx, "eventstore.retrieve")
		defer func() { done(err) }()
	}

	tiers := []struct {
		name RetrievalTier
		fn   func() ([]byte, bool, error)
	}{
		{TierCache, func() ([]byte, bool, error) {
			if s.cache == nil {
				return nil, false, nil
			}
			return s.cache.Get(ctx, hash)
		}},
		{TierCAS, func() ([]byte, bool, error) {
			if s.cas == nil || s.object == nil {
				return nil, false, nil
			}
			sidecar, ok, err := s.object.GetSidecar(ctx, hash)
			if err != nil || !ok || sidecar.CID == "" {
				return nil, false, err
			}
			if err := verifyDigest(sidecar.CID, hash); err != nil {
				s.stats.incr(&s.stats.Errors)
				return nil, false, nil
			}
			data, err := s.cas.Get(ctx, sidecar.CID)
			if err != nil {
				return nil, false, nil
			}
			return data, true, nil
		}},
		{TierObject, func() ([]byte, bool, error) {
			if s.object == nil {
				return nil, false, nil
			}
			return s.object.GetBody(ctx, hash)
		}},
	}

	for _, tier := range tiers {
		data, ok, err := tier.fn()
		if err != nil {
			s.stats.incr(&s.stats.Errors)
			continue
		}
		if !ok {
			if tier.name == TierCache {
				s.stats.incr(&s.stats.CacheMisses)
			}
			continue
		}
		if tier.name == TierCache {
			s.stats.incr(&s.stats.CacheHits)
		}

		if opts.RequireSig && hasSig != nil && !hasSig(data) {
			continue
		}

		// The raw-bytes integrity re-check (recomputed hash == hash) happens
		// one level up, where the caller parses the event and can call
		// calculateHash on the typed value.

		if tier.name != TierCache && s.cache != nil && (hasSig == nil || hasSig(data)) {
			_ = s.cache.Set(ctx, hash, data, s.ttl)
		}

		s.stats.incr(&s.stats.Retrieved)
		return data, tier.name, nil
	}

	if opts.RequireSig {
		return nil, "", ErrNoSignedCopy
	}
	return nil, "", ErrNotFound
}

// retrieveByCid fetches directly from the content-addressed tier.
func (s *Store) retrieveByCid(ctx context.Context, cidStr string) ([]byte, error) {
	if s.cas == nil {
		return nil, fmt.Errorf("eventstore: content-addressed backend not configured")
	}
	data, err := s.cas.Get(ctx, cidStr)
	if err != nil {
		return nil, fmt.Errorf("eventstore: retrieve by cid %s: %w", cidStr, err)
	}
	return data, nil
}

// testConnectivity pings every configured backend and returns a map of
// backend name to error (nil entries mean healthy).
func (s *Store) testConnectivity(ctx context.Context) map[string]error {
	results := make(map[string]error)
	if s.cache != nil {
		results[string(TierCache)] = s.cache.Ping(ctx)
	}
	if s.cas != nil {
		results[string(TierCAS)] = s.cas.Ping(ctx)
	}
	if s.object != nil {
		results[string(TierObject)] = s.object.Ping(ctx)
	}
	return results
}

// close releases resources held by backends that need explicit teardown.
func (s *Store) close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}
