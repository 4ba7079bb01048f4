// Package ingest implements the single entry point for anchors observed on
// any chain source: dedup, retrieve, hash-check, signature-check,
// authorization-check, type-check, enrich, and dispatch.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/provenance-network/anchor-ingestor/pkg/authzverify"
	"github.com/provenance-network/anchor-ingestor/pkg/handlerregistry"
	"github.com/provenance-network/anchor-ingestor/pkg/hashcodec"
	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
	"github.com/provenance-network/anchor-ingestor/pkg/sigverify"
	"github.com/provenance-network/anchor-ingestor/pkg/telemetry"
)

// MaxProcessedHashes bounds the primary dedup set's default size.
const MaxProcessedHashes = 10000

// DefaultPermission is used when chain metadata does not specify one.
const DefaultPermission = "active"

// Status is the terminal outcome of processing one anchor.
type Status string

const (
	StatusProcessed         Status = "processed"
	StatusDuplicate         Status = "duplicate"
	StatusNotFound          Status = "not_found"
	StatusInvalidSignature  Status = "invalid_signature"
	StatusUnauthorizedKey   Status = "unauthorized_key"
	StatusError             Status = "error"
)

// EventRetriever abstracts the subset of the event store the processor
// needs, so it can be tested without a real three-tier store.
type EventRetriever interface {
	RetrieveByHash(ctx context.Context, hash string, requireSig bool) (*ingestmodel.Event, ingestmodel.RetrievalSource, error)
	RetrieveByCID(ctx context.Context, cid string) (*ingestmodel.Event, error)
	CalculateHash(event *ingestmodel.Event) (string, error)
}

// Result is the record returned for every processed anchor. Errors never
// propagate out of Process; they are captured here. ID is a fresh
// identifier minted for every call, suitable for correlating a result with
// its audit-log entry or span.
type Result struct {
	ID         string
	Status     Status
	EventHash  string
	EventType  string
	Reason     string
	Err        error
	DurationMs int64
}

// Processor is the anchor-path entry point.
type Processor struct {
	store     EventRetriever
	sigOpts   sigverify.Options
	authz     *authzverify.Verifier
	handlers  *handlerregistry.Registry
	logger    *slog.Logger
	telemetry *telemetry.Provider

	mu               sync.Mutex
	processed        map[string]struct{}
	secondaryDedup    map[string]struct{}
	maxProcessed     int
	clearedCount     uint64
	counters         map[Status]uint64
}

// New builds a Processor. telemetry may be nil to skip instrumentation.
func New(store EventRetriever, sigOpts sigverify.Options, authz *authzverify.Verifier, handlers *handlerregistry.Registry, logger *slog.Logger, tp *telemetry.Provider) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:          store,
		sigOpts:        sigOpts,
		authz:          authz,
		handlers:       handlers,
		logger:         logger,
		telemetry:      tp,
		processed:      make(map[string]struct{}),
		secondaryDedup: make(map[string]struct{}),
		maxProcessed:   MaxProcessedHashes,
		counters:       make(map[Status]uint64),
	}
}

// Counters returns a snapshot of terminal-state counts.
func (p *Processor) Counters() map[Status]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Status]uint64, len(p.counters))
	for k, v := range p.counters {
		out[k] = v
	}
	return out
}

// ClearSecondaryDedup is called by the code feeding anchors into Process
// (cmd/ingestord's chain-source sink) whenever the block number changes, per
// spec.md's "secondary map is cleared between blocks by the caller".
func (p *Processor) ClearSecondaryDedup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secondaryDedup = make(map[string]struct{})
}

func (p *Processor) recordTerminal(status Status) {
	p.mu.Lock()
	p.counters[status]++
	p.mu.Unlock()
}

// Process ingests one on-chain anchor, given the action payload and the
// chain metadata that produced it.
func (p *Processor) Process(ctx context.Context, anchor ingestmodel.Anchor, meta ingestmodel.ChainMetadata) (result Result) {
	start := time.Now()
	logFields := []any{
		"block_num", meta.BlockNum, "trx_id", meta.TrxID,
		"action_ordinal", meta.ActionOrdinal, "source", meta.Source,
	}

	if p.telemetry != nil {
		var done func(error)
		ctx, done = p.telemetry.TrackOperation(ctx, "ingest.process",
			telemetry.AnchorAttrs(anchor.Hash, anchor.Type, meta.BlockNum, meta.TrxID, meta.ActionOrdinal, meta.Source)...)
		defer func() { done(result.Err) }()
	}

	hash, err := hashcodec.Normalize(anchor.Hash)
	if err != nil {
		p.logger.Warn("ingest.normalize_failed", append(logFields, "error", err)...)
		return p.finish(StatusError, "", "", fmt.Errorf("ingest: normalize hash: %w", err), start)
	}
	logFields = append(logFields, "event_hash", hash)

	secondaryKey := fmt.Sprintf("%d:%s:%d", meta.BlockNum, meta.TrxID, meta.ActionOrdinal)

	p.mu.Lock()
	_, dup := p.processed[hash]
	_, secondaryDup := p.secondaryDedup[secondaryKey]
	p.mu.Unlock()
	if dup || secondaryDup {
		p.logger.Info("ingest.duplicate", logFields...)
		return p.finish(StatusDuplicate, hash, "", nil, start)
	}

	event, retrievalSource, err := p.retrieve(ctx, anchor, logFields)
	if err != nil {
		p.logger.Warn("ingest.retrieve_failed", append(logFields, "error", err)...)
		return p.finish(StatusNotFound, hash, "", err, start)
	}
	logFields = append(logFields, "retrieval_source", retrievalSource)
	if p.telemetry != nil {
		telemetry.AddSpanEvent(ctx, "ingest.retrieved")
	}

	recomputed, err := p.store.CalculateHash(event)
	if err != nil || recomputed != hash {
		p.logger.Warn("ingest.hash_mismatch", append(logFields, "recomputed", recomputed, "error", err)...)
		return p.finish(StatusError, hash, "", fmt.Errorf("ingest: hash mismatch for %s", hash), start)
	}
	p.logger.Debug("ingest.hash_ok", logFields...)

	sigResult := sigverify.Verify(*event, p.sigOpts)
	if !sigResult.Valid {
		p.logger.Warn("ingest.signature_failed", append(logFields, "reason", sigResult.Reason)...)
		return p.finish(StatusInvalidSignature, hash, "", sigResult.Err, start)
	}
	p.logger.Debug("ingest.sig_ok", logFields...)
	if p.telemetry != nil {
		telemetry.AddSpanEvent(ctx, "ingest.signature_verified")
	}

	permission := anchor.Permission
	if permission == "" {
		permission = DefaultPermission
	}
	if p.telemetry != nil {
		telemetry.AddSpanEvent(ctx, "ingest.authorizing", telemetry.AuthzOperation(anchor.Author, permission, 0)...)
	}
	authzStart := time.Now()
	authorized, err := p.authz.Verify(ctx, anchor.Author, permission, event.AuthorPubkey)
	authzDuration := time.Since(authzStart).Milliseconds()
	if err != nil || !authorized {
		p.logger.Warn("ingest.authorization_failed", append(logFields, "duration_ms", authzDuration, "error", err)...)
		return p.finish(StatusUnauthorizedKey, hash, "", fmt.Errorf("ingest: unauthorized key for account %s", anchor.Author), start)
	}
	p.logger.Debug("ingest.auth_ok", append(logFields, "duration_ms", authzDuration)...)

	eventTypeName, typeErr := p.checkType(anchor.Type, event.Type)
	if typeErr != nil {
		p.logger.Warn("ingest.type_mismatch", append(logFields, "error", typeErr)...)
		return p.finish(StatusError, hash, eventTypeName, typeErr, start)
	}

	enriched := ingestmodel.EnrichedEvent{
		Event:              *event,
		BlockchainVerified: true,
		BlockchainMetadata: ingestmodel.BlockchainMetadata{
			AnchorHash:      hash,
			BlockNum:        meta.BlockNum,
			BlockID:         meta.BlockID,
			TrxID:           meta.TrxID,
			ActionOrdinal:   meta.ActionOrdinal,
			Source:          meta.Source,
			RetrievalSource: string(retrievalSource),
			IngestedAt:      time.Now().Unix(),
		},
	}

	handler, ok := p.handlers.Lookup(anchor.Type)
	if !ok {
		p.logger.Warn("ingest.no_handler", append(logFields, "event_type", anchor.Type)...)
	} else if err := handler(ctx, enriched); err != nil {
		p.logger.Error("ingest.dispatch_failed", append(logFields, "error", err)...)
		return p.finish(StatusError, hash, eventTypeName, fmt.Errorf("ingest: handler dispatch: %w", err), start)
	} else {
		p.logger.Info("ingest.dispatched", append(logFields, "event_type", eventTypeName)...)
	}

	p.markProcessed(hash, secondaryKey)

	return p.finish(StatusProcessed, hash, eventTypeName, nil, start)
}

func (p *Processor) retrieve(ctx context.Context, anchor ingestmodel.Anchor, logFields []any) (*ingestmodel.Event, ingestmodel.RetrievalSource, error) {
	if anchor.EventCID != "" {
		event, err := p.store.RetrieveByCID(ctx, anchor.EventCID)
		if err == nil {
			return event, ingestmodel.RetrievalSourceCID, nil
		}
		p.logger.Warn("ingest.cid_retrieve_failed_falling_back", append(logFields, "cid", anchor.EventCID, "error", err)...)
	}

	hash, err := hashcodec.Normalize(anchor.Hash)
	if err != nil {
		return nil, "", err
	}
	return p.store.RetrieveByHash(ctx, hash, true)
}

// checkType resolves the anchor's numeric type to a name and checks it
// against the off-chain event's declared type (string or numeric). Unknown
// codes pass with a warning for forward compatibility.
func (p *Processor) checkType(anchorType int, eventType json.RawMessage) (string, error) {
	name, known := ingestmodel.TypeName(anchorType)
	if !known {
		p.logger.Warn("ingest.unknown_type_code", "type", anchorType)
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(eventType, &asString); err == nil {
		if asString != name {
			return name, fmt.Errorf("ingest: Type mismatch: event.type %q does not match anchor type %q", asString, name)
		}
		return name, nil
	}

	var asNumber int
	if err := json.Unmarshal(eventType, &asNumber); err == nil {
		if asNumber != anchorType {
			return name, fmt.Errorf("ingest: Type mismatch: event.type %d does not match anchor type %d", asNumber, anchorType)
		}
		return name, nil
	}

	return name, fmt.Errorf("ingest: Type mismatch: event.type is neither string nor number")
}

func (p *Processor) markProcessed(hash, secondaryKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed[hash] = struct{}{}
	p.secondaryDedup[secondaryKey] = struct{}{}

	if len(p.processed) > p.maxProcessed {
		p.processed = make(map[string]struct{})
		p.clearedCount++
		p.logger.Info("ingest.dedup_set_cleared", "cleared_count", p.clearedCount)
	}
}

func (p *Processor) finish(status Status, hash, eventType string, err error, start time.Time) Result {
	p.recordTerminal(status)
	return Result{
		ID:         uuid.New().String(),
		Status:     status,
		EventHash:  hash,
		EventType:  eventType,
		Err:        err,
		DurationMs: time.Since(start).Milliseconds(),
	}
}
