package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/provenance-network/anchor-ingestor/internal/config"
	"github.com/provenance-network/anchor-ingestor/pkg/authzverify"
	"github.com/provenance-network/anchor-ingestor/pkg/chainsource"
	"github.com/provenance-network/anchor-ingestor/pkg/eventschema"
	"github.com/provenance-network/anchor-ingestor/pkg/eventstore"
	"github.com/provenance-network/anchor-ingestor/pkg/handlerregistry"
	"github.com/provenance-network/anchor-ingestor/pkg/ingest"
	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
	"github.com/provenance-network/anchor-ingestor/pkg/sigverify"
	"github.com/provenance-network/anchor-ingestor/pkg/telemetry"
)

// Services holds every initialized subsystem the ingestor wires together at
// startup.
type Services struct {
	Config    *config.Config
	Telemetry *telemetry.Provider

	Store     *eventstore.Store
	Typed     *eventstore.TypedStore
	Authz     *authzverify.Verifier
	Handlers  *handlerregistry.Registry
	Processor *ingest.Processor
	Chain     *chainsource.Manager

	mu        sync.Mutex
	lastBlock uint64
	sawABlock bool
}

// NewServices initializes every subsystem the ingestor depends on. It
// returns an error instead of calling log.Fatal so the caller controls the
// process exit code.
func NewServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	s := &Services{Config: cfg}

	obsCfg := telemetry.DefaultConfig()
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obs, err := telemetry.New(ctx, obsCfg)
	if err != nil {
		logger.Warn("telemetry init skipped", "error", err)
		obs, _ = telemetry.New(ctx, &telemetry.Config{Enabled: false})
	}
	s.Telemetry = obs
	logger.Info("subsystem ready", "component", "telemetry")

	validator, err := eventschema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("event schema validator: %w", err)
	}
	versionChecker, err := eventschema.NewVersionChecker(eventschema.DefaultVersionConstraint)
	if err != nil {
		return nil, fmt.Errorf("event schema version checker: %w", err)
	}

	cache := eventstore.NewRedisCache(eventstore.RedisCacheConfig{
		Addr: cfg.CacheHost + ":" + cfg.CachePort,
	})
	cas := eventstore.NewIPFSStore(cfg.IPFSURL)
	object, err := eventstore.NewS3ObjectStore(ctx, eventstore.S3ObjectStoreConfig{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 object store: %w", err)
	}

	s.Store = eventstore.NewStore(cache, cas, object, validator,
		eventstore.WithVersionChecker(versionChecker),
		eventstore.WithTelemetry(s.Telemetry),
	)
	s.Typed = eventstore.NewTypedStore(s.Store)
	logger.Info("subsystem ready", "component", "eventstore", "ipfs", cfg.IPFSURL, "s3_bucket", cfg.S3Bucket)

	var authzMode authzverify.Mode
	if !cfg.RequireAccountAuth {
		authzMode = authzverify.ModePermissive
	}
	rpcClient := authzverify.NewRPCClient(cfg.RPCURL, 10*time.Second)
	s.Authz = authzverify.NewVerifier(rpcClient, cfg.AccountCacheTTL,
		authzverify.WithMode(authzMode),
		authzverify.WithLogger(logger),
	)
	logger.Info("subsystem ready", "component", "authzverify", "strict", cfg.RequireAccountAuth)

	s.Handlers = handlerregistry.New()
	registerDefaultHandlers(s.Handlers, logger)
	logger.Info("subsystem ready", "component", "handlerregistry")

	sigOpts := sigverify.Options{
		RequireSignature: true,
		AllowUnsigned:    cfg.AllowUnsignedEvents,
	}
	s.Processor = ingest.New(s.Typed, sigOpts, s.Authz, s.Handlers, logger, s.Telemetry)
	logger.Info("subsystem ready", "component", "ingest.Processor")

	s.Chain = chainsource.NewManager(s.consumeAnchoredEvent(logger), logger)
	logger.Info("subsystem ready", "component", "chainsource.Manager")

	return s, nil
}

// registerDefaultHandlers wires the numeric event types the ingestor
// recognizes to no-op dispatch handlers. A production deployment replaces
// these with handlers that act on the enriched event (index it, notify a
// queue, etc); the ingestor's own job ends at verified dispatch.
func registerDefaultHandlers(reg *handlerregistry.Registry, logger *slog.Logger) {
	for code := range map[int]string{21: "", 22: "", 23: "", 30: "", 31: "", 40: "", 41: "", 50: "", 60: ""} {
		code := code
		_ = reg.Register(code, func(ctx context.Context, event ingestmodel.EnrichedEvent) error {
			logger.Info("handler.dispatch", "type", event.BlockchainMetadata.AnchorHash, "code", code)
			return nil
		})
	}
}

// consumeAnchoredEvent bridges the chain-source manager's normalized
// AnchoredEvent stream into the Ingestion Processor: it unmarshals the
// action payload into the on-chain Anchor tuple, clears the secondary
// (block,trx,ordinal) dedup map on block rollover, logs the result, and
// hands the caller back the processor's outcome in the shared status
// vocabulary so a synchronous transport (the push source) can report it.
func (s *Services) consumeAnchoredEvent(logger *slog.Logger) func(ingestmodel.AnchoredEvent) ingestmodel.IngestOutcome {
	return func(evt ingestmodel.AnchoredEvent) ingestmodel.IngestOutcome {
		var anchor ingestmodel.Anchor
		if err := json.Unmarshal(evt.Payload, &anchor); err != nil {
			logger.Warn("ingest.malformed_payload", "error", err, "source", evt.Source)
			return ingestmodel.IngestOutcome{
				Status:      string(ingest.StatusError),
				ContentHash: evt.ContentHash,
				Error:       fmt.Sprintf("malformed payload: %v", err),
			}
		}
		anchor.Hash = evt.ContentHash

		s.mu.Lock()
		if !s.sawABlock || evt.BlockNum != s.lastBlock {
			s.Processor.ClearSecondaryDedup()
			s.lastBlock = evt.BlockNum
			s.sawABlock = true
		}
		s.mu.Unlock()

		meta := ingestmodel.ChainMetadata{
			BlockNum:      evt.BlockNum,
			BlockID:       evt.BlockID,
			TrxID:         evt.TrxID,
			ActionOrdinal: evt.ActionOrdinal,
			Source:        evt.Source,
		}

		result := s.Processor.Process(context.Background(), anchor, meta)
		logger.Info("ingest.result",
			"id", result.ID,
			"status", result.Status,
			"event_hash", result.EventHash,
			"duration_ms", result.DurationMs,
		)

		outcome := ingestmodel.IngestOutcome{
			Status:      string(result.Status),
			ContentHash: result.EventHash,
		}
		if result.Err != nil {
			outcome.Error = result.Err.Error()
		}
		return outcome
	}
}

// Close releases resources held by services that outlive a single request.
func (s *Services) Close(ctx context.Context) error {
	var firstErr error
	if s.Typed != nil {
		if err := s.Typed.Close(); err != nil {
			firstErr = err
		}
	}
	if s.Telemetry != nil {
		if err := s.Telemetry.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
