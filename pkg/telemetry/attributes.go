package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Ingestion-pipeline semantic convention attributes.
var (
	AttrEventHash       = attribute.Key("ingest.event_hash")
	AttrEventType       = attribute.Key("ingest.event_type")
	AttrBlockNum        = attribute.Key("ingest.block_num")
	AttrTrxID           = attribute.Key("ingest.trx_id")
	AttrActionOrdinal   = attribute.Key("ingest.action_ordinal")
	AttrChainSource     = attribute.Key("ingest.source")
	AttrRetrievalSource = attribute.Key("ingest.retrieval_source")
	AttrStatus          = attribute.Key("ingest.status")

	AttrStoreBackend = attribute.Key("eventstore.backend")
	AttrStoreTier    = attribute.Key("eventstore.tier")

	AttrAuthAccount    = attribute.Key("authz.account")
	AttrAuthPermission = attribute.Key("authz.permission")
	AttrAuthDepth      = attribute.Key("authz.depth")
)

// AnchorAttrs builds the correlating attribute set for a single anchor as it
// moves through the pipeline.
func AnchorAttrs(eventHash string, eventType int, blockNum uint64, trxID string, actionOrdinal int, source string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEventHash.String(eventHash),
		AttrBlockNum.Int64(int64(blockNum)),
		AttrTrxID.String(trxID),
		AttrActionOrdinal.Int(actionOrdinal),
		AttrChainSource.String(source),
	}
}

// StoreOperation builds attributes for an event-store backend operation.
func StoreOperation(backend, tier string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrStoreBackend.String(backend),
		AttrStoreTier.String(tier),
	}
}

// AuthzOperation builds attributes for an authorization resolution step.
func AuthzOperation(account, permission string, depth int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAuthAccount.String(account),
		AttrAuthPermission.String(permission),
		AttrAuthDepth.Int(depth),
	}
}

// SpanFromContext extracts the span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanStatus records an error on the current span, if any.
func SetSpanStatus(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
	}
}
