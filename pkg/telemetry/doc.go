// Package telemetry provides OpenTelemetry tracing and metrics for the
// anchor ingestion pipeline.
//
// # Tracing and metrics
//
// Initialize at process startup:
//
//	p, err := telemetry.New(ctx, &telemetry.Config{
//		ServiceName:  "anchor-ingestor",
//		OTLPEndpoint: "otel-collector:4317",
//		Enabled:      true,
//	})
//	defer p.Shutdown(ctx)
//
// Track a pipeline step:
//
//	ctx, finish := p.TrackOperation(ctx, "ingest.process",
//		telemetry.AnchorAttrs(anchor.Hash, anchor.Type, meta.BlockNum, meta.TrxID, meta.ActionOrdinal, meta.Source)...)
//	defer func() { finish(err) }()
package telemetry
