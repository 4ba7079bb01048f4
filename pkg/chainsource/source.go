// Package chainsource selects and runs exactly one anchor source at a time,
// a streaming WebSocket of block traces, or an externally-pushed HTTP
// webhook, and normalizes both into the common AnchoredEvent schema.
package chainsource

import (
	"context"

	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
)

// Source produces normalized anchored events until Stop is called or the
// underlying transport fails unrecoverably.
type Source interface {
	// Start begins delivering events to sink. sink returns the processing
	// outcome for the event it was handed; a source that cannot make use of
	// that outcome (streaming has no caller waiting on it) may discard it.
	// Start returns once the source has stopped, either because Stop was
	// called or because of an unrecoverable error.
	Start(ctx context.Context, sink func(ingestmodel.AnchoredEvent) ingestmodel.IngestOutcome) error
	// Stop gracefully halts the source so Start can return.
	Stop(ctx context.Context) error
	// Name identifies the source for logging ("streaming", "push").
	Name() string
}
