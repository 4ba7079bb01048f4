// Package handlerregistry maps a numeric event type code to the downstream
// handler responsible for it. Handlers are external collaborators; this
// package only holds the wiring.
package handlerregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
)

// Handler processes a single enriched event that has passed every
// ingestion-pipeline check.
type Handler func(ctx context.Context, event ingestmodel.EnrichedEvent) error

// Registry is a numeric-type to Handler mapping, immutable once wiring is
// complete: Register is meant to be called during startup, Lookup on the
// hot ingestion path.
type Registry struct {
	mu       sync.RWMutex
	handlers map[int]Handler
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[int]Handler)}
}

// Register wires handler for typeCode. Registering the same code twice is an
// error: silently overwriting a handler would make dispatch order-dependent.
func (r *Registry) Register(typeCode int, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[typeCode]; exists {
		return fmt.Errorf("handlerregistry: type code %d already registered", typeCode)
	}
	r.handlers[typeCode] = handler
	return nil
}

// Lookup returns the handler for typeCode, if any.
func (r *Registry) Lookup(typeCode int) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typeCode]
	return h, ok
}
