package handlerregistry

import (
	"context"
	"testing"

	"github.com/provenance-network/anchor-ingestor/pkg/ingestmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()
	called := false

	err := r.Register(21, func(ctx context.Context, event ingestmodel.EnrichedEvent) error {
		called = true
		return nil
	})
	require.NoError(t, err)

	h, ok := r.Lookup(21)
	require.True(t, ok)
	require.NoError(t, h(context.Background(), ingestmodel.EnrichedEvent{}))
	assert.True(t, called)
}

func TestRegistry_LookupMissingReturnsFalse(t *testing.T) {
	r := New()
	_, ok := r.Lookup(99)
	assert.False(t, ok)
}

func TestRegistry_DoubleRegisterFails(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(21, func(ctx context.Context, event ingestmodel.EnrichedEvent) error { return nil }))

	err := r.Register(21, func(ctx context.Context, event ingestmodel.EnrichedEvent) error { return nil })
	assert.Error(t, err)
}
