package eventschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_AcceptsWellFormedEvent(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	raw := []byte(`{"v":1,"type":21,"author_pubkey":"abc123","created_at":1700000000,"body":{"x":1}}`)
	assert.NoError(t, v.ValidateBytes(raw))
}

func TestValidator_RejectsMissingRequiredField(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	raw := []byte(`{"type":21,"author_pubkey":"abc123","created_at":1700000000}`)
	assert.Error(t, v.ValidateBytes(raw))
}

func TestValidator_RejectsWrongType(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	raw := []byte(`{"v":"one","type":21,"author_pubkey":"abc123","created_at":1700000000}`)
	assert.Error(t, v.ValidateBytes(raw))
}

func TestVersionChecker_DefaultWindow(t *testing.T) {
	vc, err := NewVersionChecker("")
	require.NoError(t, err)

	ok, err := vc.Supported(1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = vc.Supported(2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVersionChecker_CustomWindow(t *testing.T) {
	vc, err := NewVersionChecker(">=2, <4")
	require.NoError(t, err)

	ok, err := vc.Supported(3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = vc.Supported(1)
	require.NoError(t, err)
	assert.False(t, ok)
}
