package authzverify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChainClient struct {
	accounts map[string]*AccountInfo
	err      error
}

func (f *fakeChainClient) GetAccount(ctx context.Context, account string) (*AccountInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.accounts[account]
	if !ok {
		return nil, errors.New("account not found")
	}
	return info, nil
}

func TestVerify_DirectKey(t *testing.T) {
	client := &fakeChainClient{accounts: map[string]*AccountInfo{
		"alice": {Permissions: map[string]Authority{
			"active": {Keys: []KeyWeight{{PublicKey: "pub-alice", Weight: 1}}},
		}},
	}}
	v := NewVerifier(client, time.Minute)

	ok, err := v.Verify(context.Background(), "alice", "active", "pub-alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(context.Background(), "alice", "active", "pub-mallory")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_RecursiveDelegation(t *testing.T) {
	client := &fakeChainClient{accounts: map[string]*AccountInfo{
		"dao": {Permissions: map[string]Authority{
			"active": {Accounts: []AccountWeight{{Actor: "multisig", Permission: "active", Weight: 1}}},
		}},
		"multisig": {Permissions: map[string]Authority{
			"active": {Keys: []KeyWeight{{PublicKey: "pub-signer", Weight: 1}}},
		}},
	}}
	v := NewVerifier(client, time.Minute)

	ok, err := v.Verify(context.Background(), "dao", "active", "pub-signer")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_CycleDetected(t *testing.T) {
	client := &fakeChainClient{accounts: map[string]*AccountInfo{
		"a": {Permissions: map[string]Authority{
			"active": {Accounts: []AccountWeight{{Actor: "b", Permission: "active", Weight: 1}}},
		}},
		"b": {Permissions: map[string]Authority{
			"active": {Accounts: []AccountWeight{{Actor: "a", Permission: "active", Weight: 1}}},
		}},
	}}
	v := NewVerifier(client, time.Minute)

	ok, err := v.Verify(context.Background(), "a", "active", "pub-nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_StrictModeDeniesOnRPCFailure(t *testing.T) {
	client := &fakeChainClient{err: errors.New("connection refused")}
	v := NewVerifier(client, time.Minute)

	ok, err := v.Verify(context.Background(), "alice", "active", "pub-alice")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestVerify_PermissiveModeAllowsOnRPCFailure(t *testing.T) {
	client := &fakeChainClient{err: errors.New("connection refused")}
	v := NewVerifier(client, time.Minute, WithMode(ModePermissive))

	ok, err := v.Verify(context.Background(), "alice", "active", "pub-alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_UnknownPermissionDeniesInStrictMode(t *testing.T) {
	client := &fakeChainClient{accounts: map[string]*AccountInfo{
		"alice": {Permissions: map[string]Authority{}},
	}}
	v := NewVerifier(client, time.Minute)

	ok, err := v.Verify(context.Background(), "alice", "owner", "pub-alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountCache_ReusesWithinTTL(t *testing.T) {
	calls := 0
	client := &countingClient{accounts: map[string]*AccountInfo{
		"alice": {Permissions: map[string]Authority{
			"active": {Keys: []KeyWeight{{PublicKey: "pub-alice"}}},
		}},
	}, calls: &calls}

	v := NewVerifier(client, time.Minute)
	_, _ = v.Verify(context.Background(), "alice", "active", "pub-alice")
	_, _ = v.Verify(context.Background(), "alice", "active", "pub-alice")

	assert.Equal(t, 1, calls)
}

type countingClient struct {
	accounts map[string]*AccountInfo
	calls    *int
}

func (c *countingClient) GetAccount(ctx context.Context, account string) (*AccountInfo, error) {
	*c.calls++
	info, ok := c.accounts[account]
	if !ok {
		return nil, errors.New("not found")
	}
	return info, nil
}
