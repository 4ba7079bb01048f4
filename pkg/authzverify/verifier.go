package authzverify

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// MaxDepth bounds delegation recursion. A chain deeper than this is treated
// as a misconfiguration, not a cycle, but the effect is the same: deny.
const MaxDepth = 5

// DefaultAccountCacheTTL is how long a fetched account's permission set is
// trusted before the next check re-fetches it.
const DefaultAccountCacheTTL = 5 * time.Minute

// Mode controls what happens when the chain RPC is unavailable or the
// requested permission is absent.
type Mode int

const (
	// ModeStrict denies on any RPC failure or missing permission. This is
	// the default: a pipeline that silently authorizes on RPC outage would
	// turn an infrastructure blip into a security hole.
	ModeStrict Mode = iota
	// ModePermissive allows on RPC failure or missing permission, logging a
	// warning. Intended for local development only.
	ModePermissive
)

// Verifier resolves whether a public key is authorized on an account under a
// named permission, recursing through delegated accounts.
type Verifier struct {
	cache  *accountCache
	mode   Mode
	logger *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMode overrides the default strict mode.
func WithMode(mode Mode) Option {
	return func(v *Verifier) { v.mode = mode }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// NewVerifier builds a Verifier against client, caching account lookups for
// ttl (DefaultAccountCacheTTL if ttl <= 0).
func NewVerifier(client ChainClient, ttl time.Duration, opts ...Option) *Verifier {
	if ttl <= 0 {
		ttl = DefaultAccountCacheTTL
	}
	v := &Verifier{
		cache:  newAccountCache(client, ttl),
		mode:   ModeStrict,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify proves pubkey is authorized for account under permission, resolving
// delegated account-permission entries recursively.
func (v *Verifier) Verify(ctx context.Context, account, permission, pubkey string) (bool, error) {
	visited := make(map[string]bool)
	return v.resolve(ctx, account, permission, pubkey, visited, 0)
}

func (v *Verifier) resolve(ctx context.Context, account, permission, pubkey string, visited map[string]bool, depth int) (bool, error) {
	if depth > MaxDepth {
		v.logger.Warn("authzverify: max delegation depth exceeded",
			"account", account, "permission", permission, "depth", depth)
		return false, nil
	}

	visitKey := fmt.Sprintf("%s@%s", account, permission)
	if visited[visitKey] {
		v.logger.Warn("authzverify: delegation cycle detected", "visit_key", visitKey)
		return false, nil
	}
	visited[visitKey] = true

	info, err := v.cache.get(ctx, account)
	if err != nil || info == nil {
		if v.mode == ModePermissive {
			v.logger.Warn("authzverify: account fetch failed, permissive mode allows",
				"account", account, "error", err)
			return true, nil
		}
		return false, fmt.Errorf("authzverify: fetch account %q: %w", account, err)
	}

	authority, ok := info.Permissions[permission]
	if !ok {
		if v.mode == ModePermissive {
			v.logger.Warn("authzverify: permission absent, permissive mode allows",
				"account", account, "permission", permission)
			return true, nil
		}
		return false, nil
	}

	for _, k := range authority.Keys {
		if k.PublicKey == pubkey {
			return true, nil
		}
	}

	for _, a := range authority.Accounts {
		authorized, err := v.resolve(ctx, a.Actor, a.Permission, pubkey, visited, depth+1)
		if err != nil {
			return false, err
		}
		if authorized {
			return true, nil
		}
	}

	// Waits are time-delayed escalations; they never bind a signing key, so
	// they contribute nothing to key authorization.
	return false, nil
}
