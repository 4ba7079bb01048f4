package authzverify

import (
	"context"
	"sync"
	"time"
)

// accountCache memoizes ChainClient.GetAccount results for ttl, so the
// per-anchor authorization check does not round-trip to the chain RPC node
// on every event.
type accountCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	client  ChainClient
}

type cacheEntry struct {
	info      *AccountInfo
	err       error
	expiresAt time.Time
}

func newAccountCache(client ChainClient, ttl time.Duration) *accountCache {
	return &accountCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		client:  client,
	}
}

func (c *accountCache) get(ctx context.Context, account string) (*AccountInfo, error) {
	if entry, ok := c.lookup(account); ok {
		return entry.info, entry.err
	}

	info, err := c.client.GetAccount(ctx, account)

	c.mu.Lock()
	c.entries[account] = cacheEntry{info: info, err: err, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return info, err
}

func (c *accountCache) lookup(account string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[account]
	if !ok || time.Now().After(entry.expiresAt) {
		return cacheEntry{}, false
	}
	return entry, true
}
