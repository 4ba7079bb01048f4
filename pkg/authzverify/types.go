// Package authzverify proves that a public key is authorized to act for an
// on-chain account under a named permission, resolving delegated authorities
// recursively with loop and depth guards, and caching account lookups with a
// TTL.
package authzverify

// KeyWeight is a direct key entry in a permission's authority.
type KeyWeight struct {
	PublicKey string `json:"public_key"`
	Weight    int    `json:"weight"`
}

// AccountWeight is a delegated entry: "actor@permission" is itself granted
// weight under this permission, and must be resolved recursively.
type AccountWeight struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
	Weight     int    `json:"weight"`
}

// WaitWeight is a time-delayed authority component. It never binds a signing
// key directly, so the resolver ignores it entirely.
type WaitWeight struct {
	WaitSec int `json:"wait_sec"`
	Weight  int `json:"weight"`
}

// Authority is one permission's full set of direct keys, delegated accounts,
// and time-delays.
type Authority struct {
	Threshold int             `json:"threshold"`
	Keys      []KeyWeight     `json:"keys"`
	Accounts  []AccountWeight `json:"accounts"`
	Waits     []WaitWeight    `json:"waits"`
}

// AccountInfo is the subset of an on-chain account's permission set the
// verifier needs: a map from permission name to its authority.
type AccountInfo struct {
	Account     string               `json:"account"`
	Permissions map[string]Authority `json:"permissions"`
}
