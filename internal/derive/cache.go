package derive

import "sync"

// DerivedPublicKeyCache memoizes DeriveChildPublicKey results keyed by
// (callerID, canonicalPath). Derivation is pure, so a cache hit and a cache
// miss are behaviorally identical; this exists purely to avoid repeating
// scalar multiplication for callers that look up the same address
// repeatedly in one process (e.g. a CLI or UI driving many lookups against
// a stable root key).
type DerivedPublicKeyCache struct {
	mu    sync.Mutex
	byKey map[cacheKey]*ChildPublicKey
}

type cacheKey struct {
	callerID string
	path     string
}

// NewDerivedPublicKeyCache constructs an empty cache.
func NewDerivedPublicKeyCache() *DerivedPublicKeyCache {
	return &DerivedPublicKeyCache{byKey: make(map[cacheKey]*ChildPublicKey)}
}

// Get derives the child public key, consulting and populating the cache.
// root is assumed constant for the lifetime of the cache; callers that
// rotate the root key should construct a new cache.
func (c *DerivedPublicKeyCache) Get(root *RootPublicKey, callerID, canonicalPath string) (*ChildPublicKey, error) {
	key := cacheKey{callerID: callerID, path: canonicalPath}

	c.mu.Lock()
	if hit, ok := c.byKey[key]; ok {
		c.mu.Unlock()
		return hit, nil
	}
	c.mu.Unlock()

	child, err := DeriveChildPublicKey(root, callerID, canonicalPath)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byKey[key] = child
	c.mu.Unlock()
	return child, nil
}
