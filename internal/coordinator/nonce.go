package coordinator

import (
	"context"
	"sync"
)

// NonceCache memoizes the coordinator-chain access-key nonce per public
// key and enforces the invariant that once a signed-delegate
// has been emitted for a key, the cached nonce for that key must be
// dropped immediately so the next sign refetches rather than replaying.
//
// Locking idiom grounded on internal/mpc/grpc/client.go's connection-cache
// (sync.RWMutex guarding a map); the gRPC transport it guarded there is
// deleted along with the rest of the node-to-node protocol, only the
// locking pattern is reused.
type NonceCache struct {
	mu     sync.RWMutex
	nonces map[string]uint64
}

// NewNonceCache constructs an empty cache.
func NewNonceCache() *NonceCache {
	return &NonceCache{nonces: make(map[string]uint64)}
}

// fetchFunc refetches the current nonce for a public key from the chain.
type fetchFunc func(ctx context.Context, publicKey string) (uint64, error)

// Next returns the access-key nonce currently believed valid for
// publicKey, consulting the cache first and calling fetch only on a cache
// miss. Because Invalidate is called immediately after every
// signed-delegate is emitted, a miss here always means "no delegate has
// been built for this key since the last fetch", the nonce is safe to
// read once and reuse until the next invalidation.
func (c *NonceCache) Next(ctx context.Context, publicKey string, fetch fetchFunc) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.nonces[publicKey]; ok {
		return n, nil
	}

	n, err := fetch(ctx, publicKey)
	if err != nil {
		return 0, err
	}
	c.nonces[publicKey] = n
	return n, nil
}

// Invalidate drops any cached nonce for publicKey. Called immediately
// after a signed-delegate is constructed for that key.
func (c *NonceCache) Invalidate(publicKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nonces, publicKey)
}

// Peek returns the cached nonce for publicKey without fetching, used only
// by tests to observe cache state.
func (c *NonceCache) Peek(publicKey string) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nonces[publicKey]
	return n, ok
}
