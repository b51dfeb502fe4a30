package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceCacheFetchesOnceThenCaches(t *testing.T) {
	cache := NewNonceCache()
	calls := 0
	fetch := func(ctx context.Context, publicKey string) (uint64, error) {
		calls++
		return 42, nil
	}

	n1, err := cache.Next(context.Background(), "ed25519:abc", fetch)
	require.NoError(t, err)
	n2, err := cache.Next(context.Background(), "ed25519:abc", fetch)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), n1)
	assert.Equal(t, uint64(42), n2)
	assert.Equal(t, 1, calls)
}

func TestNonceInvalidatedAfterDelegateEmission(t *testing.T) {
	cache := NewNonceCache()
	calls := 0
	fetch := func(ctx context.Context, publicKey string) (uint64, error) {
		calls++
		return uint64(calls), nil
	}

	n1, err := cache.Next(context.Background(), "ed25519:abc", fetch)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n1)

	// Simulate a signed-delegate having just been emitted for this key.
	cache.Invalidate("ed25519:abc")

	_, ok := cache.Peek("ed25519:abc")
	assert.False(t, ok)

	n2, err := cache.Next(context.Background(), "ed25519:abc", fetch)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n2)
	assert.Equal(t, 2, calls)
}

func TestNonceCacheKeysAreIndependentPerPublicKey(t *testing.T) {
	cache := NewNonceCache()
	fetchA := func(ctx context.Context, publicKey string) (uint64, error) { return 1, nil }
	fetchB := func(ctx context.Context, publicKey string) (uint64, error) { return 99, nil }

	a, err := cache.Next(context.Background(), "ed25519:a", fetchA)
	require.NoError(t, err)
	b, err := cache.Next(context.Background(), "ed25519:b", fetchB)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), a)
	assert.Equal(t, uint64(99), b)
}
