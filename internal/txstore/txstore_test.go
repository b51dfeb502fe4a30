package txstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryStorePutThenTake(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("key", []byte("payload"))

	value, ok := store.Take("key")
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), value)
}

func TestInMemoryStoreTakeConsumesTheValue(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("key", []byte("payload"))

	_, _ = store.Take("key")
	_, ok := store.Take("key")
	assert.False(t, ok, "a second Take for the same key must report absence")
}

func TestInMemoryStoreTakeMissingKey(t *testing.T) {
	store := NewInMemoryStore()
	_, ok := store.Take("missing")
	assert.False(t, ok)
}

func TestInMemoryStorePutOverwrites(t *testing.T) {
	store := NewInMemoryStore()
	store.Put("key", []byte("first"))
	store.Put("key", []byte("second"))

	value, ok := store.Take("key")
	assert.True(t, ok)
	assert.Equal(t, []byte("second"), value)
}
