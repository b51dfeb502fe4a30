package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeStructuredPathsEqual(t *testing.T) {
	p1 := StructuredPath{Chain: 60, Domain: "example.com", Meta: map[string]interface{}{"a": 1, "b": 2}}
	p2 := StructuredPath{Chain: 60, Domain: "example.com", Meta: map[string]interface{}{"b": 2, "a": 1}}

	c1, err := CanonicalPath(p1)
	require.NoError(t, err)
	c2, err := CanonicalPath(p2)
	require.NoError(t, err)

	assert.Equal(t, c1, c2)
	assert.Equal(t, `{"chain":60,"domain":"example.com","meta":{"a":1,"b":2}}`, c1)
}

func TestCanonicalizeOmitsNullFields(t *testing.T) {
	raw := []byte(`{"b":2,"a":null,"c":{"x":null,"y":1}}`)
	got, err := Canonicalize(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2,"c":{"y":1}}`, got)
}

func TestCanonicalPathOpaqueString(t *testing.T) {
	got, err := CanonicalPath("m/44'/60'/0'/0/0")
	require.NoError(t, err)
	assert.Equal(t, "m/44'/60'/0'/0/0", got)
}
