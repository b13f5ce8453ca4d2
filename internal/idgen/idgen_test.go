package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	for i := 0; i < 50; i++ {
		id, err := Generate()
		require.NoError(t, err)
		assert.True(t, IsValid(id), "generated id %q has wrong format", id)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("0123456789abcdef0123456789abcdef"))
	assert.False(t, IsValid("0123456789ABCDEF0123456789ABCDEF"))
	assert.False(t, IsValid("0123456789abcdef"))
	assert.False(t, IsValid("01234567-89ab-cdef-0123-456789abcdef"))
	assert.False(t, IsValid(""))
}

func TestUnique_SkipsTaken(t *testing.T) {
	calls := 0
	id, err := Unique(func(candidate string) bool {
		calls++
		return calls == 1
	})
	require.NoError(t, err)
	assert.True(t, IsValid(id))
	assert.Equal(t, 2, calls)
}

func TestUnique_Exhausted(t *testing.T) {
	_, err := Unique(func(string) bool { return true })
	assert.ErrorIs(t, err, ErrExhausted)
}
