package seal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	box, err := New("s3cret")
	require.NoError(t, err)

	sealed, err := box.Seal("access-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "access-token")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "access-token", plain)
}

func TestSealUsesFreshNonce(t *testing.T) {
	box, err := New("s3cret")
	require.NoError(t, err)

	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	assert.NotEqual(t, a, b)
}

func TestOpenWithOtherKey(t *testing.T) {
	a, _ := New("one")
	b, _ := New("two")

	sealed, err := a.Seal("token")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = a.Open("not base64 !!")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
