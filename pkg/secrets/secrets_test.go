package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer(strings.Repeat("k", 32))
	require.NoError(t, err)

	sealed, err := sealer.Seal("gateway-password")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "gateway-password")

	plain, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "gateway-password", plain)
}

func TestSealerRejectsShortKey(t *testing.T) {
	_, err := NewSealer("short")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestSealerOpenRejectsTampering(t *testing.T) {
	sealer, err := NewSealer(strings.Repeat("k", 32))
	require.NoError(t, err)

	sealed, err := sealer.Seal("secret")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = sealer.Open(sealed)
	require.ErrorIs(t, err, ErrDecrypt)
}
