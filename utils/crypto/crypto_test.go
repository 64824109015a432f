package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateOpaqueToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateOpaqueToken()
	require.NoError(t, err)
	require.Len(t, token, OpaqueTokenBytes*2)

	_, err = hex.DecodeString(token)
	require.NoError(t, err)

	other, err := GenerateOpaqueToken()
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	a := HashToken("some-secret")
	require.Len(t, a, 64)
	require.Equal(t, a, HashToken("some-secret"))
	require.NotEqual(t, a, HashToken("some-other-secret"))
}
