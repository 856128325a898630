package keystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestTokenStorage(t *testing.T) {
	keyring.MockInit()

	t.Run("Should report a missing token", func(t *testing.T) {
		require.NoError(t, DeleteToken())

		_, err := LoadToken()

		assert.ErrorIs(t, err, ErrNoToken)
		assert.False(t, IsTokenStored())
	})

	t.Run("Should round-trip a trimmed token", func(t *testing.T) {
		require.NoError(t, SaveToken("  pat-na1-abc \n"))

		token, err := LoadToken()
		require.NoError(t, err)
		assert.Equal(t, "pat-na1-abc", token)
		assert.True(t, IsTokenStored())
	})

	t.Run("Should reject an empty token", func(t *testing.T) {
		assert.Error(t, SaveToken("   "))
	})

	t.Run("Should delete a stored token", func(t *testing.T) {
		require.NoError(t, SaveToken("pat-na1-abc"))
		require.NoError(t, DeleteToken())

		assert.False(t, IsTokenStored())
		assert.NoError(t, DeleteToken())
	})
}
