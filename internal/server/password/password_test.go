package password

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct")
	require.NoError(t, err)
	require.NotEqual(t, "correct", hash)

	require.True(t, h.Verify(hash, "correct"))
	require.False(t, h.Verify(hash, "wrong"))
}

func TestVerify_MalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	require.False(t, h.Verify("not-a-bcrypt-hash", "anything"))
}

func TestNewBcryptHasher_DefaultCost(t *testing.T) {
	h := NewBcryptHasher(0)
	require.Equal(t, bcrypt.DefaultCost, h.cost)
}
