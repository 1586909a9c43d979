package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashSecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$"))
	assert.NoError(t, VerifySecret(hash, "correct-horse-battery-staple"))
	assert.Error(t, VerifySecret(hash, "wrong-secret"))
}

func TestHashSecretRejectsOver72Bytes(t *testing.T) {
	_, err := HashSecret(strings.Repeat("a", 100))
	assert.Error(t, err)
}

func TestHashSecretWithCostValidatesRange(t *testing.T) {
	_, err := HashSecretWithCost("s", bcrypt.MinCost-1)
	assert.Error(t, err)
	_, err = HashSecretWithCost("s", bcrypt.MaxCost+1)
	assert.Error(t, err)

	hash, err := HashSecretWithCost("s", bcrypt.MinCost)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestNeedsRehash(t *testing.T) {
	low, err := HashSecretWithCost("s", 4)
	require.NoError(t, err)
	same, err := HashSecretWithCost("s", DefaultBcryptCost)
	require.NoError(t, err)

	needs, err := NeedsRehash(low, DefaultBcryptCost)
	require.NoError(t, err)
	assert.True(t, needs)

	needs, err = NeedsRehash(same, DefaultBcryptCost)
	require.NoError(t, err)
	assert.False(t, needs)

	_, err = NeedsRehash("not-a-hash", DefaultBcryptCost)
	assert.Error(t, err)
}
