package bankhash

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/mezonai/rollupstate/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountLeafHash_DependsOnEveryField(t *testing.T) {
	base := types.NewAccount(types.BytesToAddress([]byte{1}))
	base.SetBalance(1, uint256.NewInt(100))
	baseHash := AccountLeafHash(7, base)

	otherID := AccountLeafHash(8, base)
	assert.NotEqual(t, baseHash, otherID)

	withNonce := base.Clone()
	withNonce.Nonce = 1
	assert.NotEqual(t, baseHash, AccountLeafHash(7, withNonce))

	withBalance := base.Clone()
	withBalance.SetBalance(1, uint256.NewInt(101))
	assert.NotEqual(t, baseHash, AccountLeafHash(7, withBalance))

	withToken := base.Clone()
	withToken.SetBalance(2, uint256.NewInt(1))
	assert.NotEqual(t, baseHash, AccountLeafHash(7, withToken))

	withAddress := base.Clone()
	withAddress.Address = types.BytesToAddress([]byte{2})
	assert.NotEqual(t, baseHash, AccountLeafHash(7, withAddress))
}

func TestAccountLeafHash_IgnoresZeroBalancesAndMapOrder(t *testing.T) {
	a := types.NewAccount(types.BytesToAddress([]byte{9}))
	a.SetBalance(3, uint256.NewInt(5))
	a.SetBalance(1, uint256.NewInt(6))

	b := types.NewAccount(types.BytesToAddress([]byte{9}))
	b.SetBalance(1, uint256.NewInt(6))
	b.SetBalance(3, uint256.NewInt(5))
	b.Balances[4] = uint256.NewInt(0)

	assert.Equal(t, AccountLeafHash(1, a), AccountLeafHash(1, b))
}

func TestEmptySubtreeHashes(t *testing.T) {
	hashes := EmptySubtreeHashes(4)
	require.Len(t, hashes, 5)
	assert.True(t, IsZeroHash(hashes[0]))
	for i := 1; i < len(hashes); i++ {
		assert.Equal(t, CombineNodeHash(hashes[i-1], hashes[i-1]), hashes[i])
		assert.False(t, IsZeroHash(hashes[i]))
	}
}
