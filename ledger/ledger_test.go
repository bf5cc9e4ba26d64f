package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mezonai/rollupstate/db"
	"github.com/mezonai/rollupstate/snapshot"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/tree"
	"github.com/mezonai/rollupstate/types"
)

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *store.GenericHistoryStore) {
	t.Helper()
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	hs, err := store.NewGenericHistoryStore(provider)
	require.NoError(t, err)
	t.Cleanup(func() { hs.Close() })
	return NewLedger(hs, tree.New(10), 0, opts...), hs
}

func addr(i byte) types.Address {
	return types.BytesToAddress([]byte{0x10, i})
}

func TestCreateAccount(t *testing.T) {
	l, _ := newTestLedger(t)

	first, err := l.CreateAccount(addr(1))
	require.NoError(t, err)
	second, err := l.CreateAccount(addr(2))
	require.NoError(t, err)
	assert.Equal(t, types.AccountID(0), first)
	assert.Equal(t, types.AccountID(1), second)

	_, err = l.CreateAccount(addr(1))
	assert.True(t, errors.Is(err, ErrAccountExisted))

	id, acc, ok := l.AccountByAddress(addr(2))
	require.True(t, ok)
	assert.Equal(t, second, id)
	assert.Equal(t, addr(2), acc.Address)
	assert.Equal(t, 2, l.AccountCount())
	assert.Equal(t, 2, l.PendingCount())
}

func TestCreditDebit(t *testing.T) {
	l, _ := newTestLedger(t)
	id, err := l.CreateAccount(addr(1))
	require.NoError(t, err)

	require.NoError(t, l.Credit(id, 5, uint256.NewInt(100)))
	require.NoError(t, l.Debit(id, 5, uint256.NewInt(30)))

	acc, ok := l.Account(id)
	require.True(t, ok)
	assert.Equal(t, uint256.NewInt(70), acc.Balance(5))
	assert.Equal(t, types.Nonce(1), acc.Nonce)

	err = l.Debit(id, 5, uint256.NewInt(71))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.True(t, errors.Is(l.Credit(id, 5, uint256.NewInt(0)), ErrZeroAmount))
	assert.True(t, errors.Is(l.Credit(42, 5, uint256.NewInt(1)), ErrAccountNotFound))

	// create, credit, debit; rejected operations are not recorded
	assert.Equal(t, 3, l.PendingCount())
}

func TestTransfer(t *testing.T) {
	l, _ := newTestLedger(t)
	from, _ := l.CreateAccount(addr(1))
	to, _ := l.CreateAccount(addr(2))
	require.NoError(t, l.Credit(from, 0, uint256.NewInt(10)))

	require.NoError(t, l.Transfer(from, to, 0, uint256.NewInt(4)))
	src, _ := l.Account(from)
	dst, _ := l.Account(to)
	assert.Equal(t, uint256.NewInt(6), src.Balance(0))
	assert.Equal(t, uint256.NewInt(4), dst.Balance(0))

	err := l.Transfer(from, 99, 0, uint256.NewInt(1))
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	src, _ = l.Account(from)
	assert.Equal(t, uint256.NewInt(6), src.Balance(0), "failed transfer must not debit")
}

func TestDeleteAccount(t *testing.T) {
	l, _ := newTestLedger(t)
	id, _ := l.CreateAccount(addr(1))
	require.NoError(t, l.Credit(id, 0, uint256.NewInt(1)))

	assert.True(t, errors.Is(l.DeleteAccount(id), ErrAccountNotEmpty))
	require.NoError(t, l.Debit(id, 0, uint256.NewInt(1)))
	require.NoError(t, l.DeleteAccount(id))

	_, ok := l.Account(id)
	assert.False(t, ok)
	_, _, ok = l.AccountByAddress(addr(1))
	assert.False(t, ok)

	// ids are never reused
	next, err := l.CreateAccount(addr(1))
	require.NoError(t, err)
	assert.Equal(t, id+1, next)
}

func TestSealBlock(t *testing.T) {
	l, hs := newTestLedger(t)
	id, _ := l.CreateAccount(addr(1))
	require.NoError(t, l.Credit(id, 3, uint256.NewInt(7)))

	b, err := l.SealBlock()
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(1), b.Number)
	assert.Len(t, b.Updates, 2)
	assert.Equal(t, b.RootHash, l.RootHash())
	assert.Equal(t, types.BlockNumber(1), l.LastBlock())
	assert.Equal(t, 0, l.PendingCount())

	stored, err := hs.Block(1)
	require.NoError(t, err)
	assert.Equal(t, b.RootHash, stored.RootHash)
	assert.Equal(t, types.UpdateBalance, stored.Updates[1].Kind)
	assert.Equal(t, uint256.NewInt(7), stored.Updates[1].NewBalance)

	empty, err := l.SealBlock()
	require.NoError(t, err)
	assert.Empty(t, empty.Updates)
	assert.Equal(t, b.RootHash, empty.RootHash)
}

func TestRootHash_IsSealedRoot(t *testing.T) {
	l, _ := newTestLedger(t)
	sealed := l.RootHash()
	_, err := l.CreateAccount(addr(1))
	require.NoError(t, err)
	assert.Equal(t, sealed, l.RootHash(), "pending updates are not part of the sealed root")
}

func TestSaveCheckpoint(t *testing.T) {
	l, hs := newTestLedger(t)
	id, _ := l.CreateAccount(addr(1))
	_, err := l.SaveCheckpoint()
	assert.True(t, errors.Is(err, ErrPendingUpdates))

	_, err = l.SealBlock()
	require.NoError(t, err)
	require.NoError(t, l.Credit(id, 1, uint256.NewInt(5)))
	_, err = l.SealBlock()
	require.NoError(t, err)

	block, err := l.SaveCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(2), block)

	blob, err := hs.LoadCheckpoint(2)
	require.NoError(t, err)
	cp, err := snapshot.Decode(blob)
	require.NoError(t, err)
	restored, err := cp.Tree()
	require.NoError(t, err)
	assert.Equal(t, l.RootHash(), restored.RootHash())
}

func TestPeriodicCheckpoint(t *testing.T) {
	l, hs := newTestLedger(t, WithCheckpointInterval(2))
	id, _ := l.CreateAccount(addr(1))

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Credit(id, 0, uint256.NewInt(1)))
		_, err := l.SealBlock()
		require.NoError(t, err)
	}

	cached, ok, err := hs.LastCachedBlock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockNumber(4), cached)
}

func TestNewLedger_FromExistingTree(t *testing.T) {
	tr := tree.New(10)
	require.NoError(t, tr.Insert(4, types.NewAccount(addr(4))))
	require.NoError(t, tr.Insert(9, types.NewAccount(addr(9))))

	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	hs, err := store.NewGenericHistoryStore(provider)
	require.NoError(t, err)
	defer hs.Close()

	l := NewLedger(hs, tr, 0)
	assert.Equal(t, tr.RootHash(), l.RootHash())

	id, err := l.CreateAccount(addr(10))
	require.NoError(t, err)
	assert.Equal(t, types.AccountID(10), id)

	_, err = l.CreateAccount(addr(9))
	assert.True(t, errors.Is(err, ErrAccountExisted))
}

func TestCreateAccount_TreeFull(t *testing.T) {
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	hs, err := store.NewGenericHistoryStore(provider)
	require.NoError(t, err)
	defer hs.Close()

	l := NewLedger(hs, tree.New(1), 0)
	_, err = l.CreateAccount(addr(1))
	require.NoError(t, err)
	_, err = l.CreateAccount(addr(2))
	require.NoError(t, err)
	_, err = l.CreateAccount(addr(3))
	assert.True(t, errors.Is(err, ErrTreeFull))
}

func TestTransfer_ReceiverOverflowLeavesSenderUntouched(t *testing.T) {
	l, _ := newTestLedger(t)
	from, _ := l.CreateAccount(addr(1))
	to, _ := l.CreateAccount(addr(2))
	require.NoError(t, l.Credit(from, 0, uint256.NewInt(1)))
	require.NoError(t, l.Credit(to, 0, new(uint256.Int).SetAllOne()))
	pending := l.PendingCount()

	err := l.Transfer(from, to, 0, uint256.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balance overflow")

	src, _ := l.Account(from)
	assert.Equal(t, uint256.NewInt(1), src.Balance(0))
	assert.Equal(t, types.Nonce(0), src.Nonce)
	assert.Equal(t, pending, l.PendingCount())
}

func TestTransfer_ToSelf(t *testing.T) {
	l, _ := newTestLedger(t)
	id, _ := l.CreateAccount(addr(1))
	require.NoError(t, l.Credit(id, 0, new(uint256.Int).SetAllOne()))

	require.NoError(t, l.Transfer(id, id, 0, uint256.NewInt(5)))
	acc, _ := l.Account(id)
	assert.Equal(t, new(uint256.Int).SetAllOne(), acc.Balance(0))
}

func TestNewLedger_DeletedIDsStayRetired(t *testing.T) {
	l, hs := newTestLedger(t)
	_, err := l.CreateAccount(addr(1))
	require.NoError(t, err)
	last, err := l.CreateAccount(addr(2))
	require.NoError(t, err)
	require.NoError(t, l.DeleteAccount(last))
	_, err = l.SealBlock()
	require.NoError(t, err)

	cp, err := l.Checkpoint()
	require.NoError(t, err)
	blob, err := snapshot.Encode(cp)
	require.NoError(t, err)
	decoded, err := snapshot.Decode(blob)
	require.NoError(t, err)
	restored, err := decoded.Tree()
	require.NoError(t, err)

	reopened := NewLedger(hs, restored, l.LastBlock())
	id, err := reopened.CreateAccount(addr(3))
	require.NoError(t, err)
	assert.Equal(t, last+1, id)
}
