package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/monitoring"
	"github.com/mezonai/rollupstate/snapshot"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/tree"
	"github.com/mezonai/rollupstate/types"
)

var (
	ErrAccountExisted      = errors.New("account existed")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotEmpty     = errors.New("account still holds a balance")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTreeFull            = errors.New("no account ids left in the tree")
	ErrPendingUpdates      = errors.New("block has unsealed updates")
	ErrZeroAmount          = errors.New("amount must be positive")
)

type Option func(*Ledger)

// WithCheckpointInterval makes SealBlock save a checkpoint every interval blocks. 0 disables it.
func WithCheckpointInterval(interval uint32) Option {
	return func(l *Ledger) {
		l.checkpointInterval = interval
	}
}

// Ledger owns the live account tree. It records every mutation as an
// AccountUpdate and seals the pending updates into the history store
// together with the resulting root.
type Ledger struct {
	mu      sync.RWMutex
	history store.HistoryStore
	tree    *tree.AccountTree

	block      types.BlockNumber
	sealedRoot types.RootHash
	pending    []types.AccountUpdate

	nextID    types.AccountID
	addrIndex map[types.Address]types.AccountID

	checkpointInterval uint32
}

// NewLedger takes ownership of t, the state right after block. A nil tree
// starts an empty chain of DefaultDepth.
func NewLedger(history store.HistoryStore, t *tree.AccountTree, block types.BlockNumber, opts ...Option) *Ledger {
	if t == nil {
		t = tree.New(tree.DefaultDepth)
	}
	l := &Ledger{
		history:    history,
		tree:       t,
		block:      block,
		sealedRoot: t.RootHash(),
		addrIndex:  make(map[types.Address]types.AccountID, t.Len()),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.nextID = t.NextID()
	for _, id := range t.IDs() {
		acc, _ := t.Get(id)
		l.addrIndex[acc.Address] = id
	}
	monitoring.SetBlockHeight(uint32(block))
	monitoring.SetAccountCount(t.Len())
	return l
}

// CreateAccount assigns the next free id to addr
func (l *Ledger) CreateAccount(addr types.Address) (types.AccountID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.addrIndex[addr]; ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountExisted, addr)
	}
	if uint64(l.nextID) >= l.tree.Capacity() {
		return 0, ErrTreeFull
	}

	id := l.nextID
	if err := l.applyWithoutLocking(types.NewCreateUpdate(id, addr)); err != nil {
		return 0, err
	}
	l.addrIndex[addr] = id
	l.nextID++
	return id, nil
}

// DeleteAccount removes an account whose balances are all zero
func (l *Ledger) DeleteAccount(id types.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.tree.Get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrAccountNotFound, id)
	}
	if len(acc.Tokens()) > 0 {
		return fmt.Errorf("%w: id %d", ErrAccountNotEmpty, id)
	}
	if err := l.applyWithoutLocking(types.NewDeleteUpdate(id, acc.Address, acc.Nonce)); err != nil {
		return err
	}
	delete(l.addrIndex, acc.Address)
	return nil
}

// Credit adds amount of token to the account balance
func (l *Ledger) Credit(id types.AccountID, token types.TokenID, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditWithoutLocking(id, token, amount)
}

// Debit subtracts amount of token and bumps the account nonce
func (l *Ledger) Debit(id types.AccountID, token types.TokenID, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitWithoutLocking(id, token, amount)
}

// Transfer moves amount of token between two accounts within the pending block
func (l *Ledger) Transfer(from, to types.AccountID, token types.TokenID, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dst, ok := l.tree.Get(to)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrAccountNotFound, to)
	}
	// the credit must not fail once the debit is recorded
	if from != to && amount != nil {
		if _, overflow := new(uint256.Int).AddOverflow(dst.Balance(token), amount); overflow {
			return fmt.Errorf("balance overflow for account %d token %d", to, token)
		}
	}
	if err := l.debitWithoutLocking(from, token, amount); err != nil {
		return err
	}
	return l.creditWithoutLocking(to, token, amount)
}

func (l *Ledger) creditWithoutLocking(id types.AccountID, token types.TokenID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	acc, ok := l.tree.Get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrAccountNotFound, id)
	}
	old := acc.Balance(token)
	next, overflow := new(uint256.Int).AddOverflow(old, amount)
	if overflow {
		return fmt.Errorf("balance overflow for account %d token %d", id, token)
	}
	return l.applyWithoutLocking(types.NewBalanceUpdate(id, token, old, next, acc.Nonce, acc.Nonce))
}

func (l *Ledger) debitWithoutLocking(id types.AccountID, token types.TokenID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	acc, ok := l.tree.Get(id)
	if !ok {
		return fmt.Errorf("%w: id %d", ErrAccountNotFound, id)
	}
	old := acc.Balance(token)
	if old.Lt(amount) {
		return fmt.Errorf("%w: account %d has %s of token %d, needs %s", ErrInsufficientBalance, id, old.Dec(), token, amount.Dec())
	}
	next := new(uint256.Int).Sub(old, amount)
	return l.applyWithoutLocking(types.NewBalanceUpdate(id, token, old, next, acc.Nonce, acc.Nonce+1))
}

// applyWithoutLocking mutates the tree first so a rejected update is never recorded
func (l *Ledger) applyWithoutLocking(u types.AccountUpdate) error {
	if err := l.tree.ApplyUpdate(&u); err != nil {
		return err
	}
	l.pending = append(l.pending, u)
	return nil
}

// SealBlock commits the pending updates as the next block. Sealing with no
// pending updates produces an empty block.
func (l *Ledger) SealBlock() (*types.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := &types.Block{
		Number:   l.block + 1,
		Updates:  l.pending,
		RootHash: l.tree.RootHash(),
	}
	if err := l.history.CommitBlock(b); err != nil {
		return nil, fmt.Errorf("failed to seal block %d: %w", b.Number, err)
	}

	l.block = b.Number
	l.sealedRoot = b.RootHash
	l.pending = nil

	monitoring.SetBlockHeight(uint32(b.Number))
	monitoring.RecordUpdatesInBlock(len(b.Updates))
	monitoring.SetAccountCount(l.tree.Len())
	logx.Info("LEDGER", fmt.Sprintf("Sealed block %d with %d updates, root %s", b.Number, len(b.Updates), b.RootHash))

	if l.checkpointInterval > 0 && uint32(b.Number)%l.checkpointInterval == 0 {
		if err := l.saveCheckpointWithoutLocking(); err != nil {
			// the block is sealed, a missed checkpoint only slows the next restore
			logx.Error("LEDGER", fmt.Sprintf("Failed to save checkpoint at block %d: %v", b.Number, err))
		}
	}
	return b, nil
}

// SaveCheckpoint stores the state at the last sealed block as the retained checkpoint
func (l *Ledger) SaveCheckpoint() (types.BlockNumber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.saveCheckpointWithoutLocking(); err != nil {
		return 0, err
	}
	return l.block, nil
}

func (l *Ledger) saveCheckpointWithoutLocking() error {
	if len(l.pending) > 0 {
		return fmt.Errorf("%w: %d", ErrPendingUpdates, len(l.pending))
	}
	blob, err := snapshot.Encode(snapshot.NewCheckpoint(l.block, l.tree))
	if err != nil {
		return err
	}
	return l.history.SaveCheckpoint(l.block, blob)
}

// Checkpoint captures the state at the last sealed block
func (l *Ledger) Checkpoint() (*snapshot.Checkpoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) > 0 {
		return nil, fmt.Errorf("%w: %d", ErrPendingUpdates, len(l.pending))
	}
	return snapshot.NewCheckpoint(l.block, l.tree), nil
}

// LastBlock returns the last sealed block number
func (l *Ledger) LastBlock() types.BlockNumber {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.block
}

// RootHash returns the root recorded for the last sealed block
func (l *Ledger) RootHash() types.RootHash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sealedRoot
}

// Account returns a copy of the current account state, pending updates included
func (l *Ledger) Account(id types.AccountID) (*types.Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Get(id)
}

func (l *Ledger) AccountByAddress(addr types.Address) (types.AccountID, *types.Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.addrIndex[addr]
	if !ok {
		return 0, nil, false
	}
	acc, ok := l.tree.Get(id)
	return id, acc, ok
}

func (l *Ledger) AccountCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Len()
}

func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}
