package tree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mezonai/rollupstate/bankhash"
	"github.com/mezonai/rollupstate/types"
)

// DefaultDepth gives room for 2^24 accounts.
const DefaultDepth = 24

const maxDepth = 32

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrAccountIDOutOfRange = errors.New("account id out of tree range")
	ErrInvalidUpdate       = errors.New("invalid account update")
)

// AccountTree is a sparse Merkle tree keyed by account id. Leaves hold the
// account state digest, empty leaves hash to zero.
//
// Node hashes are recomputed lazily: mutations only mark their leaf dirty and
// RootHash rehashes the touched paths. AccountTree is not safe for concurrent
// use; owners serialize access themselves.
type AccountTree struct {
	depth    int
	empty    [][32]byte
	accounts map[types.AccountID]*types.Account
	// nodes[h] holds the non-empty node hashes at height h, keyed by index.
	// nodes[0] are leaves, nodes[depth][0] is the root.
	nodes []map[uint64][32]byte
	dirty map[uint64]struct{}
	// nextID is one past the highest id ever stored, deleted accounts included.
	nextID types.AccountID
}

// New creates an empty tree of the given depth. A non-positive depth selects DefaultDepth.
func New(depth int) *AccountTree {
	if depth <= 0 {
		depth = DefaultDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	nodes := make([]map[uint64][32]byte, depth+1)
	for i := range nodes {
		nodes[i] = make(map[uint64][32]byte)
	}
	return &AccountTree{
		depth:    depth,
		empty:    bankhash.EmptySubtreeHashes(depth),
		accounts: make(map[types.AccountID]*types.Account),
		nodes:    nodes,
		dirty:    make(map[uint64]struct{}),
	}
}

func (t *AccountTree) Depth() int {
	return t.depth
}

// Capacity is the number of leaves in the tree
func (t *AccountTree) Capacity() uint64 {
	return uint64(1) << uint(t.depth)
}

func (t *AccountTree) Len() int {
	return len(t.accounts)
}

// NextID returns the lowest id never used by this tree. Removing an account
// does not lower it.
func (t *AccountTree) NextID() types.AccountID {
	return t.nextID
}

// SetNextID raises NextID to id. Lower values are ignored.
func (t *AccountTree) SetNextID(id types.AccountID) {
	if id > t.nextID {
		t.nextID = id
	}
}

func (t *AccountTree) issued(id types.AccountID) {
	t.SetNextID(id + 1)
}

func (t *AccountTree) checkID(id types.AccountID) error {
	if uint64(id) >= t.Capacity() {
		return fmt.Errorf("%w: id %d, depth %d", ErrAccountIDOutOfRange, id, t.depth)
	}
	return nil
}

// Get returns a copy of the account stored at id
func (t *AccountTree) Get(id types.AccountID) (*types.Account, bool) {
	acc, ok := t.accounts[id]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

func (t *AccountTree) Has(id types.AccountID) bool {
	_, ok := t.accounts[id]
	return ok
}

// Insert stores a copy of acc at id, replacing any previous leaf.
func (t *AccountTree) Insert(id types.AccountID, acc *types.Account) error {
	if err := t.checkID(id); err != nil {
		return err
	}
	t.accounts[id] = acc.Clone()
	t.dirty[uint64(id)] = struct{}{}
	t.issued(id)
	return nil
}

// Remove clears the leaf at id and reports whether an account was present.
func (t *AccountTree) Remove(id types.AccountID) bool {
	if _, ok := t.accounts[id]; !ok {
		return false
	}
	delete(t.accounts, id)
	t.dirty[uint64(id)] = struct{}{}
	return true
}

// IDs returns the ids of all stored accounts in ascending order
func (t *AccountTree) IDs() []types.AccountID {
	ids := make([]types.AccountID, 0, len(t.accounts))
	for id := range t.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ApplyUpdate mutates the leaf addressed by u.
// Creating an existing account or touching a missing one fails and leaves the tree unchanged.
func (t *AccountTree) ApplyUpdate(u *types.AccountUpdate) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if err := t.checkID(u.AccountID); err != nil {
		return err
	}

	switch u.Kind {
	case types.UpdateCreate:
		if t.Has(u.AccountID) {
			return fmt.Errorf("%w: id %d", ErrAccountExists, u.AccountID)
		}
		t.accounts[u.AccountID] = types.NewAccount(u.Address)
		t.issued(u.AccountID)

	case types.UpdateDelete:
		if !t.Has(u.AccountID) {
			return fmt.Errorf("%w: id %d", ErrAccountNotFound, u.AccountID)
		}
		delete(t.accounts, u.AccountID)

	case types.UpdateBalance:
		acc, ok := t.accounts[u.AccountID]
		if !ok {
			return fmt.Errorf("%w: id %d", ErrAccountNotFound, u.AccountID)
		}
		acc.SetBalance(u.Token, u.NewBalance)
		acc.Nonce = u.NewNonce
	}

	t.dirty[uint64(u.AccountID)] = struct{}{}
	return nil
}

// RootHash returns the digest of the whole tree.
func (t *AccountTree) RootHash() types.RootHash {
	t.commit()
	return types.RootHash(t.node(t.depth, 0))
}

func (t *AccountTree) node(height int, index uint64) [32]byte {
	if h, ok := t.nodes[height][index]; ok {
		return h
	}
	return t.empty[height]
}

func (t *AccountTree) setNode(height int, index uint64, h [32]byte) {
	if h == t.empty[height] {
		delete(t.nodes[height], index)
		return
	}
	t.nodes[height][index] = h
}

// commit rehashes every path from a dirty leaf to the root.
func (t *AccountTree) commit() {
	if len(t.dirty) == 0 {
		return
	}

	level := t.dirty
	for index := range level {
		if acc, ok := t.accounts[types.AccountID(index)]; ok {
			t.setNode(0, index, bankhash.AccountLeafHash(types.AccountID(index), acc))
		} else {
			t.setNode(0, index, t.empty[0])
		}
	}

	for height := 0; height < t.depth; height++ {
		parents := make(map[uint64]struct{}, len(level))
		for index := range level {
			parents[index>>1] = struct{}{}
		}
		for parent := range parents {
			left := t.node(height, parent<<1)
			right := t.node(height, parent<<1|1)
			t.setNode(height+1, parent, bankhash.CombineNodeHash(left, right))
		}
		level = parents
	}

	t.dirty = make(map[uint64]struct{})
}

// Clone returns an independent deep copy of the tree.
func (t *AccountTree) Clone() *AccountTree {
	t.commit()
	cp := &AccountTree{
		depth:    t.depth,
		empty:    t.empty,
		accounts: make(map[types.AccountID]*types.Account, len(t.accounts)),
		nodes:    make([]map[uint64][32]byte, len(t.nodes)),
		dirty:    make(map[uint64]struct{}),
		nextID:   t.nextID,
	}
	for id, acc := range t.accounts {
		cp.accounts[id] = acc.Clone()
	}
	for height, level := range t.nodes {
		cp.nodes[height] = make(map[uint64][32]byte, len(level))
		for index, h := range level {
			cp.nodes[height][index] = h
		}
	}
	return cp
}
