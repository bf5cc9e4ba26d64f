package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/mezonai/rollupstate/db"
	"github.com/mezonai/rollupstate/jsonx"
	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/types"
)

// HistoryReader is the read side of the block history used on startup.
// Missing records are reported with an error wrapping ErrNotFound.
type HistoryReader interface {
	// LastCommittedBlock returns the chain tip, 0 for an empty history
	LastCommittedBlock() (types.BlockNumber, error)

	// LastCachedBlock returns the block of the retained checkpoint, if any
	LastCachedBlock() (types.BlockNumber, bool, error)

	BlockUpdates(n types.BlockNumber) ([]types.AccountUpdate, error)
	BlockRootHash(n types.BlockNumber) (types.RootHash, error)
	LoadCheckpoint(n types.BlockNumber) ([]byte, error)
}

// HistoryStore adds the write side used by the sealing ledger and operator tooling.
type HistoryStore interface {
	HistoryReader

	// CommitBlock appends b; b.Number must be exactly tip+1
	CommitBlock(b *types.Block) error

	// SaveCheckpoint replaces the retained checkpoint with blob taken at block n <= tip
	SaveCheckpoint(n types.BlockNumber, blob []byte) error

	// DropCheckpoint forgets the retained checkpoint
	DropCheckpoint() error

	// SetBlockRootHash overwrites the recorded root of an existing block
	SetBlockRootHash(n types.BlockNumber, root types.RootHash) error

	// TruncateFrom removes blocks n..tip, making n-1 the new tip
	TruncateFrom(n types.BlockNumber) error

	Block(n types.BlockNumber) (*types.Block, error)
	Close() error
}

// updateCacheSize bounds the decoded block updates kept in memory. A
// restore that has to locate a divergence reads the same range twice.
const updateCacheSize = 256

type checkpointRecord struct {
	Block types.BlockNumber `json:"block"`
	Blob  []byte            `json:"blob"`
}

// GenericHistoryStore is a database-agnostic HistoryStore over a DatabaseProvider.
// Keys:
// - blk_upd:<4-byte big-endian block>  => json []AccountUpdate
// - blk_root:<4-byte big-endian block> => 32-byte root hash
// - meta:last_committed / meta:last_cached => 4-byte block number
// - meta:checkpoint => json checkpointRecord
type GenericHistoryStore struct {
	provider db.DatabaseProvider
	txm      *db.DBTxManager
	updates  *lru.Cache[types.BlockNumber, []types.AccountUpdate]

	mu       sync.RWMutex
	tip      types.BlockNumber
	cached   types.BlockNumber
	hasCache bool
}

// NewGenericHistoryStore creates a history store and loads its metadata
func NewGenericHistoryStore(provider db.DatabaseProvider) (*GenericHistoryStore, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}

	updates, err := lru.New[types.BlockNumber, []types.AccountUpdate](updateCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create update cache")
	}

	s := &GenericHistoryStore{
		provider: provider,
		txm:      db.NewDBTxManager(provider),
		updates:  updates,
	}
	if err := s.loadMeta(); err != nil {
		return nil, errors.Wrap(err, "failed to load metadata")
	}
	return s, nil
}

func (s *GenericHistoryStore) loadMeta() error {
	tip, ok, err := s.readBlockNumber(MetaKeyLastCommitted)
	if err != nil {
		return err
	}
	if ok {
		s.tip = tip
	}

	cached, ok, err := s.readBlockNumber(MetaKeyLastCached)
	if err != nil {
		return err
	}
	s.cached, s.hasCache = cached, ok
	return nil
}

func (s *GenericHistoryStore) readBlockNumber(name string) (types.BlockNumber, bool, error) {
	value, err := s.provider.Get(metaKey(name))
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to get %s", name)
	}
	if value == nil {
		return 0, false, nil
	}
	n, ok := decodeBlockNumber(value)
	if !ok {
		return 0, false, errors.Wrapf(ErrCorrupt, "invalid %s value length: %d", name, len(value))
	}
	return n, true, nil
}

func (s *GenericHistoryStore) LastCommittedBlock() (types.BlockNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tip, nil
}

func (s *GenericHistoryStore) LastCachedBlock() (types.BlockNumber, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached, s.hasCache, nil
}

// BlockUpdates returns the ordered updates committed in block n
func (s *GenericHistoryStore) BlockUpdates(n types.BlockNumber) ([]types.AccountUpdate, error) {
	if cached, ok := s.updates.Get(n); ok {
		return append([]types.AccountUpdate(nil), cached...), nil
	}

	value, err := s.provider.Get(blockKey(PrefixBlockUpdates, n))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get updates of block %d", n)
	}
	if value == nil {
		return nil, errors.Wrapf(ErrNotFound, "updates of block %d", n)
	}

	var updates []types.AccountUpdate
	if err := jsonx.Unmarshal(value, &updates); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "updates of block %d: %v", n, err)
	}
	s.updates.Add(n, append([]types.AccountUpdate(nil), updates...))
	return updates, nil
}

// BlockRootHash returns the root recorded when block n was sealed
func (s *GenericHistoryStore) BlockRootHash(n types.BlockNumber) (types.RootHash, error) {
	value, err := s.provider.Get(blockKey(PrefixBlockRoot, n))
	if err != nil {
		return types.RootHash{}, errors.Wrapf(err, "failed to get root of block %d", n)
	}
	if value == nil {
		return types.RootHash{}, errors.Wrapf(ErrNotFound, "root of block %d", n)
	}
	if len(value) != len(types.RootHash{}) {
		return types.RootHash{}, errors.Wrapf(ErrCorrupt, "root of block %d has length %d", n, len(value))
	}
	var root types.RootHash
	copy(root[:], value)
	return root, nil
}

// LoadCheckpoint returns the checkpoint blob taken at block n
func (s *GenericHistoryStore) LoadCheckpoint(n types.BlockNumber) ([]byte, error) {
	value, err := s.provider.Get(metaKey(MetaKeyCheckpointRecord))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get checkpoint")
	}
	if value == nil {
		return nil, errors.Wrapf(ErrNotFound, "checkpoint at block %d", n)
	}

	var rec checkpointRecord
	if err := jsonx.Unmarshal(value, &rec); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "checkpoint record: %v", err)
	}
	if rec.Block != n {
		return nil, errors.Wrapf(ErrNotFound, "checkpoint at block %d (retained one is at %d)", n, rec.Block)
	}
	return rec.Blob, nil
}

// Block returns the updates and root of block n together
func (s *GenericHistoryStore) Block(n types.BlockNumber) (*types.Block, error) {
	updates, err := s.BlockUpdates(n)
	if err != nil {
		return nil, err
	}
	root, err := s.BlockRootHash(n)
	if err != nil {
		return nil, err
	}
	return &types.Block{Number: n, Updates: updates, RootHash: root}, nil
}

// CommitBlock writes the updates, the root and the new tip in one batch
func (s *GenericHistoryStore) CommitBlock(b *types.Block) error {
	if b == nil {
		return errors.New("block cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Number != s.tip+1 {
		return errors.Wrapf(ErrNonContiguous, "got block %d, tip is %d", b.Number, s.tip)
	}
	for i := range b.Updates {
		if err := b.Updates[i].Validate(); err != nil {
			return errors.Wrapf(err, "update %d of block %d", i, b.Number)
		}
	}

	updates := b.Updates
	if updates == nil {
		updates = []types.AccountUpdate{}
	}
	value, err := jsonx.Marshal(updates)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal updates of block %d", b.Number)
	}

	err = s.txm.WithBatch(func(batch db.DatabaseBatch) error {
		batch.Put(blockKey(PrefixBlockUpdates, b.Number), value)
		batch.Put(blockKey(PrefixBlockRoot, b.Number), b.RootHash[:])
		batch.Put(metaKey(MetaKeyLastCommitted), encodeBlockNumber(b.Number))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to commit block %d", b.Number)
	}

	s.tip = b.Number
	logx.Debug("HISTORY", "Committed block ", b.Number, " with ", len(b.Updates), " updates, root ", b.RootHash)
	return nil
}

// SaveCheckpoint keeps blob as the single retained checkpoint
func (s *GenericHistoryStore) SaveCheckpoint(n types.BlockNumber, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n > s.tip {
		return errors.Wrapf(ErrBeyondTip, "checkpoint at block %d, tip is %d", n, s.tip)
	}

	value, err := jsonx.Marshal(checkpointRecord{Block: n, Blob: blob})
	if err != nil {
		return errors.Wrap(err, "failed to marshal checkpoint record")
	}

	err = s.txm.WithBatch(func(batch db.DatabaseBatch) error {
		batch.Put(metaKey(MetaKeyCheckpointRecord), value)
		batch.Put(metaKey(MetaKeyLastCached), encodeBlockNumber(n))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save checkpoint at block %d", n)
	}

	s.cached, s.hasCache = n, true
	logx.Info("HISTORY", "Saved checkpoint at block ", n, " (", len(blob), " bytes)")
	return nil
}

func (s *GenericHistoryStore) DropCheckpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropCheckpointLocked()
}

func (s *GenericHistoryStore) dropCheckpointLocked() error {
	if !s.hasCache {
		return nil
	}
	err := s.txm.WithBatch(func(batch db.DatabaseBatch) error {
		batch.Delete(metaKey(MetaKeyCheckpointRecord))
		batch.Delete(metaKey(MetaKeyLastCached))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to drop checkpoint")
	}
	logx.Info("HISTORY", "Dropped checkpoint at block ", s.cached)
	s.cached, s.hasCache = 0, false
	return nil
}

func (s *GenericHistoryStore) SetBlockRootHash(n types.BlockNumber, root types.RootHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n == 0 || n > s.tip {
		return errors.Wrapf(ErrNotFound, "root of block %d", n)
	}
	if err := s.provider.Put(blockKey(PrefixBlockRoot, n), root[:]); err != nil {
		return errors.Wrapf(err, "failed to set root of block %d", n)
	}
	logx.Warn("HISTORY", "Overwrote root of block ", n, " with ", root)
	return nil
}

// TruncateFrom removes blocks n..tip. A checkpoint above the new tip is dropped too.
func (s *GenericHistoryStore) TruncateFrom(n types.BlockNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n == 0 {
		return errors.New("cannot truncate from block 0")
	}
	if n > s.tip {
		return errors.Wrapf(ErrBeyondTip, "truncate from %d, tip is %d", n, s.tip)
	}

	newTip := n - 1
	dropCheckpoint := s.hasCache && s.cached >= n
	err := s.txm.WithBatch(func(batch db.DatabaseBatch) error {
		for b := n; b <= s.tip; b++ {
			batch.Delete(blockKey(PrefixBlockUpdates, b))
			batch.Delete(blockKey(PrefixBlockRoot, b))
		}
		if dropCheckpoint {
			batch.Delete(metaKey(MetaKeyCheckpointRecord))
			batch.Delete(metaKey(MetaKeyLastCached))
		}
		batch.Put(metaKey(MetaKeyLastCommitted), encodeBlockNumber(newTip))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to truncate from block %d", n)
	}

	for b := n; b <= s.tip; b++ {
		s.updates.Remove(b)
	}
	if dropCheckpoint {
		logx.Info("HISTORY", "Dropped checkpoint at block ", s.cached)
		s.cached, s.hasCache = 0, false
	}
	logx.Info("HISTORY", "Truncated blocks ", n, "..", s.tip, ", new tip ", newTip)
	s.tip = newTip
	return nil
}

// OrphanedBlocks lists root records above the tip, left behind by an
// interrupted truncate or a crashed writer. Providers that cannot iterate
// report none.
func (s *GenericHistoryStore) OrphanedBlocks() ([]types.BlockNumber, error) {
	iterable, ok := s.provider.(db.IterableProvider)
	if !ok {
		return nil, nil
	}

	s.mu.RLock()
	tip := s.tip
	s.mu.RUnlock()

	var orphans []types.BlockNumber
	err := iterable.IteratePrefix([]byte(PrefixBlockRoot), func(key, _ []byte) bool {
		n, ok := decodeBlockNumber(key[len(PrefixBlockRoot):])
		if ok && n > tip {
			orphans = append(orphans, n)
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan block roots")
	}
	return orphans, nil
}

// Close closes the underlying provider
func (s *GenericHistoryStore) Close() error {
	return s.provider.Close()
}
