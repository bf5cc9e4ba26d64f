package restore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/monitoring"
	"github.com/mezonai/rollupstate/snapshot"
	"github.com/mezonai/rollupstate/store"
	"github.com/mezonai/rollupstate/tree"
	"github.com/mezonai/rollupstate/types"
)

const logCategory = "RESTORE"

type Option func(*RestoredTree)

// WithDepth sets the depth of the empty tree used when no checkpoint is retained.
func WithDepth(depth int) Option {
	return func(r *RestoredTree) {
		r.depth = depth
	}
}

// WithVerifyCheckpoint controls whether a checkpoint tree is compared with the
// root recorded for its block before replay. Enabled by default.
func WithVerifyCheckpoint(verify bool) Option {
	return func(r *RestoredTree) {
		r.verifyCheckpoint = verify
	}
}

// RestoredTree rebuilds the account tree from the block history on startup.
//
// Restore loads the retained checkpoint (or an empty tree), replays every
// later block and compares the result with the root recorded for the tip.
// On a mismatch the range is replayed again block by block to find the
// first divergent block. The tree is only handed out after a full match.
type RestoredTree struct {
	reader           store.HistoryReader
	depth            int
	verifyCheckpoint bool

	runID    string
	log      logx.Scoped
	replayed int

	tree  *tree.AccountTree
	block types.BlockNumber
}

func NewRestoredTree(reader store.HistoryReader, opts ...Option) *RestoredTree {
	r := &RestoredTree{
		reader:           reader,
		depth:            tree.DefaultDepth,
		verifyCheckpoint: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Tree returns the restored tree, nil until Restore succeeded.
func (r *RestoredTree) Tree() *tree.AccountTree {
	return r.tree
}

// Block returns the block the tree was restored to
func (r *RestoredTree) Block() types.BlockNumber {
	return r.block
}

// RunID identifies the last Restore call in logs
func (r *RestoredTree) RunID() string {
	return r.runID
}

// Restore rebuilds the tree up to the last committed block. Any returned
// error other than a context error is terminal, see IsFatal.
func (r *RestoredTree) Restore(ctx context.Context) (err error) {
	r.runID = uuid.NewString()
	r.log = logx.WithTag(logCategory, r.runID)
	r.replayed = 0
	r.tree, r.block = nil, 0

	start := time.Now()
	defer func() {
		monitoring.AddBlocksReplayed(r.replayed)
		monitoring.RecordRestore(outcome(err), time.Since(start))
	}()

	tip, err := r.reader.LastCommittedBlock()
	if err != nil {
		return &StoreError{Op: "last committed block", Err: err}
	}
	cached, hasCache, err := r.reader.LastCachedBlock()
	if err != nil {
		return &StoreError{Op: "last cached block", Err: err}
	}
	r.log.Info(fmt.Sprintf("Restoring state: last committed block %d, checkpoint %s", tip, describeCache(cached, hasCache)))

	base, baseBlock, err := r.loadBase(tip, cached, hasCache)
	if err != nil {
		return r.fail(err)
	}
	monitoring.SetCheckpointBlock(uint32(baseBlock))

	work := base.Clone()
	for n := baseBlock + 1; n <= tip; n++ {
		if err := ctx.Err(); err != nil {
			r.log.Warn("Restore cancelled before block ", n)
			return err
		}
		updates, err := r.reader.BlockUpdates(n)
		if err != nil {
			return r.fail(&StoreError{Op: "block updates", Block: n, Err: err})
		}
		if err := applyUpdates(work, n, updates); err != nil {
			return r.fail(err)
		}
		r.replayed++
	}

	expected, err := r.recordedRoot(tip, base.Depth())
	if err != nil {
		return r.fail(err)
	}
	computed := work.RootHash()
	if computed == expected {
		r.tree, r.block = work, tip
		monitoring.SetRestoredTip(uint32(tip))
		monitoring.SetDivergenceBlock(0)
		monitoring.SetAccountCount(work.Len())
		r.log.Info(fmt.Sprintf("Restored state at block %d from base %d: %d blocks replayed, %d accounts, root %s, took %s",
			tip, baseBlock, r.replayed, work.Len(), computed, time.Since(start)))
		return nil
	}

	r.log.Warn(fmt.Sprintf("Root mismatch at tip %d: recorded %s, computed %s; locating first divergent block", tip, expected, computed))
	if hasCache && !r.verifyCheckpoint {
		if err := r.checkBase(base, baseBlock); err != nil {
			return r.fail(err)
		}
	}
	divergence, err := r.findDivergence(ctx, base, baseBlock, tip)
	if err != nil {
		return r.fail(err)
	}
	return r.fail(divergence)
}

// loadBase returns the tree to replay from and the block it represents.
func (r *RestoredTree) loadBase(tip, cached types.BlockNumber, hasCache bool) (*tree.AccountTree, types.BlockNumber, error) {
	if !hasCache {
		return tree.New(r.depth), 0, nil
	}
	if cached > tip {
		return nil, 0, &StoreError{Op: "last cached block", Block: cached, Err: fmt.Errorf("%w: tip is %d", ErrCheckpointAhead, tip)}
	}

	blob, err := r.reader.LoadCheckpoint(cached)
	if err != nil {
		return nil, 0, &StoreError{Op: "load checkpoint", Block: cached, Err: err}
	}
	cp, err := snapshot.Decode(blob)
	if err != nil {
		return nil, 0, &StoreError{Op: "decode checkpoint", Block: cached, Err: err}
	}
	if cp.Meta.Block != cached {
		return nil, 0, &StoreError{Op: "decode checkpoint", Block: cached, Err: fmt.Errorf("checkpoint was taken at block %d", cp.Meta.Block)}
	}

	if !r.verifyCheckpoint {
		t, err := cp.Tree()
		if err != nil {
			return nil, 0, &StoreError{Op: "decode checkpoint", Block: cached, Err: err}
		}
		r.log.Info(fmt.Sprintf("Loaded checkpoint at block %d with %d accounts (unverified)", cached, t.Len()))
		return t, cached, nil
	}

	t, err := cp.Rebuild()
	if err != nil {
		return nil, 0, &StoreError{Op: "decode checkpoint", Block: cached, Err: err}
	}
	recorded, err := r.recordedRoot(cached, t.Depth())
	if err != nil {
		return nil, 0, err
	}
	if computed := t.RootHash(); computed != recorded {
		return nil, 0, &DivergenceError{Block: cached, Expected: recorded, Computed: computed}
	}
	r.log.Info(fmt.Sprintf("Loaded checkpoint at block %d with %d accounts, root %s", cached, t.Len(), recorded))
	return t, cached, nil
}

// checkBase compares an unverified checkpoint with the root recorded for its block.
func (r *RestoredTree) checkBase(base *tree.AccountTree, block types.BlockNumber) error {
	recorded, err := r.recordedRoot(block, base.Depth())
	if err != nil {
		return err
	}
	if computed := base.RootHash(); computed != recorded {
		return &DivergenceError{Block: block, Expected: recorded, Computed: computed}
	}
	return nil
}

// recordedRoot returns the root committed for block n. Block 0 has no
// record: its root is the empty tree of the given depth.
func (r *RestoredTree) recordedRoot(n types.BlockNumber, depth int) (types.RootHash, error) {
	if n == 0 {
		return tree.New(depth).RootHash(), nil
	}
	root, err := r.reader.BlockRootHash(n)
	if err != nil {
		return types.RootHash{}, &StoreError{Op: "block root hash", Block: n, Err: err}
	}
	return root, nil
}

func (r *RestoredTree) fail(err error) error {
	var divergence *DivergenceError
	if errors.As(err, &divergence) {
		monitoring.SetDivergenceBlock(uint32(divergence.Block))
		r.log.Error(divergence.Detail())
		return err
	}
	r.log.Error("Restore failed: ", err)
	return err
}

func outcome(err error) monitoring.RestoreOutcome {
	var (
		storeErr     *StoreError
		malformedErr *MalformedUpdateError
	)
	switch {
	case err == nil:
		return monitoring.RestoreOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return monitoring.RestoreCancelled
	case errors.As(err, &storeErr):
		return monitoring.RestoreStoreFail
	case errors.As(err, &malformedErr):
		return monitoring.RestoreMalformed
	default:
		return monitoring.RestoreDiverged
	}
}

func describeCache(block types.BlockNumber, ok bool) string {
	if !ok {
		return "none"
	}
	return fmt.Sprintf("at block %d", block)
}
