package restore

import (
	"context"

	"github.com/mezonai/rollupstate/tree"
	"github.com/mezonai/rollupstate/types"
)

// findDivergence replays (from, to] one block at a time onto a copy of base
// and returns the first block whose recorded root differs from the computed one.
func (r *RestoredTree) findDivergence(ctx context.Context, base *tree.AccountTree, from, to types.BlockNumber) (*DivergenceError, error) {
	work := base.Clone()
	for n := from + 1; n <= to; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		updates, err := r.reader.BlockUpdates(n)
		if err != nil {
			return nil, &StoreError{Op: "block updates", Block: n, Err: err}
		}
		computed, err := ApplyBlock(work, n, updates)
		if err != nil {
			return nil, err
		}
		r.replayed++

		expected, err := r.reader.BlockRootHash(n)
		if err != nil {
			return nil, &StoreError{Op: "block root hash", Block: n, Err: err}
		}
		if computed != expected {
			return &DivergenceError{Block: n, Expected: expected, Computed: computed}, nil
		}
		r.log.Debug("Block ", n, " matches recorded root ", expected)
	}
	return nil, ErrNoDivergenceFound
}
